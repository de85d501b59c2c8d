package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v76"

	"ginko-backend/auth"
	"ginko-backend/billing"
	"ginko-backend/graph"
	"ginko-backend/handlers"
	"ginko-backend/internal/config"
	"ginko-backend/server"
	"ginko-backend/store"
	"ginko-backend/stream"
)

func main() {
	// Load environment from .env files in development if present.
	// Load never overrides variables that are already set, so real
	// environment beats .env.local beats .env.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	cfg := config.LoadConfig()
	ctx := context.Background()

	// Graph store: authoritative for all operational state
	graphClient, err := graph.New(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatalf("Failed to connect to graph store: %v", err)
	}
	defer graphClient.Close(ctx)
	if err := graphClient.EnsureSchema(ctx); err != nil {
		log.Printf("Graph: schema init failed, continuing: %v", err)
	}

	// Relational store: identity, teams, billing. Optional; without it
	// the team and billing endpoints answer 503.
	var st *store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer st.Close()
		if err := st.EnsureSchema(ctx); err != nil {
			log.Printf("Store: schema init failed, continuing: %v", err)
		}
	} else {
		log.Printf("No database configured; team and billing endpoints disabled")
	}

	// Identity and access
	var supabase *auth.SupabaseClient
	if cfg.SupabaseURL != "" {
		supabase = auth.NewSupabaseClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseServiceRoleKey)
		handlers.Directory = supabase
	}
	handlers.Identity = auth.NewResolver(cfg.SupabaseJWTSecret, supabase)

	gate := &auth.Gate{Graphs: graphClient}
	if st != nil {
		gate.Teams = st
	}
	handlers.Access = gate

	// Graph-backed services
	handlers.Graphs = graphClient
	handlers.Events = graphClient
	handlers.Tasks = graphClient
	handlers.Epics = graphClient
	handlers.Checkpoints = graphClient
	handlers.Agents = graphClient
	handlers.Activity = graphClient

	handlers.StreamHub = stream.NewHub()
	handlers.StreamSource = graphClient
	handlers.DefaultGraphID = cfg.DefaultGraphID

	// Relational-backed services
	if st != nil {
		handlers.Teams = st
		handlers.Profiles = st
	}

	// Payments
	if cfg.StripeSecretKey != "" {
		stripe.Key = cfg.StripeSecretKey
		if st != nil {
			handlers.Seats = billing.NewSeatSyncer(st)
		}
	}
	if cfg.StripeWebhookSecret != "" && st != nil {
		handlers.Webhook = &billing.Processor{Store: st, WebhookSecret: cfg.StripeWebhookSecret}
	}

	// AI decomposition
	if cfg.AnthropicAPIKey != "" {
		handlers.AI = handlers.NewAnthropicCompleter(cfg.AnthropicAPIKey)
	}

	if err := server.Run(cfg.Port, registerRoutes); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
