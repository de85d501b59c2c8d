package config

import (
	"os"
)

// AppConfig holds application configuration
type AppConfig struct {
	Port string

	// Graph store
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Identity / relational store
	SupabaseURL            string
	SupabaseAnonKey        string
	SupabaseServiceRoleKey string
	SupabaseJWTSecret      string
	DatabaseURL            string

	// Payments
	StripeSecretKey     string
	StripeWebhookSecret string

	// Optional AI decomposition
	AnthropicAPIKey string

	// Optional bootstrap graph surfaced when a caller owns nothing
	DefaultGraphID string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *AppConfig {
	config := &AppConfig{
		Port:                   getEnvOrDefault("PORT", "8080"),
		Neo4jURI:               getEnvOrDefault("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:              getEnvOrDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword:          os.Getenv("NEO4J_PASSWORD"),
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey:        os.Getenv("SUPABASE_ANON_KEY"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseJWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
		DatabaseURL:            getEnvOrDefault("SUPABASE_DB_URL", os.Getenv("DATABASE_URL")),
		StripeSecretKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:    os.Getenv("STRIPE_WEBHOOK_SECRET"),
		AnthropicAPIKey:        os.Getenv("ANTHROPIC_API_KEY"),
		DefaultGraphID:         os.Getenv("NEXT_PUBLIC_GRAPH_ID"),
	}
	return config
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
