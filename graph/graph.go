// Package graph is the property-graph store behind the API. Every
// operation opens one session, runs a single read or write transaction
// unit, and releases the session on all exit paths.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Sentinel errors mapped to stable API error codes by the handlers.
var (
	ErrGraphNotFound     = errors.New("graph not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrCursorNotFound    = errors.New("cursor not found")
	ErrEpicNotFound      = errors.New("epic not found")
	ErrSprintNotFound    = errors.New("sprint not found")
	ErrEpicIDConflict    = errors.New("epic id already exists")
	ErrAlreadyClaimed    = errors.New("task already claimed")
	ErrNotClaimHolder    = errors.New("task is claimed by a different agent")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Client wraps the Neo4j driver. All graph access in the service goes
// through it.
type Client struct {
	driver neo4j.DriverWithContext
}

// New connects to the graph store. A failed connectivity probe is
// logged rather than fatal: handlers surface an unreachable store as
// service_unavailable per request instead of keeping the process down.
func New(ctx context.Context, uri, user, password string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create graph driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Printf("Graph: connectivity probe failed (continuing): %v", err)
	}
	return &Client{driver: driver}, nil
}

// Close releases the driver and its connection pool.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// IsUnavailable reports whether err means the graph store itself is
// unreachable, as opposed to a domain failure inside a transaction.
func IsUnavailable(err error) bool {
	return err != nil && neo4j.IsConnectivityError(err)
}

// read runs work in a read transaction on a fresh session.
func (c *Client) read(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, work)
}

// write runs work in a write transaction on a fresh session.
func (c *Client) write(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

// schemaStatements are idempotent; EnsureSchema runs at every boot.
var schemaStatements = []string{
	"CREATE CONSTRAINT project_graph_id IF NOT EXISTS FOR (p:Project) REQUIRE p.graphId IS UNIQUE",
	"CREATE CONSTRAINT event_id IF NOT EXISTS FOR (e:Event) REQUIRE e.id IS UNIQUE",
	"CREATE CONSTRAINT cursor_id IF NOT EXISTS FOR (c:SessionCursor) REQUIRE c.id IS UNIQUE",
	"CREATE INDEX project_namespace IF NOT EXISTS FOR (p:Project) ON (p.namespace)",
	"CREATE INDEX project_user IF NOT EXISTS FOR (p:Project) ON (p.userId)",
	"CREATE INDEX event_graph_time IF NOT EXISTS FOR (e:Event) ON (e.graph_id, e.timestamp)",
	"CREATE INDEX event_partition IF NOT EXISTS FOR (e:Event) ON (e.graph_id, e.project_id)",
	"CREATE INDEX task_lookup IF NOT EXISTS FOR (t:Task) ON (t.graph_id, t.id)",
	"CREATE INDEX epic_lookup IF NOT EXISTS FOR (ep:Epic) ON (ep.graphId, ep.id)",
	"CREATE INDEX sprint_lookup IF NOT EXISTS FOR (s:Sprint) ON (s.graphId, s.id)",
	"CREATE INDEX checkpoint_lookup IF NOT EXISTS FOR (cp:Checkpoint) ON (cp.graphId, cp.taskId)",
	"CREATE INDEX activity_lookup IF NOT EXISTS FOR (ua:UserActivity) ON (ua.graphId, ua.userId)",
	"CREATE INDEX document_lookup IF NOT EXISTS FOR (d:Document) ON (d.graphId, d.id)",
}

// EnsureSchema creates the constraints and indexes the query plans rely
// on. Safe to run repeatedly.
func (c *Client) EnsureSchema(ctx context.Context) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	for _, stmt := range schemaStatements {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}

// Property extraction helpers. Neo4j hands back map[string]any with
// int64 for integers and []any for lists.

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func intProp(props map[string]any, key string) int {
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func boolProp(props map[string]any, key string) bool {
	if v, ok := props[key].(bool); ok {
		return v
	}
	return false
}

func stringsProp(props map[string]any, key string) []string {
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatPropPtr(props map[string]any, key string) *float64 {
	switch v := props[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

// nodeProps pulls the property map of the node bound to key in a record.
func nodeProps(rec *neo4j.Record, key string) (map[string]any, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil, false
	}
	node, ok := v.(neo4j.Node)
	if !ok {
		return nil, false
	}
	return node.Props, true
}
