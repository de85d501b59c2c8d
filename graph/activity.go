package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// StatusChange describes one entity transition for the audit stream.
type StatusChange struct {
	EntityType string
	EntityID   string
	GraphID    string
	OldStatus  string
	NewStatus  string
	ChangedBy  string
	Reason     string
	Timestamp  string
}

// EmitStatusChange appends the status_change event for a transition and
// links the entity to it with HAS_EVENT. Callers run this after the
// transition commits; failures here are theirs to log, never to
// propagate into the parent operation.
func (c *Client) EmitStatusChange(ctx context.Context, change StatusChange) (types.Event, error) {
	if change.OldStatus == change.NewStatus {
		return types.Event{}, nil
	}
	ev := types.Event{
		ID:          MintEventID(),
		UserID:      change.ChangedBy,
		ProjectID:   change.GraphID,
		GraphID:     change.GraphID,
		Timestamp:   change.Timestamp,
		Category:    types.CategoryStatusChange,
		Description: fmt.Sprintf("%s %s status changed from %s to %s", change.EntityType, change.EntityID, change.OldStatus, change.NewStatus),
		Impact:      types.ImpactMedium,
		EntityType:  change.EntityType,
		EntityID:    change.EntityID,
		OldStatus:   change.OldStatus,
		NewStatus:   change.NewStatus,
		ChangedBy:   change.ChangedBy,
		Reason:      change.Reason,
	}
	stored, _, err := c.AppendEvent(ctx, ev, "")
	if err != nil {
		return types.Event{}, err
	}
	if err := c.linkEntityEvent(ctx, change.EntityType, change.EntityID, change.GraphID, stored.ID); err != nil {
		return stored, err
	}
	return stored, nil
}

// linkEntityEvent creates (entity)-[:HAS_EVENT]->(event). Entity labels
// carry their graph key under different property names, so the match is
// assembled per entity type.
func (c *Client) linkEntityEvent(ctx context.Context, entityType, entityID, graphID, eventID string) error {
	var match string
	switch entityType {
	case "task":
		match = `MATCH (n:Task {id: $entityId, graph_id: $graphId})`
	case "sprint":
		match = `MATCH (n:Sprint {id: $entityId, graphId: $graphId})`
	case "epic":
		match = `MATCH (n:Epic {id: $entityId, graphId: $graphId})`
	default:
		return fmt.Errorf("unknown entity type %q", entityType)
	}
	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, match+`
			MATCH (e:Event {id: $eventId})
			MERGE (n)-[:HAS_EVENT]->(e)`,
			map[string]any{"entityId": entityID, "graphId": graphID, "eventId": eventID})
		return nil, err
	})
	return err
}

// UpsertUserActivity records the principal's latest action in a graph.
// One row per (graphId, userId); session_start bumps the session count.
func (c *Client) UpsertUserActivity(ctx context.Context, graphID, userID string, activity types.ActivityType, now string) (types.UserActivity, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (ua:UserActivity {graphId: $graphId, userId: $userId})
			ON CREATE SET ua.sessionCount = 0, ua.createdAt = $now
			SET ua.lastActivityAt = $now,
				ua.lastActivityType = $type,
				ua.sessionCount = ua.sessionCount +
					CASE WHEN $type = 'session_start' THEN 1 ELSE 0 END,
				ua.updatedAt = $now
			RETURN ua`,
			map[string]any{
				"graphId": graphID,
				"userId":  userID,
				"type":    string(activity),
				"now":     now,
			})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		props, _ := nodeProps(record, "ua")
		return types.UserActivity{
			GraphID:          stringProp(props, "graphId"),
			UserID:           stringProp(props, "userId"),
			LastActivityAt:   stringProp(props, "lastActivityAt"),
			LastActivityType: types.ActivityType(stringProp(props, "lastActivityType")),
			SessionCount:     intProp(props, "sessionCount"),
		}, nil
	})
	if err != nil {
		return types.UserActivity{}, err
	}
	return result.(types.UserActivity), nil
}
