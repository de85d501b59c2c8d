package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// MintEventID returns a fresh event id for callers that did not supply
// one. Caller-supplied ids are kept verbatim so appends stay idempotent.
func MintEventID() string {
	return "evt_" + uuid.NewString()
}

var taskMentionPattern = regexp.MustCompile(`(?i)\btask-\d+\b`)

// ExtractTaskMentions pulls normalized task ids out of an event
// description. Each mention becomes a RECENT_ACTIVITY edge when the task
// exists in the same graph.
func ExtractTaskMentions(description string) []string {
	seen := map[string]bool{}
	var ids []string
	for _, m := range taskMentionPattern.FindAllString(description, -1) {
		id := strings.ToUpper(m)
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// AppendEvent writes one event and links it to the tail of its
// (project, branch) partition. Re-posting an existing id returns the
// stored event untouched. A non-empty cursorID repositions that cursor
// onto the new event, creating the cursor if the session is new.
func (c *Client) AppendEvent(ctx context.Context, ev types.Event, cursorID string) (types.Event, bool, error) {
	mentions := ExtractTaskMentions(ev.Description)
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (e:Event {id: $id}) RETURN e LIMIT 1`,
			map[string]any{"id": ev.ID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			props, _ := nodeProps(records[0], "e")
			return appendOutcome{event: eventFromProps(props), created: false}, nil
		}

		if _, err := tx.Run(ctx,
			`CREATE (e:Event) SET e = $props`,
			map[string]any{"props": eventProps(ev)}); err != nil {
			return nil, err
		}

		// Link to the current partition tail, when one exists.
		if _, err := tx.Run(ctx, `
			MATCH (prev:Event {graph_id: $graphId, project_id: $projectId})
			WHERE coalesce(prev.branch, '') = $branch
			  AND prev.id <> $id
			  AND NOT (prev)-[:NEXT]->(:Event)
			WITH prev ORDER BY prev.timestamp DESC LIMIT 1
			MATCH (e:Event {id: $id})
			CREATE (prev)-[:NEXT]->(e)`,
			map[string]any{
				"graphId":   ev.GraphID,
				"projectId": ev.ProjectID,
				"branch":    ev.Branch,
				"id":        ev.ID,
			}); err != nil {
			return nil, err
		}

		if len(mentions) > 0 {
			if _, err := tx.Run(ctx, `
				MATCH (e:Event {id: $id})
				MATCH (t:Task {graph_id: $graphId})
				WHERE t.id IN $taskIds
				MERGE (e)-[:RECENT_ACTIVITY]->(t)`,
				map[string]any{
					"id":      ev.ID,
					"graphId": ev.GraphID,
					"taskIds": mentions,
				}); err != nil {
				return nil, err
			}
		}

		if cursorID != "" {
			if _, err := tx.Run(ctx, `
				MERGE (c:SessionCursor {id: $cursorId})
				ON CREATE SET c.organization_id = $orgId,
					c.project_id = $projectId, c.branch = $branch
				WITH c
				OPTIONAL MATCH (c)-[old:POSITIONED_AT]->(:Event)
				DELETE old
				WITH DISTINCT c
				MATCH (e:Event {id: $id})
				CREATE (c)-[:POSITIONED_AT]->(e)
				SET c.current_event_id = $id`,
				map[string]any{
					"cursorId":  cursorID,
					"orgId":     ev.OrganizationID,
					"projectId": ev.ProjectID,
					"branch":    ev.Branch,
					"id":        ev.ID,
				}); err != nil {
				return nil, err
			}
		}
		return appendOutcome{event: ev, created: true}, nil
	})
	if err != nil {
		return types.Event{}, false, err
	}
	outcome := result.(appendOutcome)
	return outcome.event, outcome.created, nil
}

type appendOutcome struct {
	event   types.Event
	created bool
}

// EventByID fetches one event.
func (c *Client) EventByID(ctx context.Context, id string) (types.Event, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (e:Event {id: $id}) RETURN e LIMIT 1`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrCursorNotFound
		}
		props, _ := nodeProps(records[0], "e")
		return eventFromProps(props), nil
	})
	if err != nil {
		return types.Event{}, err
	}
	return result.(types.Event), nil
}

// EventsBefore walks the NEXT chain backward from an anchor event,
// anchor first. The hop bound tracks the requested limit so the
// traversal never scans past what the page needs.
func (c *Client) EventsBefore(ctx context.Context, anchorID string, limit int) ([]types.Event, error) {
	if limit < 1 {
		limit = 1
	}
	maxHops := limit - 1
	query := fmt.Sprintf(`
		MATCH (anchor:Event {id: $anchorId})
		MATCH p = (e:Event)-[:NEXT*0..%d]->(anchor)
		RETURN e, length(p) AS distance
		ORDER BY distance ASC
		LIMIT $limit`, maxHops)
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"anchorId": anchorID,
			"limit":    limit,
		})
		if err != nil {
			return nil, err
		}
		return collectEvents(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Event), nil
}

// EventsSince returns graph-scoped events at or after sinceTs in
// (timestamp, id) order, excluding ids already delivered at the boundary
// timestamp. This is the forward read behind every stream transport.
func (c *Client) EventsSince(ctx context.Context, graphID, sinceTs string, exclude []string, limit int) ([]types.Event, error) {
	if limit < 1 {
		limit = 100
	}
	if exclude == nil {
		exclude = []string{}
	}
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event {graph_id: $graphId})
			WHERE e.timestamp >= $sinceTs AND NOT e.id IN $exclude
			RETURN e ORDER BY e.timestamp ASC, e.id ASC
			LIMIT $limit`,
			map[string]any{
				"graphId": graphID,
				"sinceTs": sinceTs,
				"exclude": exclude,
				"limit":   limit,
			})
		if err != nil {
			return nil, err
		}
		return collectEvents(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Event), nil
}

// DeliveredAt lists event ids at exactly ts whose id sorts at or before
// anchorID. A resuming subscriber seeds its boundary exclusion set with
// these so the anchor event is never re-delivered.
func (c *Client) DeliveredAt(ctx context.Context, graphID, ts, anchorID string) ([]string, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event {graph_id: $graphId})
			WHERE e.timestamp = $ts AND e.id <= $anchorId
			RETURN e.id AS id`,
			map[string]any{
				"graphId":  graphID,
				"ts":       ts,
				"anchorId": anchorID,
			})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(records))
		for _, rec := range records {
			if v, ok := rec.Get("id"); ok {
				if s, ok := v.(string); ok {
					ids = append(ids, s)
				}
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// TailEvent returns the newest event in a graph, if any.
func (c *Client) TailEvent(ctx context.Context, graphID string) (types.Event, bool, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event {graph_id: $graphId})
			RETURN e ORDER BY e.timestamp DESC, e.id DESC LIMIT 1`,
			map[string]any{"graphId": graphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, nil
		}
		props, _ := nodeProps(records[0], "e")
		ev := eventFromProps(props)
		return &ev, nil
	})
	if err != nil {
		return types.Event{}, false, err
	}
	if result == nil {
		return types.Event{}, false, nil
	}
	return *(result.(*types.Event)), true, nil
}

func collectEvents(ctx context.Context, res neo4j.ResultWithContext) ([]types.Event, error) {
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	events := make([]types.Event, 0, len(records))
	for _, rec := range records {
		props, ok := nodeProps(rec, "e")
		if !ok {
			continue
		}
		events = append(events, eventFromProps(props))
	}
	return events, nil
}

// knownEventProps are the typed Event fields; anything else on a node
// round-trips through Extra.
var knownEventProps = map[string]bool{
	"id": true, "user_id": true, "organization_id": true,
	"project_id": true, "graph_id": true, "branch": true,
	"timestamp": true, "category": true, "description": true,
	"files": true, "impact": true, "pressure": true, "tags": true,
	"shared": true, "commit_hash": true,
	"entity_type": true, "entity_id": true, "old_status": true,
	"new_status": true, "changed_by": true, "reason": true,
}

func eventProps(ev types.Event) map[string]any {
	props := map[string]any{
		"id":          ev.ID,
		"user_id":     ev.UserID,
		"project_id":  ev.ProjectID,
		"graph_id":    ev.GraphID,
		"timestamp":   ev.Timestamp,
		"category":    string(ev.Category),
		"description": ev.Description,
		"impact":      string(ev.Impact),
		"shared":      ev.Shared,
	}
	if ev.OrganizationID != "" {
		props["organization_id"] = ev.OrganizationID
	}
	if ev.Branch != "" {
		props["branch"] = ev.Branch
	}
	if len(ev.Files) > 0 {
		props["files"] = ev.Files
	}
	if ev.Pressure != nil {
		props["pressure"] = *ev.Pressure
	}
	if len(ev.Tags) > 0 {
		props["tags"] = ev.Tags
	}
	if ev.CommitHash != "" {
		props["commit_hash"] = ev.CommitHash
	}
	if ev.EntityType != "" {
		props["entity_type"] = ev.EntityType
	}
	if ev.EntityID != "" {
		props["entity_id"] = ev.EntityID
	}
	if ev.OldStatus != "" {
		props["old_status"] = ev.OldStatus
	}
	if ev.NewStatus != "" {
		props["new_status"] = ev.NewStatus
	}
	if ev.ChangedBy != "" {
		props["changed_by"] = ev.ChangedBy
	}
	if ev.Reason != "" {
		props["reason"] = ev.Reason
	}
	for k, v := range ev.Extra {
		if _, taken := knownEventProps[k]; taken {
			continue
		}
		switch v.(type) {
		case string, bool, int, int64, float64:
			props[k] = v
		}
	}
	return props
}

func eventFromProps(props map[string]any) types.Event {
	ev := types.Event{
		ID:             stringProp(props, "id"),
		UserID:         stringProp(props, "user_id"),
		OrganizationID: stringProp(props, "organization_id"),
		ProjectID:      stringProp(props, "project_id"),
		GraphID:        stringProp(props, "graph_id"),
		Branch:         stringProp(props, "branch"),
		Timestamp:      stringProp(props, "timestamp"),
		Category:       types.EventCategory(stringProp(props, "category")),
		Description:    stringProp(props, "description"),
		Files:          stringsProp(props, "files"),
		Impact:         types.Impact(stringProp(props, "impact")),
		Pressure:       floatPropPtr(props, "pressure"),
		Tags:           stringsProp(props, "tags"),
		Shared:         boolProp(props, "shared"),
		CommitHash:     stringProp(props, "commit_hash"),
		EntityType:     stringProp(props, "entity_type"),
		EntityID:       stringProp(props, "entity_id"),
		OldStatus:      stringProp(props, "old_status"),
		NewStatus:      stringProp(props, "new_status"),
		ChangedBy:      stringProp(props, "changed_by"),
		Reason:         stringProp(props, "reason"),
	}
	for k, v := range props {
		if knownEventProps[k] {
			continue
		}
		if ev.Extra == nil {
			ev.Extra = map[string]interface{}{}
		}
		ev.Extra[k] = v
	}
	return ev
}
