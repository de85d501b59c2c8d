package graph

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// GetCursor fetches a session cursor by id.
func (c *Client) GetCursor(ctx context.Context, cursorID string) (types.SessionCursor, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (c:SessionCursor {id: $id})
			OPTIONAL MATCH (c)-[:POSITIONED_AT]->(e:Event)
			RETURN c, e.id AS eventId LIMIT 1`,
			map[string]any{"id": cursorID})
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
		props, _ := nodeProps(records[0], "c")
		cursor := cursorFromProps(props)
		if v, ok := records[0].Get("eventId"); ok {
			if s, ok := v.(string); ok && s != "" {
				cursor.CurrentEventID = s
			}
		}
		return cursor, nil
	})
	if err != nil {
		return types.SessionCursor{}, err
	}
	return result.(types.SessionCursor), nil
}

// ResolveAnchor turns a caller-supplied id into an anchor event id.
// Legacy callers pass event ids where cursor ids belong, so the id is
// tried as a cursor first and as an event second.
func (c *Client) ResolveAnchor(ctx context.Context, cursorOrEventID string) (string, *types.SessionCursor, error) {
	cursor, err := c.GetCursor(ctx, cursorOrEventID)
	if err == nil {
		if cursor.CurrentEventID == "" {
			return "", &cursor, ErrCursorNotFound
		}
		return cursor.CurrentEventID, &cursor, nil
	}
	if !errors.Is(err, ErrCursorNotFound) {
		return "", nil, err
	}
	ev, err := c.EventByID(ctx, cursorOrEventID)
	if err != nil {
		return "", nil, ErrCursorNotFound
	}
	return ev.ID, nil, nil
}

func cursorFromProps(props map[string]any) types.SessionCursor {
	return types.SessionCursor{
		ID:             stringProp(props, "id"),
		OrganizationID: stringProp(props, "organization_id"),
		ProjectID:      stringProp(props, "project_id"),
		Branch:         stringProp(props, "branch"),
		CurrentEventID: stringProp(props, "current_event_id"),
	}
}
