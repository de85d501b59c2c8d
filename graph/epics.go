package graph

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// EpicCheck is the conflict report for a proposed epic id.
type EpicCheck struct {
	Exists      bool   `json:"exists"`
	CreatedBy   string `json:"createdBy,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
	Title       string `json:"title,omitempty"`
	SuggestedID string `json:"suggestedId,omitempty"`
}

// CheckEpicID reports whether a normalized epic id is taken and, when it
// is, the next free EPIC-### in the graph.
func (c *Client) CheckEpicID(ctx context.Context, graphID, epicID string) (EpicCheck, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (ep:Epic {graphId: $graphId})
			WHERE ep.id STARTS WITH 'EPIC-'
			RETURN ep.id AS id, ep.title AS title, ep.createdBy AS createdBy, ep.createdAt AS createdAt`,
			map[string]any{"graphId": graphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		check := EpicCheck{}
		highest := 0
		for _, rec := range records {
			id, _ := recordString(rec, "id")
			if n, err := strconv.Atoi(strings.TrimPrefix(id, "EPIC-")); err == nil && n > highest {
				highest = n
			}
			if id == epicID {
				check.Exists = true
				check.Title, _ = recordString(rec, "title")
				check.CreatedBy, _ = recordString(rec, "createdBy")
				check.CreatedAt, _ = recordString(rec, "createdAt")
			}
		}
		if check.Exists {
			check.SuggestedID = fmt.Sprintf("EPIC-%03d", highest+1)
		}
		return check, nil
	})
	if err != nil {
		return EpicCheck{}, err
	}
	return result.(EpicCheck), nil
}

// CreateEpic writes a new epic. A taken id fails with ErrEpicIDConflict;
// an empty id is assigned the next EPIC-### in the graph.
func (c *Client) CreateEpic(ctx context.Context, epic types.Epic) (types.Epic, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if epic.ID == "" {
			next, err := nextSequentialID(ctx, tx, "Epic", "graphId", epic.GraphID, "EPIC-")
			if err != nil {
				return nil, err
			}
			epic.ID = next
		} else {
			res, err := tx.Run(ctx,
				`MATCH (ep:Epic {id: $id, graphId: $graphId}) RETURN ep LIMIT 1`,
				map[string]any{"id": epic.ID, "graphId": epic.GraphID})
			if err != nil {
				return nil, err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return nil, err
			}
			if len(records) > 0 {
				return nil, fmt.Errorf("%w: %s", ErrEpicIDConflict, epic.ID)
			}
		}
		_, err := tx.Run(ctx, `
			CREATE (ep:Epic {
				id: $id, graphId: $graphId, title: $title, status: $status,
				content: $content, createdBy: $createdBy,
				createdAt: $now, updatedAt: $now
			})`,
			map[string]any{
				"id":        epic.ID,
				"graphId":   epic.GraphID,
				"title":     epic.Title,
				"status":    string(epic.Status),
				"content":   epic.Content,
				"createdBy": epic.CreatedBy,
				"now":       epic.CreatedAt,
			})
		if err != nil {
			return nil, err
		}
		epic.UpdatedAt = epic.CreatedAt
		return epic, nil
	})
	if err != nil {
		return types.Epic{}, err
	}
	return result.(types.Epic), nil
}

// EpicByID fetches one epic.
func (c *Client) EpicByID(ctx context.Context, graphID, epicID string) (types.Epic, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (ep:Epic {id: $id, graphId: $graphId}) RETURN ep LIMIT 1`,
			map[string]any{"id": epicID, "graphId": graphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEpicNotFound
		}
		props, _ := nodeProps(records[0], "ep")
		return epicFromProps(props), nil
	})
	if err != nil {
		return types.Epic{}, err
	}
	return result.(types.Epic), nil
}

// UpdateEpicStatus applies an epic transition. Identical statuses are a
// no-op with Changed=false.
func (c *Client) UpdateEpicStatus(ctx context.Context, graphID, epicID string, status types.EpicStatus, userID, now string) (types.Epic, types.EpicStatus, bool, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (ep:Epic {id: $id, graphId: $graphId}) RETURN ep LIMIT 1`,
			map[string]any{"id": epicID, "graphId": graphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEpicNotFound
		}
		props, _ := nodeProps(records[0], "ep")
		epic := epicFromProps(props)
		if epic.Status == status {
			return epicStatusOutcome{epic: epic, previous: epic.Status, changed: false}, nil
		}
		previous := epic.Status
		updated, err := tx.Run(ctx, `
			MATCH (ep:Epic {id: $id, graphId: $graphId})
			SET ep.status = $status, ep.updatedAt = $now
			RETURN ep`,
			map[string]any{"id": epicID, "graphId": graphID, "status": string(status), "now": now})
		if err != nil {
			return nil, err
		}
		record, err := updated.Single(ctx)
		if err != nil {
			return nil, err
		}
		newProps, _ := nodeProps(record, "ep")
		return epicStatusOutcome{epic: epicFromProps(newProps), previous: previous, changed: true}, nil
	})
	if err != nil {
		return types.Epic{}, "", false, err
	}
	outcome := result.(epicStatusOutcome)
	return outcome.epic, outcome.previous, outcome.changed, nil
}

type epicStatusOutcome struct {
	epic     types.Epic
	previous types.EpicStatus
	changed  bool
}

// CreateSprint writes a sprint under an epic.
func (c *Client) CreateSprint(ctx context.Context, sprint types.Sprint) (types.Sprint, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (ep:Epic {id: $epicId, graphId: $graphId}) RETURN ep LIMIT 1`,
			map[string]any{"epicId": sprint.EpicID, "graphId": sprint.GraphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrEpicNotFound
		}
		if sprint.ID == "" {
			next, err := nextSequentialID(ctx, tx, "Sprint", "graphId", sprint.GraphID, "SPRINT-")
			if err != nil {
				return nil, err
			}
			sprint.ID = next
		}
		_, err = tx.Run(ctx, `
			MATCH (ep:Epic {id: $epicId, graphId: $graphId})
			CREATE (s:Sprint {
				id: $id, graphId: $graphId, epicId: $epicId, title: $title,
				status: $status, createdBy: $createdBy,
				createdAt: $now, updatedAt: $now
			})
			MERGE (ep)-[:HAS_SPRINT]->(s)`,
			map[string]any{
				"id":        sprint.ID,
				"graphId":   sprint.GraphID,
				"epicId":    sprint.EpicID,
				"title":     sprint.Title,
				"status":    string(sprint.Status),
				"createdBy": sprint.CreatedBy,
				"now":       sprint.CreatedAt,
			})
		if err != nil {
			return nil, err
		}
		sprint.UpdatedAt = sprint.CreatedAt
		return sprint, nil
	})
	if err != nil {
		return types.Sprint{}, err
	}
	return result.(types.Sprint), nil
}

// UpdateSprintStatus applies a sprint transition, no-op on identical
// statuses.
func (c *Client) UpdateSprintStatus(ctx context.Context, graphID, sprintID string, status types.SprintStatus, userID, now string) (types.Sprint, types.SprintStatus, bool, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (s:Sprint {id: $id, graphId: $graphId}) RETURN s LIMIT 1`,
			map[string]any{"id": sprintID, "graphId": graphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrSprintNotFound
		}
		props, _ := nodeProps(records[0], "s")
		sprint := sprintFromProps(props)
		if sprint.Status == status {
			return sprintStatusOutcome{sprint: sprint, previous: sprint.Status, changed: false}, nil
		}
		previous := sprint.Status
		updated, err := tx.Run(ctx, `
			MATCH (s:Sprint {id: $id, graphId: $graphId})
			SET s.status = $status, s.updatedAt = $now
			RETURN s`,
			map[string]any{"id": sprintID, "graphId": graphID, "status": string(status), "now": now})
		if err != nil {
			return nil, err
		}
		record, err := updated.Single(ctx)
		if err != nil {
			return nil, err
		}
		newProps, _ := nodeProps(record, "s")
		return sprintStatusOutcome{sprint: sprintFromProps(newProps), previous: previous, changed: true}, nil
	})
	if err != nil {
		return types.Sprint{}, "", false, err
	}
	outcome := result.(sprintStatusOutcome)
	return outcome.sprint, outcome.previous, outcome.changed, nil
}

type sprintStatusOutcome struct {
	sprint   types.Sprint
	previous types.SprintStatus
	changed  bool
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func epicFromProps(props map[string]any) types.Epic {
	return types.Epic{
		ID:        stringProp(props, "id"),
		GraphID:   stringProp(props, "graphId"),
		Title:     stringProp(props, "title"),
		CreatedBy: stringProp(props, "createdBy"),
		CreatedAt: stringProp(props, "createdAt"),
		UpdatedAt: stringProp(props, "updatedAt"),
		Status:    types.EpicStatus(stringProp(props, "status")),
		Content:   stringProp(props, "content"),
	}
}

func sprintFromProps(props map[string]any) types.Sprint {
	return types.Sprint{
		ID:        stringProp(props, "id"),
		GraphID:   stringProp(props, "graphId"),
		EpicID:    stringProp(props, "epicId"),
		Title:     stringProp(props, "title"),
		Status:    types.SprintStatus(stringProp(props, "status")),
		CreatedBy: stringProp(props, "createdBy"),
		CreatedAt: stringProp(props, "createdAt"),
		UpdatedAt: stringProp(props, "updatedAt"),
	}
}
