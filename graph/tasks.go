package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// StatusUpdate reports the outcome of a task transition. Changed is
// false when the requested status equaled the stored one, in which case
// nothing was written and no event may be emitted.
type StatusUpdate struct {
	Task     types.Task
	Previous types.TaskStatus
	Changed  bool
}

// TaskByID fetches one task scoped to its graph.
func (c *Client) TaskByID(ctx context.Context, graphID, taskID string) (types.Task, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return fetchTask(ctx, tx, graphID, taskID)
	})
	if err != nil {
		return types.Task{}, err
	}
	return result.(types.Task), nil
}

// CreateTask writes a task node, linking it under its sprint and epic
// when given. An empty id is assigned the next TASK-### in the graph;
// creating an id that already exists returns the stored task untouched.
func (c *Client) CreateTask(ctx context.Context, task types.Task) (types.Task, bool, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if task.ID == "" {
			next, err := nextSequentialID(ctx, tx, "Task", "graph_id", task.GraphID, "TASK-")
			if err != nil {
				return nil, err
			}
			task.ID = next
		} else {
			existing, err := fetchTask(ctx, tx, task.GraphID, task.ID)
			if err == nil {
				return createOutcome{task: existing, created: false}, nil
			}
			if !errors.Is(err, ErrTaskNotFound) {
				return nil, err
			}
		}
		if _, err := tx.Run(ctx, `
			CREATE (t:Task {
				id: $id, graph_id: $graphId, title: $title, status: $status,
				sprint_id: $sprintId, epic_id: $epicId, assignee: $assignee,
				created_at: $now, updated_at: $now
			})`,
			map[string]any{
				"id":       task.ID,
				"graphId":  task.GraphID,
				"title":    task.Title,
				"status":   string(task.Status),
				"sprintId": task.SprintID,
				"epicId":   task.EpicID,
				"assignee": task.Assignee,
				"now":      task.CreatedAt,
			}); err != nil {
			return nil, err
		}
		if task.SprintID != "" {
			if _, err := tx.Run(ctx, `
				MATCH (s:Sprint {id: $sprintId, graphId: $graphId})
				MATCH (t:Task {id: $id, graph_id: $graphId})
				MERGE (s)-[:HAS_TASK]->(t)`,
				map[string]any{"sprintId": task.SprintID, "graphId": task.GraphID, "id": task.ID}); err != nil {
				return nil, err
			}
		}
		if task.EpicID != "" {
			if _, err := tx.Run(ctx, `
				MATCH (ep:Epic {id: $epicId, graphId: $graphId})
				MATCH (t:Task {id: $id, graph_id: $graphId})
				MERGE (ep)-[:HAS_TASK]->(t)`,
				map[string]any{"epicId": task.EpicID, "graphId": task.GraphID, "id": task.ID}); err != nil {
				return nil, err
			}
		}
		task.UpdatedAt = task.CreatedAt
		return createOutcome{task: task, created: true}, nil
	})
	if err != nil {
		return types.Task{}, false, err
	}
	outcome := result.(createOutcome)
	return outcome.task, outcome.created, nil
}

type createOutcome struct {
	task    types.Task
	created bool
}

// UpdateTaskStatus applies one state-machine transition inside a single
// write transaction. Event emission and activity updates happen after
// commit, never inside it.
func (c *Client) UpdateTaskStatus(ctx context.Context, graphID, taskID string, status types.TaskStatus, reason, userID, now string) (StatusUpdate, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		task, err := fetchTask(ctx, tx, graphID, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status == status {
			return StatusUpdate{Task: task, Previous: task.Status, Changed: false}, nil
		}
		if !types.CanTransitionTask(task.Status, status) {
			return nil, fmt.Errorf("%w: %s cannot become %s", ErrInvalidTransition, task.Status, status)
		}
		var blockedReason any
		if status == types.TaskBlocked {
			blockedReason = reason
		}
		res, err := tx.Run(ctx, `
			MATCH (t:Task {id: $taskId, graph_id: $graphId})
			SET t.status = $status,
				t.status_updated_at = $now,
				t.status_updated_by = $userId,
				t.blocked_reason = $blockedReason,
				t.updated_at = $now
			RETURN t`,
			map[string]any{
				"taskId":        taskID,
				"graphId":       graphID,
				"status":        string(status),
				"now":           now,
				"userId":        userID,
				"blockedReason": blockedReason,
			})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		props, _ := nodeProps(record, "t")
		return StatusUpdate{Task: taskFromProps(props), Previous: task.Status, Changed: true}, nil
	})
	if err != nil {
		return StatusUpdate{}, err
	}
	return result.(StatusUpdate), nil
}

// ClaimTask asserts the single CLAIMED_BY edge for a task. The edge
// predicate and creation run in one write transaction, so concurrent
// claims serialize on the task node and exactly one wins.
func (c *Client) ClaimTask(ctx context.Context, graphID, taskID, agentID, orgID, now string) (types.Task, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (t:Task {id: $taskId, graph_id: $graphId})
			WHERE NOT (:Agent)-[:CLAIMED_BY]->(t)
			MERGE (a:Agent {id: $agentId})
			ON CREATE SET a.organization_id = $orgId, a.created_at = $now
			SET a.status = 'busy', a.lastHeartbeat = $now
			CREATE (a)-[:CLAIMED_BY {claimed_at: $now}]->(t)
			SET t.claimed_by_agent = $agentId, t.updated_at = $now
			RETURN t`,
			map[string]any{
				"taskId":  taskID,
				"graphId": graphID,
				"agentId": agentID,
				"orgId":   orgID,
				"now":     now,
			})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			props, _ := nodeProps(records[0], "t")
			return taskFromProps(props), nil
		}
		// No row: the task is missing or the edge predicate failed.
		probe, err := tx.Run(ctx, `
			MATCH (t:Task {id: $taskId, graph_id: $graphId})
			OPTIONAL MATCH (holder:Agent)-[:CLAIMED_BY]->(t)
			RETURN t, holder.id AS holderId`,
			map[string]any{"taskId": taskID, "graphId": graphID})
		if err != nil {
			return nil, err
		}
		probeRecords, err := probe.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(probeRecords) == 0 {
			return nil, ErrTaskNotFound
		}
		holder := ""
		if v, ok := probeRecords[0].Get("holderId"); ok {
			if s, ok := v.(string); ok {
				holder = s
			}
		}
		return nil, fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, holder)
	})
	if err != nil {
		return types.Task{}, err
	}
	return result.(types.Task), nil
}

// ReleaseOutcome reports what a release did.
type ReleaseOutcome struct {
	Task            types.Task
	RemainingClaims int
	WasClaimed      bool
}

// ReleaseTask removes the claim edge held by agentID. Releasing an
// unclaimed task is a no-op success; releasing someone else's claim is
// ErrNotClaimHolder.
func (c *Client) ReleaseTask(ctx context.Context, graphID, taskID, agentID, now string) (ReleaseOutcome, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		probe, err := tx.Run(ctx, `
			MATCH (t:Task {id: $taskId, graph_id: $graphId})
			OPTIONAL MATCH (holder:Agent)-[:CLAIMED_BY]->(t)
			RETURN t, holder.id AS holderId`,
			map[string]any{"taskId": taskID, "graphId": graphID})
		if err != nil {
			return nil, err
		}
		probeRecords, err := probe.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(probeRecords) == 0 {
			return nil, ErrTaskNotFound
		}
		props, _ := nodeProps(probeRecords[0], "t")
		task := taskFromProps(props)
		holder := ""
		if v, ok := probeRecords[0].Get("holderId"); ok {
			if s, ok := v.(string); ok {
				holder = s
			}
		}
		if holder == "" {
			return ReleaseOutcome{Task: task, WasClaimed: false}, nil
		}
		if holder != agentID {
			return nil, fmt.Errorf("%w: held by %s", ErrNotClaimHolder, holder)
		}
		res, err := tx.Run(ctx, `
			MATCH (a:Agent {id: $agentId})-[r:CLAIMED_BY]->(t:Task {id: $taskId, graph_id: $graphId})
			DELETE r
			SET t.claimed_by_agent = null, t.updated_at = $now
			WITH a, t
			OPTIONAL MATCH (a)-[rem:CLAIMED_BY]->(:Task)
			WITH a, t, count(rem) AS remaining
			SET a.status = CASE WHEN remaining = 0 THEN 'idle' ELSE 'busy' END
			RETURN t, remaining`,
			map[string]any{
				"agentId": agentID,
				"taskId":  taskID,
				"graphId": graphID,
				"now":     now,
			})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		updated, _ := nodeProps(record, "t")
		remaining := 0
		if v, ok := record.Get("remaining"); ok {
			if n, ok := v.(int64); ok {
				remaining = int(n)
			}
		}
		return ReleaseOutcome{Task: taskFromProps(updated), RemainingClaims: remaining, WasClaimed: true}, nil
	})
	if err != nil {
		return ReleaseOutcome{}, err
	}
	return result.(ReleaseOutcome), nil
}

// TaskRecentEvents lists events linked to a task by RECENT_ACTIVITY at
// or after since, newest first.
func (c *Client) TaskRecentEvents(ctx context.Context, graphID, taskID, since string, limit int) ([]types.Event, error) {
	if limit < 1 {
		limit = 500
	}
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event)-[:RECENT_ACTIVITY]->(t:Task {id: $taskId, graph_id: $graphId})
			WHERE e.timestamp >= $since
			RETURN e ORDER BY e.timestamp DESC
			LIMIT $limit`,
			map[string]any{
				"taskId":  taskID,
				"graphId": graphID,
				"since":   since,
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

// AgentHeartbeat refreshes an agent's liveness. Busy agents stay busy;
// everything else reports active.
func (c *Client) AgentHeartbeat(ctx context.Context, agentID, orgID, now string) (types.Agent, error) {
	result, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (a:Agent {id: $agentId})
			ON CREATE SET a.organization_id = $orgId, a.created_at = $now, a.status = 'active'
			SET a.lastHeartbeat = $now,
				a.status = CASE WHEN a.status = 'busy' THEN 'busy' ELSE 'active' END
			RETURN a`,
			map[string]any{"agentId": agentID, "orgId": orgID, "now": now})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		props, _ := nodeProps(record, "a")
		return agentFromProps(props), nil
	})
	if err != nil {
		return types.Agent{}, err
	}
	return result.(types.Agent), nil
}

func fetchTask(ctx context.Context, tx neo4j.ManagedTransaction, graphID, taskID string) (types.Task, error) {
	res, err := tx.Run(ctx,
		`MATCH (t:Task {id: $taskId, graph_id: $graphId}) RETURN t LIMIT 1`,
		map[string]any{"taskId": taskID, "graphId": graphID})
	if err != nil {
		return types.Task{}, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return types.Task{}, err
	}
	if len(records) == 0 {
		return types.Task{}, ErrTaskNotFound
	}
	props, _ := nodeProps(records[0], "t")
	return taskFromProps(props), nil
}

// nextSequentialID computes the next PREFIX-### id within a graph by
// scanning existing ids for the numeric maximum.
func nextSequentialID(ctx context.Context, tx neo4j.ManagedTransaction, label, graphKey, graphID, prefix string) (string, error) {
	query := fmt.Sprintf(
		`MATCH (n:%s {%s: $graphId}) WHERE n.id STARTS WITH $prefix RETURN n.id AS id LIMIT 1000`,
		label, graphKey)
	res, err := tx.Run(ctx, query, map[string]any{"graphId": graphID, "prefix": prefix})
	if err != nil {
		return "", err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return "", err
	}
	max := 0
	for _, rec := range records {
		v, ok := rec.Get("id")
		if !ok {
			continue
		}
		id, ok := v.(string)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1), nil
}

func taskFromProps(props map[string]any) types.Task {
	return types.Task{
		ID:              stringProp(props, "id"),
		GraphID:         stringProp(props, "graph_id"),
		Title:           stringProp(props, "title"),
		Status:          types.TaskStatus(stringProp(props, "status")),
		StatusUpdatedAt: stringProp(props, "status_updated_at"),
		StatusUpdatedBy: stringProp(props, "status_updated_by"),
		BlockedReason:   stringProp(props, "blocked_reason"),
		Assignee:        stringProp(props, "assignee"),
		ClaimedByAgent:  stringProp(props, "claimed_by_agent"),
		SprintID:        stringProp(props, "sprint_id"),
		EpicID:          stringProp(props, "epic_id"),
		CreatedAt:       stringProp(props, "created_at"),
		UpdatedAt:       stringProp(props, "updated_at"),
	}
}

func agentFromProps(props map[string]any) types.Agent {
	return types.Agent{
		ID:             stringProp(props, "id"),
		OrganizationID: stringProp(props, "organization_id"),
		Status:         types.AgentStatus(stringProp(props, "status")),
		LastHeartbeat:  stringProp(props, "lastHeartbeat"),
		CreatedAt:      stringProp(props, "created_at"),
	}
}
