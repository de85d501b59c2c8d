package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// CreateCheckpoint appends a progress marker. Checkpoints are
// append-only; there is no update or delete.
func (c *Client) CreateCheckpoint(ctx context.Context, cp types.Checkpoint) (types.Checkpoint, error) {
	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		files := cp.FilesModified
		if files == nil {
			files = []string{}
		}
		if _, err := tx.Run(ctx, `
			CREATE (cp:Checkpoint {
				id: $id, graphId: $graphId, taskId: $taskId, agentId: $agentId,
				gitCommit: $gitCommit, filesModified: $files,
				eventsSince: $eventsSince, message: $message, createdAt: $now
			})`,
			map[string]any{
				"id":          cp.ID,
				"graphId":     cp.GraphID,
				"taskId":      cp.TaskID,
				"agentId":     cp.AgentID,
				"gitCommit":   cp.GitCommit,
				"files":       files,
				"eventsSince": cp.EventsSince,
				"message":     cp.Message,
				"now":         cp.CreatedAt,
			}); err != nil {
			return nil, err
		}
		// Attach to the task when it exists; a dangling taskId still
		// records the checkpoint.
		_, err := tx.Run(ctx, `
			MATCH (t:Task {id: $taskId, graph_id: $graphId})
			MATCH (cp:Checkpoint {id: $id})
			MERGE (t)-[:HAS_CHECKPOINT]->(cp)`,
			map[string]any{"taskId": cp.TaskID, "graphId": cp.GraphID, "id": cp.ID})
		return nil, err
	})
	if err != nil {
		return types.Checkpoint{}, err
	}
	return cp, nil
}

// Checkpoints lists a graph's checkpoints newest first, optionally
// narrowed to one task.
func (c *Client) Checkpoints(ctx context.Context, graphID, taskID string, limit int) ([]types.Checkpoint, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := `
		MATCH (cp:Checkpoint {graphId: $graphId})
		RETURN cp ORDER BY cp.createdAt DESC LIMIT $limit`
	params := map[string]any{"graphId": graphID, "limit": limit}
	if taskID != "" {
		query = `
			MATCH (cp:Checkpoint {graphId: $graphId, taskId: $taskId})
			RETURN cp ORDER BY cp.createdAt DESC LIMIT $limit`
		params["taskId"] = taskID
	}
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		checkpoints := make([]types.Checkpoint, 0, len(records))
		for _, rec := range records {
			props, ok := nodeProps(rec, "cp")
			if !ok {
				continue
			}
			checkpoints = append(checkpoints, types.Checkpoint{
				ID:            stringProp(props, "id"),
				GraphID:       stringProp(props, "graphId"),
				TaskID:        stringProp(props, "taskId"),
				AgentID:       stringProp(props, "agentId"),
				GitCommit:     stringProp(props, "gitCommit"),
				FilesModified: stringsProp(props, "filesModified"),
				EventsSince:   intProp(props, "eventsSince"),
				Message:       stringProp(props, "message"),
				CreatedAt:     stringProp(props, "createdAt"),
			})
		}
		return checkpoints, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Checkpoint), nil
}
