package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// DocumentInput is one document supplied to graph init for ingestion.
type DocumentInput struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}

var namespaceStrip = regexp.MustCompile(`[^a-z0-9]+`)

// NamespaceFor derives the stable namespace slug for a project name.
func NamespaceFor(projectName string) string {
	slug := namespaceStrip.ReplaceAllString(strings.ToLower(projectName), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "project"
	}
	return slug
}

// CreateGraph writes a new namespace node. The caller mints graphId and
// timestamps.
func (c *Client) CreateGraph(ctx context.Context, g types.Graph) error {
	counts, err := json.Marshal(g.DocumentCounts)
	if err != nil {
		return fmt.Errorf("marshal document counts: %w", err)
	}
	_, err = c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			CREATE (p:Project {
				graphId: $graphId, namespace: $namespace,
				projectName: $projectName, projectPath: $projectPath,
				visibility: $visibility, organization: $organization,
				userId: $userId, documentCounts: $documentCounts,
				status: $status, totalDocuments: $totalDocuments,
				createdAt: $createdAt, updatedAt: $updatedAt
			})`,
			map[string]any{
				"graphId":        g.GraphID,
				"namespace":      g.Namespace,
				"projectName":    g.ProjectName,
				"projectPath":    g.ProjectPath,
				"visibility":     string(g.Visibility),
				"organization":   g.Organization,
				"userId":         g.UserID,
				"documentCounts": string(counts),
				"status":         string(g.Status),
				"totalDocuments": g.TotalDocuments,
				"createdAt":      g.CreatedAt,
				"updatedAt":      g.UpdatedAt,
			})
		return nil, err
	})
	return err
}

// GetGraph looks a namespace up by graphId.
func (c *Client) GetGraph(ctx context.Context, graphID string) (types.Graph, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (p:Project {graphId: $graphId}) RETURN p LIMIT 1`,
			map[string]any{"graphId": graphID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			return nil, ErrGraphNotFound
		}
		props, _ := nodeProps(records[0], "p")
		return graphFromProps(props), nil
	})
	if err != nil {
		return types.Graph{}, err
	}
	return result.(types.Graph), nil
}

// GraphsByOwner lists every namespace owned by userID, newest first.
func (c *Client) GraphsByOwner(ctx context.Context, userID string) ([]types.Graph, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (p:Project {userId: $userId}) RETURN p ORDER BY p.createdAt DESC`,
			map[string]any{"userId": userID})
		if err != nil {
			return nil, err
		}
		return collectGraphs(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Graph), nil
}

// GraphsByIDs fetches namespace metadata for a set of graph ids.
func (c *Client) GraphsByIDs(ctx context.Context, graphIDs []string) ([]types.Graph, error) {
	if len(graphIDs) == 0 {
		return nil, nil
	}
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (p:Project) WHERE p.graphId IN $graphIds RETURN p ORDER BY p.createdAt DESC`,
			map[string]any{"graphIds": graphIDs})
		if err != nil {
			return nil, err
		}
		return collectGraphs(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Graph), nil
}

// IngestDocuments creates Document nodes for a freshly initialized
// namespace and flips its status to ready. Runs in the background after
// graph init responds.
func (c *Client) IngestDocuments(ctx context.Context, graphID string, docs []DocumentInput, now string) error {
	_, err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, doc := range docs {
			_, err := tx.Run(ctx, `
				MERGE (d:Document {graphId: $graphId, id: $id})
				SET d.type = $type, d.title = $title, d.content = $content,
					d.updatedAt = $now`,
				map[string]any{
					"graphId": graphID,
					"id":      doc.ID,
					"type":    doc.Type,
					"title":   doc.Title,
					"content": doc.Content,
					"now":     now,
				})
			if err != nil {
				return nil, err
			}
		}
		_, err := tx.Run(ctx, `
			MATCH (p:Project {graphId: $graphId})
			SET p.status = $status, p.totalDocuments = $total, p.updatedAt = $now`,
			map[string]any{
				"graphId": graphID,
				"status":  string(types.GraphStatusReady),
				"total":   len(docs),
				"now":     now,
			})
		return nil, err
	})
	return err
}

func collectGraphs(ctx context.Context, res neo4j.ResultWithContext) ([]types.Graph, error) {
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	graphs := make([]types.Graph, 0, len(records))
	for _, rec := range records {
		props, ok := nodeProps(rec, "p")
		if !ok {
			continue
		}
		graphs = append(graphs, graphFromProps(props))
	}
	return graphs, nil
}

func graphFromProps(props map[string]any) types.Graph {
	g := types.Graph{
		GraphID:        stringProp(props, "graphId"),
		Namespace:      stringProp(props, "namespace"),
		ProjectName:    stringProp(props, "projectName"),
		ProjectPath:    stringProp(props, "projectPath"),
		Visibility:     types.Visibility(stringProp(props, "visibility")),
		Organization:   stringProp(props, "organization"),
		UserID:         stringProp(props, "userId"),
		Status:         types.GraphStatus(stringProp(props, "status")),
		TotalDocuments: intProp(props, "totalDocuments"),
		CreatedAt:      stringProp(props, "createdAt"),
		UpdatedAt:      stringProp(props, "updatedAt"),
	}
	if raw := stringProp(props, "documentCounts"); raw != "" {
		counts := map[string]int{}
		if err := json.Unmarshal([]byte(raw), &counts); err == nil && len(counts) > 0 {
			g.DocumentCounts = counts
		}
	}
	return g
}
