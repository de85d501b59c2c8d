package graph

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"ginko-backend/types"
)

// InitialLoadOptions shapes the composite context snapshot.
type InitialLoadOptions struct {
	GraphID        string
	UserID         string
	ProjectID      string
	UserEventLimit int
	TeamEventLimit int
	IncludeTeam    bool
	DocumentDepth  int
}

// InitialLoad is the one-round-trip context payload a client session
// starts from.
type InitialLoad struct {
	UserEvents       []types.Event    `json:"userEvents"`
	TeamEvents       []types.Event    `json:"teamEvents,omitempty"`
	Documents        []types.Document `json:"documents"`
	RelatedDocuments []types.Document `json:"relatedDocuments,omitempty"`
	EstimatedTokens  int              `json:"estimatedTokens"`
	Timing           LoadTiming       `json:"timing"`
}

// LoadTiming records per-phase wall time in milliseconds.
type LoadTiming struct {
	UserEventsMs int64 `json:"userEventsMs"`
	TeamEventsMs int64 `json:"teamEventsMs"`
	DocumentsMs  int64 `json:"documentsMs"`
	TotalMs      int64 `json:"totalMs"`
}

// relatedDocCap bounds document expansion regardless of depth.
const relatedDocCap = 50

var docMentionPattern = regexp.MustCompile(`\b(?:ADR|PRD|TASK)-\d+\b`)

// LoadInitialContext assembles the composite snapshot: the caller's
// recent events, optionally the shared team feed, documents mentioned by
// id in either, and documents reachable from those within DocumentDepth
// hops. Read-only; any consistent snapshot serves it.
func (c *Client) LoadInitialContext(ctx context.Context, opts InitialLoadOptions) (InitialLoad, error) {
	start := time.Now()
	if opts.UserEventLimit < 1 || opts.UserEventLimit > 100 {
		opts.UserEventLimit = 20
	}
	if opts.TeamEventLimit < 1 || opts.TeamEventLimit > 50 {
		opts.TeamEventLimit = 10
	}
	if opts.DocumentDepth < 1 {
		opts.DocumentDepth = 1
	}
	if opts.DocumentDepth > 3 {
		opts.DocumentDepth = 3
	}

	load := InitialLoad{UserEvents: []types.Event{}, Documents: []types.Document{}}

	phase := time.Now()
	userEvents, err := c.userEvents(ctx, opts)
	if err != nil {
		return load, err
	}
	load.UserEvents = userEvents
	load.Timing.UserEventsMs = time.Since(phase).Milliseconds()

	if opts.IncludeTeam {
		phase = time.Now()
		teamEvents, err := c.teamEvents(ctx, opts)
		if err != nil {
			return load, err
		}
		load.TeamEvents = teamEvents
		load.Timing.TeamEventsMs = time.Since(phase).Milliseconds()
	}

	phase = time.Now()
	mentioned := map[string]bool{}
	var mentionedIDs []string
	for _, ev := range append(append([]types.Event{}, load.UserEvents...), load.TeamEvents...) {
		for _, id := range docMentionPattern.FindAllString(ev.Description, -1) {
			if !mentioned[id] {
				mentioned[id] = true
				mentionedIDs = append(mentionedIDs, id)
			}
		}
	}
	if len(mentionedIDs) > 0 {
		docs, err := c.documentsByIDs(ctx, opts.GraphID, mentionedIDs)
		if err != nil {
			return load, err
		}
		load.Documents = docs
		related, err := c.relatedDocuments(ctx, opts.GraphID, mentionedIDs, opts.DocumentDepth)
		if err != nil {
			return load, err
		}
		load.RelatedDocuments = related
	}
	load.Timing.DocumentsMs = time.Since(phase).Milliseconds()

	load.EstimatedTokens = estimateTokens(load)
	load.Timing.TotalMs = time.Since(start).Milliseconds()
	return load, nil
}

func (c *Client) userEvents(ctx context.Context, opts InitialLoadOptions) ([]types.Event, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event {graph_id: $graphId})
			WHERE e.user_id = $userId
			  AND ($projectId = '' OR e.project_id = $projectId)
			RETURN e ORDER BY e.timestamp DESC LIMIT $limit`,
			map[string]any{
				"graphId":   opts.GraphID,
				"userId":    opts.UserID,
				"projectId": opts.ProjectID,
				"limit":     opts.UserEventLimit,
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

func (c *Client) teamEvents(ctx context.Context, opts InitialLoadOptions) ([]types.Event, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event {graph_id: $graphId})
			WHERE e.category IN ['decision', 'achievement', 'git']
			  AND (e.shared = true OR e.impact = 'high')
			RETURN e ORDER BY e.timestamp DESC LIMIT $limit`,
			map[string]any{"graphId": opts.GraphID, "limit": opts.TeamEventLimit})
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

func (c *Client) documentsByIDs(ctx context.Context, graphID string, ids []string) ([]types.Document, error) {
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (d:Document {graphId: $graphId})
			WHERE d.id IN $ids
			RETURN d`,
			map[string]any{"graphId": graphID, "ids": ids})
		if err != nil {
			return nil, err
		}
		return collectDocuments(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Document), nil
}

func (c *Client) relatedDocuments(ctx context.Context, graphID string, seedIDs []string, depth int) ([]types.Document, error) {
	query := fmt.Sprintf(`
		MATCH (d:Document {graphId: $graphId})
		WHERE d.id IN $ids
		MATCH (d)-[:IMPLEMENTS|REFERENCES|DEPENDS_ON*1..%d]-(rel:Document {graphId: $graphId})
		WHERE NOT rel.id IN $ids
		RETURN DISTINCT rel AS d LIMIT %d`, depth, relatedDocCap)
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"graphId": graphID, "ids": seedIDs})
		if err != nil {
			return nil, err
		}
		return collectDocuments(ctx, res)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Document), nil
}

func collectDocuments(ctx context.Context, res neo4j.ResultWithContext) ([]types.Document, error) {
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]types.Document, 0, len(records))
	for _, rec := range records {
		props, ok := nodeProps(rec, "d")
		if !ok {
			continue
		}
		docs = append(docs, types.Document{
			ID:      stringProp(props, "id"),
			GraphID: stringProp(props, "graphId"),
			Type:    stringProp(props, "type"),
			Title:   stringProp(props, "title"),
			Content: stringProp(props, "content"),
		})
	}
	return docs, nil
}

// estimateTokens approximates the prompt cost of the payload at four
// characters per token.
func estimateTokens(load InitialLoad) int {
	chars := 0
	for _, ev := range load.UserEvents {
		chars += len(ev.Description)
	}
	for _, ev := range load.TeamEvents {
		chars += len(ev.Description)
	}
	for _, d := range load.Documents {
		chars += len(d.Content)
	}
	for _, d := range load.RelatedDocuments {
		chars += len(d.Content)
	}
	return chars / 4
}

// ActivityQuery filters the paged activity feed of one graph.
type ActivityQuery struct {
	Category string
	MemberID string
	Since    string
	Limit    int
	Offset   int
}

// GraphActivity returns a page of a graph's events, newest first, with
// a has-more flag for the pager.
func (c *Client) GraphActivity(ctx context.Context, graphID string, q ActivityQuery) ([]types.Event, bool, error) {
	if q.Limit < 1 || q.Limit > 200 {
		q.Limit = 50
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	result, err := c.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (e:Event {graph_id: $graphId})
			WHERE ($category = '' OR e.category = $category)
			  AND ($memberId = '' OR e.user_id = $memberId)
			  AND ($since = '' OR e.timestamp >= $since)
			RETURN e ORDER BY e.timestamp DESC
			SKIP $offset LIMIT $limit`,
			map[string]any{
				"graphId":  graphID,
				"category": q.Category,
				"memberId": q.MemberID,
				"since":    q.Since,
				"offset":   q.Offset,
				"limit":    q.Limit + 1,
			})
		if err != nil {
			return nil, err
		}
		return collectEvents(ctx, res)
	})
	if err != nil {
		return nil, false, err
	}
	events := result.([]types.Event)
	hasMore := false
	if len(events) > q.Limit {
		hasMore = true
		events = events[:q.Limit]
	}
	return events, hasMore, nil
}
