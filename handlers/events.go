package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/graph"
	"ginko-backend/stream"
	"ginko-backend/types"
)

const (
	defaultReadLimit = 50
	maxReadLimit     = 200
)

func clampLimit(raw string, def, max int) int {
	limit := def
	if raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

func splitCategories(raw string) []string {
	if raw == "" {
		return nil
	}
	var cats []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			cats = append(cats, part)
		}
	}
	return cats
}

// AppendEvent handles POST /api/v1/events
// Appends one event to its (project, branch) partition. Appends are
// idempotent under a caller-supplied id.
func AppendEvent(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req types.AppendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId, category, and description are required")
		return
	}
	if !types.ValidEventCategory(req.Category) {
		Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "unknown event category")
		return
	}

	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	ev := types.Event{
		ID:             req.ID,
		UserID:         principal.UserID,
		OrganizationID: principal.OrganizationID,
		ProjectID:      req.ProjectID,
		GraphID:        req.GraphID,
		Branch:         req.Branch,
		Timestamp:      req.Timestamp,
		Category:       req.Category,
		Description:    req.Description,
		Files:          req.Files,
		Impact:         req.Impact,
		Pressure:       req.Pressure,
		Tags:           req.Tags,
		Shared:         req.Shared,
		CommitHash:     req.CommitHash,
	}
	if ev.ID == "" {
		ev.ID = graph.MintEventID()
	}
	if ev.ProjectID == "" {
		ev.ProjectID = req.GraphID
	}
	if ev.Timestamp == "" {
		ev.Timestamp = types.FormatTimestamp(time.Now())
	} else if t, err := types.ParseTimestamp(ev.Timestamp); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "timestamp must be an RFC3339 timestamp")
		return
	} else {
		ev.Timestamp = types.FormatTimestamp(t)
	}
	if ev.Impact == "" {
		ev.Impact = types.ImpactLow
	}

	stored, created, err := Events.AppendEvent(c.Request.Context(), ev, req.CursorID)
	if err != nil {
		graphError(c, err)
		return
	}

	if created && StreamHub != nil {
		StreamHub.NotifyAppend(stored.GraphID)
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"event":         stored,
		"created":       created,
		"cursorUpdated": req.CursorID != "",
	})
}

// ListEvents handles GET /api/v1/events
// Backward read: walks the :NEXT chain from the cursor's position (or
// an event id for legacy callers) in reverse chronological order.
// Category and branch filters apply after the walk.
func ListEvents(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	cursorID := c.Query("cursorId")
	if cursorID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "cursorId is required")
		return
	}
	limit := clampLimit(c.Query("limit"), defaultReadLimit, maxReadLimit)
	categories := splitCategories(c.Query("categories"))
	branch := c.Query("branch")

	ctx := c.Request.Context()
	anchorID, cursor, err := Events.ResolveAnchor(ctx, cursorID)
	if err != nil {
		graphError(c, err)
		return
	}

	// The anchor event carries the graph scope for the access check.
	anchor, err := Events.EventByID(ctx, anchorID)
	if err != nil {
		graphError(c, err)
		return
	}
	if _, ok := checkAccess(c, principal, anchor.GraphID, types.CapabilityRead); !ok {
		return
	}

	events, err := Events.EventsBefore(ctx, anchorID, limit)
	if err != nil {
		graphError(c, err)
		return
	}

	var filtered []types.Event
	for _, ev := range events {
		if branch != "" && ev.Branch != branch {
			continue
		}
		if len(categories) > 0 {
			match := false
			for _, cat := range categories {
				if types.EventCategory(cat) == ev.Category {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		filtered = append(filtered, ev)
	}
	if filtered == nil {
		filtered = []types.Event{}
	}

	resp := gin.H{"events": filtered}
	if cursor != nil {
		resp["cursor"] = cursor
	}
	c.JSON(http.StatusOK, resp)
}

// streamQuery validates the shared parameters of the three live-stream
// endpoints and builds a seeded poller. The caller owns Close.
func streamQuery(c *gin.Context, principal types.Principal) (*stream.Poller, bool) {
	graphID := c.Query("graphId")
	if graphID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId is required")
		return nil, false
	}
	if _, ok := checkAccess(c, principal, graphID, types.CapabilityRead); !ok {
		return nil, false
	}

	filter := stream.Filter{
		Categories: splitCategories(c.Query("categories")),
		AgentID:    c.Query("agent_id"),
	}
	p := stream.NewPoller(StreamSource, StreamHub, graphID, filter)

	ctx := c.Request.Context()
	anchor := strings.TrimSpace(c.GetHeader("Last-Event-ID"))
	since := c.Query("since")
	var err error
	switch {
	case anchor != "":
		err = p.SeedAfterEvent(ctx, anchor)
	case since != "":
		if t, perr := types.ParseTimestamp(since); perr == nil {
			p.SeedTime(types.FormatTimestamp(t))
		} else {
			err = p.SeedAfterEvent(ctx, since)
		}
	default:
		err = p.SeedNow(ctx)
	}
	if err != nil {
		p.Close()
		if errors.Is(err, graph.ErrCursorNotFound) {
			Error(c, http.StatusNotFound, types.CodeCursorNotFound, "since anchor not found")
		} else {
			graphError(c, err)
		}
		return nil, false
	}
	return p, true
}

// EventStream handles GET /api/v1/events/stream
// Long-poll: waits up to waitMs for events past the anchor, returning
// an empty set with the current tail on timeout.
func EventStream(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	p, ok := streamQuery(c, principal)
	if !ok {
		return
	}
	defer p.Close()

	maxWait := stream.DefaultLongPollWait
	if raw := c.Query("waitMs"); raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			maxWait = time.Duration(ms) * time.Millisecond
		}
	}

	result, err := stream.LongPoll(c.Request.Context(), p, maxWait)
	if err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		graphError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// EventsSSE handles GET /api/v1/events/sse
func EventsSSE(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	p, ok := streamQuery(c, principal)
	if !ok {
		return
	}
	defer p.Close()

	stream.ServeSSE(c, p)
}

// EventsWS handles GET /api/v1/events/ws
func EventsWS(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	p, ok := streamQuery(c, principal)
	if !ok {
		return
	}
	defer p.Close()

	stream.ServeWS(c, p)
}
