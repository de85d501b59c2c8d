package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ginko-backend/graph"
	"ginko-backend/types"
)

// InitialLoad handles GET /api/v1/context/initial-load
// One-round-trip session snapshot: the caller's recent events, the shared
// team feed when requested, and the documents reachable from both. The
// graph scope comes from graphId, or from cursorId for legacy callers.
func InitialLoad(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	graphID := c.Query("graphId")
	if graphID == "" {
		cursorID := c.Query("cursorId")
		if cursorID == "" {
			Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId or cursorId is required")
			return
		}
		anchorID, _, err := Events.ResolveAnchor(ctx, cursorID)
		if err != nil {
			graphError(c, err)
			return
		}
		anchor, err := Events.EventByID(ctx, anchorID)
		if err != nil {
			graphError(c, err)
			return
		}
		graphID = anchor.GraphID
	}
	if _, ok := checkAccess(c, principal, graphID, types.CapabilityRead); !ok {
		return
	}

	opts := graph.InitialLoadOptions{
		GraphID:     graphID,
		UserID:      c.DefaultQuery("userId", principal.UserID),
		ProjectID:   c.Query("projectId"),
		IncludeTeam: c.Query("teamEvents") == "true",
	}
	if raw := c.Query("userEventLimit"); raw != "" {
		opts.UserEventLimit, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("teamEventLimit"); raw != "" {
		opts.TeamEventLimit, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("documentDepth"); raw != "" {
		opts.DocumentDepth, _ = strconv.Atoi(raw)
	}

	load, err := Graphs.LoadInitialContext(ctx, opts)
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusOK, load)
}
