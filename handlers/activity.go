package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/graph"
	"ginko-backend/types"
)

// UserActivity handles POST /api/v1/user/activity
// Upserts the caller's per-graph activity row.
func UserActivity(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID      string `json:"graphId" binding:"required"`
		ActivityType string `json:"activityType" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and activityType are required")
		return
	}
	activity := types.ActivityType(req.ActivityType)
	if !types.ValidActivityType(activity) {
		Error(c, http.StatusBadRequest, types.CodeInvalidActivityType, "unknown activity type")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	row, err := Activity.UpsertUserActivity(c.Request.Context(), req.GraphID, principal.UserID,
		activity, types.FormatTimestamp(time.Now()))
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": row})
}

// TeamActivity handles GET /api/v1/team/activity
// Paged view of a team's graph events, newest first, with optional
// category, member, and since filters.
func TeamActivity(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	if !requireDB(c) {
		return
	}
	teamID := c.Query("team_id")
	if teamID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "team_id is required")
		return
	}

	ctx := c.Request.Context()
	team, err := Teams.TeamByID(ctx, teamID)
	if err != nil {
		storeError(c, err)
		return
	}
	if _, ok := checkAccess(c, principal, team.GraphID, types.CapabilityRead); !ok {
		return
	}

	q := graph.ActivityQuery{
		Category: c.Query("category"),
		MemberID: c.Query("member_id"),
		Limit:    clampLimit(c.Query("limit"), defaultReadLimit, maxReadLimit),
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			q.Offset = n
		}
	}
	if raw := c.Query("since"); raw != "" {
		t, err := types.ParseTimestamp(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, types.CodeMissingField, "since must be an RFC3339 timestamp")
			return
		}
		q.Since = types.FormatTimestamp(t)
	}

	events, hasMore, err := Graphs.GraphActivity(ctx, team.GraphID, q)
	if err != nil {
		graphError(c, err)
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	c.JSON(http.StatusOK, gin.H{
		"events":  events,
		"hasMore": hasMore,
		"limit":   q.Limit,
		"offset":  q.Offset,
	})
}
