package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/graph"
	"ginko-backend/types"
)

// sideEffectTimeout bounds the post-commit emission work so it never
// outlives the process shutdown grace period.
const sideEffectTimeout = 10 * time.Second

// CreateTask handles POST /api/v1/task
// Creates a task at not_started. A caller-supplied id is idempotent;
// without one the graph assigns the next sequential TASK-###.
func CreateTask(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID  string `json:"graphId" binding:"required"`
		ID       string `json:"id"`
		Title    string `json:"title" binding:"required"`
		SprintID string `json:"sprintId"`
		EpicID   string `json:"epicId"`
		Assignee string `json:"assignee"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and title are required")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	now := types.FormatTimestamp(time.Now())
	task := types.Task{
		ID:              strings.ToUpper(strings.TrimSpace(req.ID)),
		GraphID:         req.GraphID,
		Title:           req.Title,
		Status:          types.TaskNotStarted,
		StatusUpdatedAt: now,
		StatusUpdatedBy: principal.UserID,
		Assignee:        req.Assignee,
		SprintID:        req.SprintID,
		EpicID:          req.EpicID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	stored, created, err := Tasks.CreateTask(c.Request.Context(), task)
	if err != nil {
		graphError(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"task": stored, "created": created})
}

// GetTaskStatus handles GET /api/v1/task/:id/status
func GetTaskStatus(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	graphID := c.Query("graphId")
	if graphID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId is required")
		return
	}
	if _, ok := checkAccess(c, principal, graphID, types.CapabilityRead); !ok {
		return
	}

	task, err := Tasks.TaskByID(c.Request.Context(), graphID, c.Param("id"))
	if err != nil {
		graphError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":          task.ID,
		"status":          task.Status,
		"blocked_reason":  task.BlockedReason,
		"statusUpdatedAt": task.StatusUpdatedAt,
		"statusUpdatedBy": task.StatusUpdatedBy,
		"claimedByAgent":  task.ClaimedByAgent,
	})
}

// UpdateTaskStatus handles PATCH /api/v1/task/:id/status
// Runs the transition in one write transaction, then emits the
// status_change event and the caller's activity row as post-commit
// best-effort side effects.
func UpdateTaskStatus(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID string `json:"graphId" binding:"required"`
		Status  string `json:"status" binding:"required"`
		Reason  string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and status are required")
		return
	}
	status := types.TaskStatus(req.Status)
	if !types.ValidTaskStatus(status) {
		Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "status must be one of not_started, in_progress, blocked, complete")
		return
	}
	if status == types.TaskBlocked && strings.TrimSpace(req.Reason) == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingBlockedReason, "blocking a task requires a reason")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	taskID := c.Param("id")
	now := types.FormatTimestamp(time.Now())
	upd, err := Tasks.UpdateTaskStatus(c.Request.Context(), req.GraphID, taskID, status, req.Reason, principal.UserID, now)
	if err != nil {
		graphError(c, err)
		return
	}

	resp := gin.H{
		"task":           upd.Task,
		"previousStatus": upd.Previous,
		"changed":        upd.Changed,
	}
	if upd.Changed {
		emitTaskTransition(req.GraphID, taskID, upd, req.Reason, principal.UserID, now)
	}
	c.JSON(http.StatusOK, resp)
}

// emitTaskTransition records the status_change event and the user
// activity row after the transition committed. Failures are logged,
// never surfaced: the transition already happened.
func emitTaskTransition(graphID, taskID string, upd graph.StatusUpdate, reason, userID, now string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	_, err := Activity.EmitStatusChange(ctx, graph.StatusChange{
		EntityType: "task",
		EntityID:   taskID,
		GraphID:    graphID,
		OldStatus:  string(upd.Previous),
		NewStatus:  string(upd.Task.Status),
		ChangedBy:  userID,
		Reason:     reason,
		Timestamp:  now,
	})
	if err != nil {
		log.Printf("Tasks: status_change emission failed for %s/%s: %v", graphID, taskID, err)
	} else if StreamHub != nil {
		StreamHub.NotifyAppend(graphID)
	}

	if activity := types.ActivityForStatus(upd.Task.Status); activity != "" {
		if _, err := Activity.UpsertUserActivity(ctx, graphID, userID, activity, now); err != nil {
			log.Printf("Tasks: activity upsert failed for %s/%s: %v", graphID, userID, err)
		}
	}
}

// ClaimTask handles POST /api/v1/task/:id/claim
// At most one agent holds a claim; the losing racer gets 409.
func ClaimTask(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID string `json:"graphId" binding:"required"`
		AgentID string `json:"agentId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId is required")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}
	agentID := req.AgentID
	if agentID == "" {
		agentID = principal.UserID
	}

	now := types.FormatTimestamp(time.Now())
	task, err := Tasks.ClaimTask(c.Request.Context(), req.GraphID, c.Param("id"), agentID, principal.OrganizationID, now)
	if err != nil {
		graphError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"task":      task,
		"claimedBy": agentID,
		"claimedAt": now,
	})
}

// ReleaseTask handles POST /api/v1/task/:id/release
// Only the claim holder may release. The response's taskStatus is the
// external "available" label, not a stored state.
func ReleaseTask(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID string `json:"graphId" binding:"required"`
		AgentID string `json:"agentId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and agentId are required")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	now := types.FormatTimestamp(time.Now())
	outcome, err := Tasks.ReleaseTask(c.Request.Context(), req.GraphID, c.Param("id"), req.AgentID, now)
	if err != nil {
		graphError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"taskStatus":  "available",
		"wasClaimed":  outcome.WasClaimed,
		"agentStatus": agentStatusAfterRelease(outcome.RemainingClaims),
	})
}

func agentStatusAfterRelease(remainingClaims int) types.AgentStatus {
	if remainingClaims > 0 {
		return types.AgentBusy
	}
	return types.AgentIdle
}

// TaskActivity handles GET /api/v1/task/:id/activity
// Returns the hotness score, level, counts, and recent events.
func TaskActivity(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	graphID := c.Query("graphId")
	if graphID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId is required")
		return
	}
	if _, ok := checkAccess(c, principal, graphID, types.CapabilityRead); !ok {
		return
	}

	taskID := c.Param("id")
	ctx := c.Request.Context()
	if _, err := Tasks.TaskByID(ctx, graphID, taskID); err != nil {
		graphError(c, err)
		return
	}

	now := time.Now()
	since := types.FormatTimestamp(now.Add(-7 * 24 * time.Hour))
	events, err := Tasks.TaskRecentEvents(ctx, graphID, taskID, since, 100)
	if err != nil {
		graphError(c, err)
		return
	}

	c.JSON(http.StatusOK, graph.ActivityReport(taskID, events, now))
}
