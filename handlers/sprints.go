package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/types"
)

// CreateSprint handles POST /api/v1/sprint
// Sprints nest under an existing epic via HAS_SPRINT.
func CreateSprint(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID string `json:"graphId" binding:"required"`
		EpicID  string `json:"epicId" binding:"required"`
		ID      string `json:"id"`
		Title   string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId, epicId, and title are required")
		return
	}
	epicID, err := types.NormalizeEpicID(req.EpicID)
	if err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, err.Error())
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	now := types.FormatTimestamp(time.Now())
	sprint, err := Epics.CreateSprint(c.Request.Context(), types.Sprint{
		ID:        req.ID,
		GraphID:   req.GraphID,
		EpicID:    epicID,
		Title:     req.Title,
		Status:    types.SprintPlanned,
		CreatedBy: principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sprint": sprint})
}

// UpdateSprintStatus handles PATCH /api/v1/sprint/:id/status
func UpdateSprintStatus(c *gin.Context) {
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
	status := types.SprintStatus(req.Status)
	if !types.ValidSprintStatus(status) {
		Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "unknown sprint status")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	now := types.FormatTimestamp(time.Now())
	sprintID := c.Param("id")
	sprint, previous, changed, err := Epics.UpdateSprintStatus(c.Request.Context(), req.GraphID, sprintID, status, principal.UserID, now)
	if err != nil {
		graphError(c, err)
		return
	}

	if changed {
		emitEntityTransition("sprint", sprintID, req.GraphID, string(previous), string(sprint.Status), req.Reason, principal.UserID, now)
	}
	c.JSON(http.StatusOK, gin.H{
		"sprint":         sprint,
		"previousStatus": previous,
		"changed":        changed,
	})
}
