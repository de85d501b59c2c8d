package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/graph"
	"ginko-backend/types"
)

// CheckEpicID handles POST /api/v1/epic/check
// Conflict detection for a proposed epic id before the CLI commits one.
func CheckEpicID(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	graphID := c.Query("graphId")
	rawID := c.Query("id")
	if graphID == "" || rawID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and id are required")
		return
	}
	epicID, err := types.NormalizeEpicID(rawID)
	if err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, err.Error())
		return
	}
	if _, ok := checkAccess(c, principal, graphID, types.CapabilityRead); !ok {
		return
	}

	check, err := Epics.CheckEpicID(c.Request.Context(), graphID, epicID)
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusOK, check)
}

// CreateEpic handles POST /api/v1/epic
// A supplied id is normalized to EPIC-### and collides with 409; an
// omitted id gets the next free number.
func CreateEpic(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID string `json:"graphId" binding:"required"`
		ID      string `json:"id"`
		Title   string `json:"title" binding:"required"`
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and title are required")
		return
	}

	epicID := ""
	if req.ID != "" {
		normalized, err := types.NormalizeEpicID(req.ID)
		if err != nil {
			Error(c, http.StatusBadRequest, types.CodeMissingField, err.Error())
			return
		}
		epicID = normalized
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	now := types.FormatTimestamp(time.Now())
	epic, err := Epics.CreateEpic(c.Request.Context(), types.Epic{
		ID:        epicID,
		GraphID:   req.GraphID,
		Title:     req.Title,
		Content:   req.Content,
		Status:    types.EpicDraft,
		CreatedBy: principal.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"epic": epic})
}

// UpdateEpicStatus handles PATCH /api/v1/epic/:id/status
func UpdateEpicStatus(c *gin.Context) {
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
	status := types.EpicStatus(req.Status)
	if !types.ValidEpicStatus(status) {
		Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "unknown epic status")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	epicID, err := types.NormalizeEpicID(c.Param("id"))
	if err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, err.Error())
		return
	}

	now := types.FormatTimestamp(time.Now())
	epic, previous, changed, err := Epics.UpdateEpicStatus(c.Request.Context(), req.GraphID, epicID, status, principal.UserID, now)
	if err != nil {
		graphError(c, err)
		return
	}

	if changed {
		emitEntityTransition("epic", epicID, req.GraphID, string(previous), string(epic.Status), req.Reason, principal.UserID, now)
	}
	c.JSON(http.StatusOK, gin.H{
		"epic":           epic,
		"previousStatus": previous,
		"changed":        changed,
	})
}

// emitEntityTransition is the epic/sprint sibling of emitTaskTransition:
// same status_change discipline, no user-activity mapping.
func emitEntityTransition(entityType, entityID, graphID, oldStatus, newStatus, reason, userID, now string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	_, err := Activity.EmitStatusChange(ctx, graph.StatusChange{
		EntityType: entityType,
		EntityID:   entityID,
		GraphID:    graphID,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
		ChangedBy:  userID,
		Reason:     reason,
		Timestamp:  now,
	})
	if err != nil {
		log.Printf("Epics: status_change emission failed for %s %s/%s: %v", entityType, graphID, entityID, err)
		return
	}
	if StreamHub != nil {
		StreamHub.NotifyAppend(graphID)
	}
}
