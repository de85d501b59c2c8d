package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ginko-backend/types"
)

// CreateCheckpoint handles POST /api/v1/checkpoint
// Checkpoints are append-only progress markers agents leave on a task.
func CreateCheckpoint(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID       string   `json:"graphId" binding:"required"`
		TaskID        string   `json:"taskId" binding:"required"`
		AgentID       string   `json:"agentId"`
		GitCommit     string   `json:"gitCommit"`
		FilesModified []string `json:"filesModified"`
		EventsSince   int      `json:"eventsSince"`
		Message       string   `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId and taskId are required")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityWrite); !ok {
		return
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = principal.UserID
	}
	cp, err := Checkpoints.CreateCheckpoint(c.Request.Context(), types.Checkpoint{
		ID:            "cp_" + uuid.NewString(),
		GraphID:       req.GraphID,
		TaskID:        req.TaskID,
		AgentID:       agentID,
		GitCommit:     req.GitCommit,
		FilesModified: req.FilesModified,
		EventsSince:   req.EventsSince,
		Message:       req.Message,
		CreatedAt:     types.FormatTimestamp(time.Now()),
	})
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"checkpoint": cp})
}

// ListCheckpoints handles GET /api/v1/checkpoints
// Newest first, optionally narrowed to one task.
func ListCheckpoints(c *gin.Context) {
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

	limit := clampLimit(c.Query("limit"), defaultReadLimit, maxReadLimit)
	checkpoints, err := Checkpoints.Checkpoints(c.Request.Context(), graphID, c.Query("taskId"), limit)
	if err != nil {
		graphError(c, err)
		return
	}
	if checkpoints == nil {
		checkpoints = []types.Checkpoint{}
	}
	c.JSON(http.StatusOK, gin.H{"checkpoints": checkpoints})
}
