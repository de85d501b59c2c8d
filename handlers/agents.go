package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/types"
)

// AgentHeartbeat handles POST /api/v1/agent/heartbeat
// Upserts the agent's lastHeartbeat. The external stale-agent reaper
// reads this freshness signal to decide which claims to release.
func AgentHeartbeat(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		AgentID string `json:"agentId"`
	}
	// Body is optional; a bare heartbeat refreshes the caller's own
	// agent identity.
	_ = c.ShouldBindJSON(&req)
	agentID := req.AgentID
	if agentID == "" {
		agentID = principal.UserID
	}

	agent, err := Agents.AgentHeartbeat(c.Request.Context(), agentID, principal.OrganizationID, types.FormatTimestamp(time.Now()))
	if err != nil {
		graphError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agent": agent})
}
