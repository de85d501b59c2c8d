package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ginko-backend/types"
)

const defaultInvitationTTL = 7 * 24 * time.Hour

// CreateInvitation handles POST /api/v1/teams/:id/invitations
// Owner/admin mints a single-use join code for an email address.
func CreateInvitation(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	if !requireDB(c) {
		return
	}
	teamID := c.Param("id")
	role, ok := requireMember(c, teamID, principal.UserID)
	if !ok {
		return
	}
	if role != types.RoleOwner && role != types.RoleAdmin {
		Error(c, http.StatusForbidden, types.CodeForbidden, "only owners and admins can invite members")
		return
	}

	var req struct {
		Email         string `json:"email" binding:"required"`
		Role          string `json:"role"`
		ExpiresInDays int    `json:"expiresInDays"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "email is required")
		return
	}
	inviteRole := types.RoleMember
	if req.Role != "" {
		inviteRole = types.TeamRole(req.Role)
		if !types.ValidTeamRole(inviteRole) {
			Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "unknown team role")
			return
		}
	}
	ttl := defaultInvitationTTL
	if req.ExpiresInDays > 0 {
		ttl = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	now := time.Now().UTC()
	inv := types.TeamInvitation{
		TeamID:    teamID,
		Code:      uuid.NewString(),
		Email:     req.Email,
		Role:      inviteRole,
		Status:    types.InvitationPending,
		ExpiresAt: types.FormatTimestamp(now.Add(ttl)),
		CreatedBy: principal.UserID,
	}
	created, err := Teams.CreateInvitation(c.Request.Context(), inv)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitation": created})
}
