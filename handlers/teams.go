package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ginko-backend/store"
	"ginko-backend/types"
)

// redeemableInvitation validates that an invitation can still be
// previewed or accepted. Invitations past their expiry are flipped to
// expired as a side effect so later lookups fail fast.
func redeemableInvitation(c *gin.Context, inv types.TeamInvitation, now time.Time) bool {
	if inv.Status != types.InvitationPending {
		Error(c, http.StatusGone, types.CodeInvitationExpired, "invitation is no longer valid")
		return false
	}
	expires, err := types.ParseTimestamp(inv.ExpiresAt)
	if err == nil && now.After(expires) {
		if err := Teams.MarkInvitationStatus(c.Request.Context(), inv.ID, types.InvitationExpired); err != nil {
			log.Printf("Teams: failed to expire invitation %s: %v", inv.ID, err)
		}
		Error(c, http.StatusGone, types.CodeInvitationExpired, "invitation has expired")
		return false
	}
	return true
}

// JoinPreview handles GET /api/v1/team/join
// Shows the team an invitation code resolves to, without redeeming it.
func JoinPreview(c *gin.Context) {
	if _, ok := mustPrincipal(c); !ok {
		return
	}
	if !requireDB(c) {
		return
	}
	code := c.Query("code")
	if code == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "code is required")
		return
	}

	inv, err := Teams.InvitationByCode(c.Request.Context(), code)
	if err != nil {
		storeError(c, err)
		return
	}
	if !redeemableInvitation(c, inv, time.Now().UTC()) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"teamId":    inv.TeamID,
		"teamName":  inv.TeamName,
		"role":      inv.Role,
		"email":     inv.Email,
		"expiresAt": inv.ExpiresAt,
	})
}

// JoinAccept handles POST /api/v1/team/join
// Redeems an invitation code for the authenticated user. Any
// authenticated user may redeem a valid code; the invitation email is
// recorded but not enforced.
func JoinAccept(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	if !requireDB(c) {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "code is required")
		return
	}

	ctx := c.Request.Context()
	now := time.Now().UTC()
	inv, err := Teams.InvitationByCode(ctx, req.Code)
	if err != nil {
		storeError(c, err)
		return
	}
	if !redeemableInvitation(c, inv, now) {
		return
	}

	member, err := Teams.AcceptInvitation(ctx, inv, principal.UserID, now)
	if errors.Is(err, store.ErrAlreadyMember) {
		role, _, roleErr := Teams.MemberRole(ctx, inv.TeamID, principal.UserID)
		if roleErr != nil {
			log.Printf("Teams: role lookup after duplicate join failed: %v", roleErr)
		}
		c.JSON(http.StatusConflict, gin.H{
			"error": types.APIError{Code: types.CodeAlreadyMember, Message: "already a member of this team"},
			"role":  role,
		})
		return
	}
	if err != nil {
		storeError(c, err)
		return
	}

	if Profiles != nil && principal.Email != "" {
		profile := types.UserProfile{UserID: principal.UserID, Email: principal.Email}
		if err := Profiles.UpsertProfile(ctx, profile); err != nil {
			log.Printf("Teams: profile upsert for %s failed: %v", principal.UserID, err)
		}
	}
	syncTeamSeats(inv.TeamID)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"teamId":   inv.TeamID,
		"teamName": inv.TeamName,
		"member":   member,
	})
}

// syncTeamSeats reconciles the provider's subscription quantity after a
// membership change. Failures are logged, never surfaced; the membership
// write has already committed.
func syncTeamSeats(teamID string) {
	if Seats == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := Seats.SyncTeam(ctx, teamID); err != nil {
		log.Printf("Teams: seat sync for team %s failed: %v", teamID, err)
	}
}
