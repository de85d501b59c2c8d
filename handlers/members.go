package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ginko-backend/types"
)

// requireMember loads the caller's role in a team, answering 403 when
// the caller is not a member at all.
func requireMember(c *gin.Context, teamID, userID string) (types.TeamRole, bool) {
	role, found, err := Teams.MemberRole(c.Request.Context(), teamID, userID)
	if err != nil {
		storeError(c, err)
		return "", false
	}
	if !found {
		Error(c, http.StatusForbidden, types.CodeAccessDenied, "not a member of this team")
		return "", false
	}
	return role, true
}

// ListMembers handles GET /api/v1/teams/:id/members
// Members-only view. Rows missing profile data are backfilled from the
// identity provider's admin API and cached back into user_profiles.
func ListMembers(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	if !requireDB(c) {
		return
	}
	teamID := c.Param("id")
	if _, ok := requireMember(c, teamID, principal.UserID); !ok {
		return
	}

	ctx := c.Request.Context()
	members, err := Teams.Members(ctx, teamID)
	if err != nil {
		storeError(c, err)
		return
	}

	for i := range members {
		if members[i].Email != "" && members[i].DisplayName != "" {
			continue
		}
		if Directory == nil {
			break
		}
		profile, err := Directory.AdminGetProfile(ctx, members[i].UserID)
		if err != nil {
			log.Printf("Teams: profile lookup for %s failed: %v", members[i].UserID, err)
			continue
		}
		if members[i].Email == "" {
			members[i].Email = profile.Email
		}
		if members[i].DisplayName == "" {
			members[i].DisplayName = profile.DisplayName
		}
		if members[i].AvatarURL == "" {
			members[i].AvatarURL = profile.AvatarURL
		}
		if Profiles != nil {
			if err := Profiles.UpsertProfile(ctx, profile); err != nil {
				log.Printf("Teams: profile cache for %s failed: %v", profile.UserID, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"members": members, "count": len(members)})
}

// AddMember handles POST /api/v1/teams/:id/members
// Owner/admin only. Adding a member triggers a best-effort seat sync
// with the payment provider.
func AddMember(c *gin.Context) {
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
		Error(c, http.StatusForbidden, types.CodeForbidden, "only owners and admins can add members")
		return
	}

	var req struct {
		UserID string `json:"userId" binding:"required"`
		Role   string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "userId is required")
		return
	}
	memberRole := types.RoleMember
	if req.Role != "" {
		memberRole = types.TeamRole(req.Role)
		if !types.ValidTeamRole(memberRole) {
			Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "unknown team role")
			return
		}
	}

	member, err := Teams.AddMember(c.Request.Context(), teamID, req.UserID, memberRole)
	if err != nil {
		storeError(c, err)
		return
	}
	syncTeamSeats(teamID)

	c.JSON(http.StatusCreated, gin.H{"member": member})
}

// RemoveMember handles DELETE /api/v1/teams/:id/members/:userId
// Owners can remove anyone; everyone can remove themselves. Refuses to
// remove the last owner. Seat sync runs after the removal commits and
// never fails it.
func RemoveMember(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	if !requireDB(c) {
		return
	}
	teamID := c.Param("id")
	targetID := c.Param("userId")

	role, ok := requireMember(c, teamID, principal.UserID)
	if !ok {
		return
	}
	if role != types.RoleOwner && targetID != principal.UserID {
		Error(c, http.StatusForbidden, types.CodeForbidden, "only owners can remove other members")
		return
	}

	if err := Teams.RemoveMember(c.Request.Context(), teamID, targetID); err != nil {
		storeError(c, err)
		return
	}
	syncTeamSeats(teamID)

	c.JSON(http.StatusOK, gin.H{"success": true, "teamId": teamID, "userId": targetID})
}
