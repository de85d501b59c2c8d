package types

// TeamRole values, ordered from most to least privileged.
type TeamRole string

const (
	RoleOwner  TeamRole = "owner"
	RoleAdmin  TeamRole = "admin"
	RoleMember TeamRole = "member"
	RoleViewer TeamRole = "viewer"
)

// ValidTeamRole reports whether r is a known role.
func ValidTeamRole(r TeamRole) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// CapabilitiesForRole maps a team role onto graph capabilities.
// Write always implies read so capability checks stay monotonic.
func CapabilitiesForRole(r TeamRole) []Capability {
	switch r {
	case RoleOwner, RoleAdmin:
		return []Capability{CapabilityRead, CapabilityWrite, CapabilityAdmin}
	case RoleMember:
		return []Capability{CapabilityRead, CapabilityWrite}
	case RoleViewer:
		return []Capability{CapabilityRead}
	}
	return nil
}

// OwnerCapabilities is the capability set of a graph's owning user.
func OwnerCapabilities() []Capability {
	return []Capability{CapabilityRead, CapabilityWrite, CapabilityAdmin}
}

// Team links a named group of members to one graph namespace.
type Team struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	GraphID        string `json:"graph_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// TeamMember is one user's membership in a team.
type TeamMember struct {
	TeamID     string   `json:"team_id"`
	UserID     string   `json:"user_id"`
	Role       TeamRole `json:"role"`
	JoinedAt   string   `json:"joined_at,omitempty"`
	LastSyncAt string   `json:"last_sync_at,omitempty"`

	// Profile fields, filled from user_profiles or the identity
	// provider's admin API when listing members.
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// InvitationStatus values.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

// TeamInvitation is a redeemable invite code for one team.
type TeamInvitation struct {
	ID         string           `json:"id"`
	TeamID     string           `json:"team_id"`
	TeamName   string           `json:"team_name,omitempty"`
	Code       string           `json:"code"`
	Email      string           `json:"email,omitempty"`
	Role       TeamRole         `json:"role"`
	Status     InvitationStatus `json:"status"`
	ExpiresAt  string           `json:"expires_at"`
	CreatedBy  string           `json:"created_by,omitempty"`
	CreatedAt  string           `json:"created_at,omitempty"`
	AcceptedAt string           `json:"accepted_at,omitempty"`
	AcceptedBy string           `json:"accepted_by,omitempty"`
}

// UserProfile mirrors the identity provider's public profile fields.
type UserProfile struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
