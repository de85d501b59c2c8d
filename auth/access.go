package auth

import (
	"context"
	"errors"

	"ginko-backend/types"
)

// ErrNoAccess means the principal resolved but holds no sufficient
// capability on the graph.
var ErrNoAccess = errors.New("no access to graph")

// GraphSource is the slice of the graph store the gate needs.
type GraphSource interface {
	GetGraph(ctx context.Context, graphID string) (types.Graph, error)
}

// MembershipSource is the slice of the relational store the gate needs.
// TeamForGraph returns nil when no team is linked to the graph.
type MembershipSource interface {
	TeamForGraph(ctx context.Context, graphID string) (*types.Team, error)
	MemberRole(ctx context.Context, teamID, userID string) (types.TeamRole, bool, error)
}

// Gate computes {hasAccess, capabilities} for a principal on a graph:
// ownership grants everything, team roles grant by role, everyone else
// is denied. Teams may be nil when no relational store is configured,
// which reduces the gate to ownership checks.
type Gate struct {
	Graphs GraphSource
	Teams  MembershipSource
}

// Check resolves the capability set and verifies it covers want.
// Graph-store errors pass through so handlers can distinguish a missing
// graph from an unreachable store.
func (g *Gate) Check(ctx context.Context, principal types.Principal, graphID string, want types.Capability) (types.Access, error) {
	access := types.Access{
		UserID:         principal.UserID,
		OrganizationID: principal.OrganizationID,
	}

	graph, err := g.Graphs.GetGraph(ctx, graphID)
	if err != nil {
		return access, err
	}

	if graph.UserID == principal.UserID {
		access.HasAccess = true
		access.Source = "owner"
		access.Role = string(types.RoleOwner)
		access.Capabilities = types.OwnerCapabilities()
	} else if g.Teams != nil {
		team, err := g.Teams.TeamForGraph(ctx, graphID)
		if err != nil {
			return access, err
		}
		if team != nil {
			role, found, err := g.Teams.MemberRole(ctx, team.ID, principal.UserID)
			if err != nil {
				return access, err
			}
			if found {
				access.HasAccess = true
				access.Source = "team_member"
				access.Role = string(role)
				access.Capabilities = types.CapabilitiesForRole(role)
			}
		}
	}

	if !access.HasAccess {
		return access, ErrNoAccess
	}
	if !access.Allows(want) {
		access.HasAccess = false
		return access, ErrNoAccess
	}
	return access, nil
}
