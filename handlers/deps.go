// Package handlers provides the HTTP handlers for the Ginko API.
// Dependencies are injected through the package-level variables below;
// main wires the production clients and tests substitute fakes.
package handlers

import (
	"context"
	"time"

	"ginko-backend/graph"
	"ginko-backend/stream"
	"ginko-backend/types"
)

// GraphService covers namespace lifecycle and the composite reads.
type GraphService interface {
	CreateGraph(ctx context.Context, g types.Graph) error
	GetGraph(ctx context.Context, graphID string) (types.Graph, error)
	GraphsByOwner(ctx context.Context, userID string) ([]types.Graph, error)
	GraphsByIDs(ctx context.Context, graphIDs []string) ([]types.Graph, error)
	IngestDocuments(ctx context.Context, graphID string, docs []graph.DocumentInput, now string) error
	LoadInitialContext(ctx context.Context, opts graph.InitialLoadOptions) (graph.InitialLoad, error)
	GraphActivity(ctx context.Context, graphID string, q graph.ActivityQuery) ([]types.Event, bool, error)
}

// EventService covers the append path and cursor-anchored reads.
type EventService interface {
	AppendEvent(ctx context.Context, ev types.Event, cursorID string) (types.Event, bool, error)
	ResolveAnchor(ctx context.Context, cursorOrEventID string) (string, *types.SessionCursor, error)
	EventByID(ctx context.Context, id string) (types.Event, error)
	EventsBefore(ctx context.Context, anchorID string, limit int) ([]types.Event, error)
}

// TaskService covers task state, claims, and per-task activity reads.
type TaskService interface {
	TaskByID(ctx context.Context, graphID, taskID string) (types.Task, error)
	CreateTask(ctx context.Context, task types.Task) (types.Task, bool, error)
	UpdateTaskStatus(ctx context.Context, graphID, taskID string, status types.TaskStatus, reason, userID, now string) (graph.StatusUpdate, error)
	ClaimTask(ctx context.Context, graphID, taskID, agentID, orgID, now string) (types.Task, error)
	ReleaseTask(ctx context.Context, graphID, taskID, agentID, now string) (graph.ReleaseOutcome, error)
	TaskRecentEvents(ctx context.Context, graphID, taskID, since string, limit int) ([]types.Event, error)
}

// EpicService covers epics and the sprints nested under them.
type EpicService interface {
	CheckEpicID(ctx context.Context, graphID, epicID string) (graph.EpicCheck, error)
	CreateEpic(ctx context.Context, epic types.Epic) (types.Epic, error)
	EpicByID(ctx context.Context, graphID, epicID string) (types.Epic, error)
	UpdateEpicStatus(ctx context.Context, graphID, epicID string, status types.EpicStatus, userID, now string) (types.Epic, types.EpicStatus, bool, error)
	CreateSprint(ctx context.Context, sprint types.Sprint) (types.Sprint, error)
	UpdateSprintStatus(ctx context.Context, graphID, sprintID string, status types.SprintStatus, userID, now string) (types.Sprint, types.SprintStatus, bool, error)
}

// CheckpointService covers the append-only checkpoint log.
type CheckpointService interface {
	CreateCheckpoint(ctx context.Context, cp types.Checkpoint) (types.Checkpoint, error)
	Checkpoints(ctx context.Context, graphID, taskID string, limit int) ([]types.Checkpoint, error)
}

// AgentService covers agent liveness.
type AgentService interface {
	AgentHeartbeat(ctx context.Context, agentID, orgID, now string) (types.Agent, error)
}

// ActivityService covers the best-effort side effects of transitions.
type ActivityService interface {
	EmitStatusChange(ctx context.Context, change graph.StatusChange) (types.Event, error)
	UpsertUserActivity(ctx context.Context, graphID, userID string, activity types.ActivityType, now string) (types.UserActivity, error)
}

// TeamStore covers the relational team surface.
type TeamStore interface {
	TeamForGraph(ctx context.Context, graphID string) (*types.Team, error)
	TeamByID(ctx context.Context, teamID string) (types.Team, error)
	MemberRole(ctx context.Context, teamID, userID string) (types.TeamRole, bool, error)
	Members(ctx context.Context, teamID string) ([]types.TeamMember, error)
	AddMember(ctx context.Context, teamID, userID string, role types.TeamRole) (types.TeamMember, error)
	RemoveMember(ctx context.Context, teamID, userID string) error
	UpdateLastSyncByGraph(ctx context.Context, graphID, userID string, syncedAt time.Time) (bool, error)
	TeamsForUserWithRoles(ctx context.Context, userID string, roles []types.TeamRole) ([]types.Team, error)
	CreateInvitation(ctx context.Context, inv types.TeamInvitation) (types.TeamInvitation, error)
	InvitationByCode(ctx context.Context, code string) (types.TeamInvitation, error)
	MarkInvitationStatus(ctx context.Context, invitationID string, status types.InvitationStatus) error
	AcceptInvitation(ctx context.Context, inv types.TeamInvitation, userID string, now time.Time) (types.TeamMember, error)
}

// ProfileStore caches identity-provider profile data.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p types.UserProfile) error
}

// ProfileDirectory is the identity provider's admin lookup, used to
// backfill missing member profiles.
type ProfileDirectory interface {
	AdminGetProfile(ctx context.Context, userID string) (types.UserProfile, error)
}

// IdentityResolver turns a bearer token into a principal.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (types.Principal, error)
}

// AccessGate answers capability checks against a graph namespace.
type AccessGate interface {
	Check(ctx context.Context, principal types.Principal, graphID string, want types.Capability) (types.Access, error)
}

// SeatSyncer reconciles membership counts with the payment provider.
type SeatSyncer interface {
	SyncTeam(ctx context.Context, teamID string) error
}

// WebhookProcessor verifies and applies one inbound provider webhook.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) error
}

// Injected dependencies. main.go assigns all of these before the router
// starts; relational-backed vars stay nil when no database is
// configured and their handlers answer 503.
var (
	Graphs      GraphService
	Events      EventService
	Tasks       TaskService
	Epics       EpicService
	Checkpoints CheckpointService
	Agents      AgentService
	Activity    ActivityService

	Teams     TeamStore
	Profiles  ProfileStore
	Directory ProfileDirectory

	Identity IdentityResolver
	Access   AccessGate

	Seats   SeatSyncer
	Webhook WebhookProcessor

	StreamHub    *stream.Hub
	StreamSource stream.Source

	// DefaultGraphID backs /user/graph for callers with no graphs.
	DefaultGraphID string
)
