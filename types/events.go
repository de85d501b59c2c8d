package types

import "time"

// TimestampFormat is the canonical graph timestamp layout: fixed-width
// millisecond UTC so lexicographic order on stored strings matches
// chronological order inside Cypher predicates.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// ParseTimestamp accepts canonical timestamps and, for events written by
// older clients, any RFC3339 variant.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampFormat, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// EventCategory classifies an event on the stream.
type EventCategory string

const (
	CategoryFix          EventCategory = "fix"
	CategoryFeature      EventCategory = "feature"
	CategoryDecision     EventCategory = "decision"
	CategoryInsight      EventCategory = "insight"
	CategoryGit          EventCategory = "git"
	CategoryAchievement  EventCategory = "achievement"
	CategoryStatusChange EventCategory = "status_change"
)

// ValidEventCategory reports whether c is a known category.
func ValidEventCategory(c EventCategory) bool {
	switch c {
	case CategoryFix, CategoryFeature, CategoryDecision, CategoryInsight,
		CategoryGit, CategoryAchievement, CategoryStatusChange:
		return true
	}
	return false
}

// Impact grades how consequential an event is.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Event is one immutable entry on the stream. Within a
// (project_id, branch) partition events are linearized by :NEXT edges;
// timestamp is a tiebreaker hint, not the authority.
type Event struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	OrganizationID string        `json:"organization_id,omitempty"`
	ProjectID      string        `json:"project_id"`
	GraphID        string        `json:"graph_id"`
	Branch         string        `json:"branch,omitempty"`
	Timestamp      string        `json:"timestamp"`
	Category       EventCategory `json:"category"`
	Description    string        `json:"description"`
	Files          []string      `json:"files,omitempty"`
	Impact         Impact        `json:"impact"`
	Pressure       *float64      `json:"pressure,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	Shared         bool          `json:"shared"`
	CommitHash     string        `json:"commit_hash,omitempty"`

	// Status-change payload, set only when category == status_change.
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	OldStatus  string `json:"old_status,omitempty"`
	NewStatus  string `json:"new_status,omitempty"`
	ChangedBy  string `json:"changed_by,omitempty"`
	Reason     string `json:"reason,omitempty"`

	// Extra preserves free-form fields older writers attached to the node.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// TeamVisible reports whether the event qualifies for the shared team
// feed: a decision/achievement/git event that is either explicitly
// shared or high impact.
func (e Event) TeamVisible() bool {
	switch e.Category {
	case CategoryDecision, CategoryAchievement, CategoryGit:
	default:
		return false
	}
	return e.Shared || e.Impact == ImpactHigh
}

// SessionCursor is a named read head pinned at one event.
type SessionCursor struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id,omitempty"`
	ProjectID      string `json:"project_id"`
	Branch         string `json:"branch,omitempty"`
	CurrentEventID string `json:"current_event_id"`
}

// AppendEventRequest is the caller-facing append contract. Server-minted
// fields (id when absent, user_id, timestamp) are filled from the request
// context.
type AppendEventRequest struct {
	ID          string        `json:"id,omitempty"`
	GraphID     string        `json:"graphId" binding:"required"`
	ProjectID   string        `json:"projectId,omitempty"`
	Branch      string        `json:"branch,omitempty"`
	Category    EventCategory `json:"category" binding:"required"`
	Description string        `json:"description" binding:"required"`
	Files       []string      `json:"files,omitempty"`
	Impact      Impact        `json:"impact,omitempty"`
	Pressure    *float64      `json:"pressure,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Shared      bool          `json:"shared,omitempty"`
	CommitHash  string        `json:"commitHash,omitempty"`
	CursorID    string        `json:"cursorId,omitempty"`
	Timestamp   string        `json:"timestamp,omitempty"`
}
