package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TaskStatus values. "available" is deliberately absent: it is an
// external label meaning "no current claim", never a stored state.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskComplete   TaskStatus = "complete"
)

// ValidTaskStatus reports whether s is a storable task status.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskNotStarted, TaskInProgress, TaskBlocked, TaskComplete:
		return true
	}
	return false
}

// taskTransitions is the task state machine. Resets to not_started are
// disallowed from every state, blocked is only reachable from
// in_progress, and complete is terminal.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskNotStarted: {TaskInProgress},
	TaskInProgress: {TaskBlocked, TaskComplete},
	TaskBlocked:    {TaskInProgress},
	TaskComplete:   {},
}

// CanTransitionTask reports whether from → to is a legal task
// transition. Identical statuses are legal no-ops handled upstream.
func CanTransitionTask(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is a unit of work inside a graph namespace.
type Task struct {
	ID              string     `json:"id"`
	GraphID         string     `json:"graph_id"`
	Title           string     `json:"title"`
	Status          TaskStatus `json:"status"`
	StatusUpdatedAt string     `json:"status_updated_at,omitempty"`
	StatusUpdatedBy string     `json:"status_updated_by,omitempty"`
	BlockedReason   string     `json:"blocked_reason,omitempty"`
	Assignee        string     `json:"assignee,omitempty"`
	ClaimedByAgent  string     `json:"claimed_by_agent,omitempty"`
	SprintID        string     `json:"sprint_id,omitempty"`
	EpicID          string     `json:"epic_id,omitempty"`
	CreatedAt       string     `json:"created_at,omitempty"`
	UpdatedAt       string     `json:"updated_at,omitempty"`
}

// EpicStatus values.
type EpicStatus string

const (
	EpicDraft      EpicStatus = "draft"
	EpicProposed   EpicStatus = "proposed"
	EpicCommitted  EpicStatus = "committed"
	EpicInProgress EpicStatus = "in_progress"
	EpicComplete   EpicStatus = "complete"
	EpicPaused     EpicStatus = "paused"
)

// ValidEpicStatus reports whether s is a known epic status.
func ValidEpicStatus(s EpicStatus) bool {
	switch s {
	case EpicDraft, EpicProposed, EpicCommitted, EpicInProgress, EpicComplete, EpicPaused:
		return true
	}
	return false
}

// Epic groups sprints and tasks under one initiative.
type Epic struct {
	ID        string     `json:"id"`
	GraphID   string     `json:"graphId"`
	Title     string     `json:"title"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt string     `json:"createdAt,omitempty"`
	UpdatedAt string     `json:"updatedAt,omitempty"`
	Status    EpicStatus `json:"status"`
	Content   string     `json:"content,omitempty"`
}

var epicIDPattern = regexp.MustCompile(`(?i)^epic-(\d+)$`)

// NormalizeEpicID canonicalizes a proposed epic id to EPIC-### with a
// zero-padded integer. Bare integers are accepted too.
func NormalizeEpicID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty epic id")
	}
	digits := trimmed
	if m := epicIDPattern.FindStringSubmatch(trimmed); m != nil {
		digits = m[1]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return "", fmt.Errorf("epic id %q is not EPIC-<number>", raw)
	}
	return fmt.Sprintf("EPIC-%03d", n), nil
}

// SprintStatus values.
type SprintStatus string

const (
	SprintPlanned  SprintStatus = "planned"
	SprintActive   SprintStatus = "active"
	SprintComplete SprintStatus = "complete"
	SprintPaused   SprintStatus = "paused"
)

// ValidSprintStatus reports whether s is a known sprint status.
func ValidSprintStatus(s SprintStatus) bool {
	switch s {
	case SprintPlanned, SprintActive, SprintComplete, SprintPaused:
		return true
	}
	return false
}

// Sprint is a time-boxed slice of an epic.
type Sprint struct {
	ID        string       `json:"id"`
	GraphID   string       `json:"graphId"`
	EpicID    string       `json:"epicId"`
	Title     string       `json:"title"`
	Status    SprintStatus `json:"status"`
	CreatedBy string       `json:"createdBy,omitempty"`
	CreatedAt string       `json:"createdAt,omitempty"`
	UpdatedAt string       `json:"updatedAt,omitempty"`
}

// AgentStatus values.
type AgentStatus string

const (
	AgentActive AgentStatus = "active"
	AgentBusy   AgentStatus = "busy"
	AgentIdle   AgentStatus = "idle"
	AgentStale  AgentStatus = "stale"
)

// Agent is an autonomous worker identity. A busy agent holds at least
// one task claim.
type Agent struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id,omitempty"`
	Status         AgentStatus `json:"status"`
	LastHeartbeat  string      `json:"lastHeartbeat,omitempty"`
	CreatedAt      string      `json:"created_at,omitempty"`
}

// Checkpoint is an append-only progress marker an agent records against
// a task.
type Checkpoint struct {
	ID            string   `json:"id"`
	GraphID       string   `json:"graphId"`
	TaskID        string   `json:"taskId"`
	AgentID       string   `json:"agentId"`
	GitCommit     string   `json:"gitCommit,omitempty"`
	FilesModified []string `json:"filesModified,omitempty"`
	EventsSince   int      `json:"eventsSince"`
	Message       string   `json:"message,omitempty"`
	CreatedAt     string   `json:"createdAt"`
}

// ActivityType labels the last thing a user did in a graph.
type ActivityType string

const (
	ActivitySessionStart ActivityType = "session_start"
	ActivityTaskStart    ActivityType = "task_start"
	ActivityTaskComplete ActivityType = "task_complete"
	ActivityTaskBlock    ActivityType = "task_block"
	ActivityEventLogged  ActivityType = "event_logged"
)

// ValidActivityType reports whether t is a known activity type.
func ValidActivityType(t ActivityType) bool {
	switch t {
	case ActivitySessionStart, ActivityTaskStart, ActivityTaskComplete,
		ActivityTaskBlock, ActivityEventLogged:
		return true
	}
	return false
}

// ActivityForStatus maps a task transition to the activity it records.
// Transitions with no activity mapping return "".
func ActivityForStatus(s TaskStatus) ActivityType {
	switch s {
	case TaskInProgress:
		return ActivityTaskStart
	case TaskComplete:
		return ActivityTaskComplete
	case TaskBlocked:
		return ActivityTaskBlock
	}
	return ""
}

// UserActivity is one row per (graphId, userId), upserted on every
// recorded action.
type UserActivity struct {
	GraphID          string       `json:"graphId"`
	UserID           string       `json:"userId"`
	LastActivityAt   string       `json:"lastActivityAt"`
	LastActivityType ActivityType `json:"lastActivityType"`
	SessionCount     int          `json:"sessionCount"`
}

// HotnessLevel buckets a hotness score.
type HotnessLevel string

const (
	HotnessCold    HotnessLevel = "cold"
	HotnessWarm    HotnessLevel = "warm"
	HotnessHot     HotnessLevel = "hot"
	HotnessBlazing HotnessLevel = "blazing"
)

// TaskActivity is the hotness report for one task.
type TaskActivity struct {
	TaskID         string       `json:"taskId"`
	Hotness        int          `json:"hotness"`
	Level          HotnessLevel `json:"level"`
	EventCount24h  int          `json:"eventCount24h"`
	EventCount7d   int          `json:"eventCount7d"`
	LastActivityAt string       `json:"lastActivityAt,omitempty"`
	RecentEvents   []Event      `json:"recentEvents"`
}
