// Package types defines the domain types shared across the Ginko API:
// graph namespaces, events, cursors, tasks and their state machines,
// teams, and billing records.
package types

// Capability is a single access right on a graph namespace.
type Capability string

const (
	CapabilityRead  Capability = "read"
	CapabilityWrite Capability = "write"
	CapabilityAdmin Capability = "admin"
)

// Principal is the resolved identity behind a bearer credential.
type Principal struct {
	UserID         string `json:"userId"`
	OrganizationID string `json:"organizationId,omitempty"`
	Email          string `json:"email,omitempty"`
	// KeyAuth is true when the principal came from a long-lived gk_ key
	// rather than an identity-provider session token.
	KeyAuth bool `json:"-"`
}

// Access is the outcome of the access gate for one (principal, graph) pair.
type Access struct {
	HasAccess      bool         `json:"hasAccess"`
	Capabilities   []Capability `json:"capabilities,omitempty"`
	Source         string       `json:"source,omitempty"` // "owner" or "team_member"
	Role           string       `json:"role,omitempty"`
	UserID         string       `json:"userId"`
	OrganizationID string       `json:"organizationId,omitempty"`
}

// Allows reports whether the computed capability set contains want.
func (a Access) Allows(want Capability) bool {
	for _, c := range a.Capabilities {
		if c == want {
			return true
		}
	}
	return false
}

// Visibility of a graph namespace.
type Visibility string

const (
	VisibilityPrivate      Visibility = "private"
	VisibilityOrganization Visibility = "organization"
	VisibilityPublic       Visibility = "public"
)

// GraphStatus tracks namespace lifecycle from creation through document ingestion.
type GraphStatus string

const (
	GraphStatusCreated      GraphStatus = "created"
	GraphStatusInitializing GraphStatus = "initializing"
	GraphStatusReady        GraphStatus = "ready"
)

// Graph is a namespace node. Every other entity carries its graphId.
type Graph struct {
	GraphID        string         `json:"graphId"`
	Namespace      string         `json:"namespace"`
	ProjectName    string         `json:"projectName"`
	ProjectPath    string         `json:"projectPath,omitempty"`
	Visibility     Visibility     `json:"visibility"`
	Organization   string         `json:"organization,omitempty"`
	UserID         string         `json:"userId"`
	DocumentCounts map[string]int `json:"documentCounts,omitempty"`
	Status         GraphStatus    `json:"status"`
	TotalDocuments int            `json:"totalDocuments"`
	CreatedAt      string         `json:"createdAt,omitempty"`
	UpdatedAt      string         `json:"updatedAt,omitempty"`
}

// Document is a knowledge node (ADR, PRD, task spec) ingested from the
// CLI's file parser.
type Document struct {
	ID      string `json:"id"`
	GraphID string `json:"graphId"`
	Type    string `json:"type,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content,omitempty"`
}
