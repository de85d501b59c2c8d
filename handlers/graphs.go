package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ginko-backend/graph"
	"ginko-backend/types"
)

// documentIngestTimeout bounds the background ingestion kicked off by
// GraphInit.
const documentIngestTimeout = 2 * time.Minute

// GraphInit handles POST /api/v1/graph/init
// Creates a new graph namespace owned by the caller and kicks off
// document ingestion in the background when documents are supplied.
func GraphInit(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		ProjectName  string                `json:"projectName" binding:"required"`
		ProjectPath  string                `json:"projectPath"`
		Visibility   string                `json:"visibility"`
		Organization string                `json:"organization"`
		Documents    []graph.DocumentInput `json:"documents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "projectName is required")
		return
	}

	visibility := types.Visibility(req.Visibility)
	switch visibility {
	case "":
		visibility = types.VisibilityPrivate
	case types.VisibilityPrivate, types.VisibilityOrganization, types.VisibilityPublic:
	default:
		Error(c, http.StatusBadRequest, types.CodeInvalidStatus, "visibility must be private, organization, or public")
		return
	}

	now := types.FormatTimestamp(time.Now())
	g := types.Graph{
		GraphID:        uuid.NewString(),
		Namespace:      graph.NamespaceFor(req.ProjectName),
		ProjectName:    req.ProjectName,
		ProjectPath:    req.ProjectPath,
		Visibility:     visibility,
		Organization:   req.Organization,
		UserID:         principal.UserID,
		DocumentCounts: map[string]int{},
		Status:         types.GraphStatusReady,
		TotalDocuments: len(req.Documents),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, doc := range req.Documents {
		g.DocumentCounts[doc.Type]++
	}
	if len(req.Documents) > 0 {
		g.Status = types.GraphStatusInitializing
	}

	if err := Graphs.CreateGraph(c.Request.Context(), g); err != nil {
		graphError(c, err)
		return
	}

	if len(req.Documents) > 0 {
		docs := req.Documents
		graphID := g.GraphID
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), documentIngestTimeout)
			defer cancel()
			if err := Graphs.IngestDocuments(ctx, graphID, docs, types.FormatTimestamp(time.Now())); err != nil {
				log.Printf("GraphInit: document ingestion failed for %s: %v", graphID, err)
			}
		}()
	}

	c.JSON(http.StatusCreated, gin.H{
		"graphId":                 g.GraphID,
		"namespace":               g.Namespace,
		"status":                  g.Status,
		"estimatedProcessingTime": estimatedProcessingTime(len(req.Documents)),
		"createdAt":               g.CreatedAt,
	})
}

func estimatedProcessingTime(docCount int) string {
	if docCount == 0 {
		return "0s"
	}
	// Ingestion merges roughly ten documents per second.
	secs := docCount/10 + 1
	return fmt.Sprintf("%ds", secs)
}

// looksLikeTestProject filters throwaway namespaces out of default-graph
// selection.
func looksLikeTestProject(g types.Graph) bool {
	name := strings.ToLower(g.ProjectName + " " + g.Namespace)
	return strings.Contains(name, "test") || strings.Contains(name, "demo") || strings.Contains(name, "sandbox")
}

// UserGraph handles GET /api/v1/user/graph
// Lists graphs the caller owns plus graphs of teams where the caller
// holds an owner or admin role. Plain members resolve graphs by
// explicit id, not by listing.
func UserGraph(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	owned, err := Graphs.GraphsByOwner(ctx, principal.UserID)
	if err != nil {
		graphError(c, err)
		return
	}

	var teamGraphs []types.Graph
	if Teams != nil {
		teams, err := Teams.TeamsForUserWithRoles(ctx, principal.UserID, []types.TeamRole{types.RoleOwner, types.RoleAdmin})
		if err != nil {
			log.Printf("UserGraph: team listing failed for %s: %v", principal.UserID, err)
		} else if len(teams) > 0 {
			ownedIDs := make(map[string]bool, len(owned))
			for _, g := range owned {
				ownedIDs[g.GraphID] = true
			}
			var ids []string
			for _, t := range teams {
				if t.GraphID != "" && !ownedIDs[t.GraphID] {
					ids = append(ids, t.GraphID)
				}
			}
			if len(ids) > 0 {
				teamGraphs, err = Graphs.GraphsByIDs(ctx, ids)
				if err != nil {
					graphError(c, err)
					return
				}
			}
		}
	}

	defaultGraphID, source := pickDefaultGraph(owned, teamGraphs)
	if defaultGraphID == "" && DefaultGraphID != "" {
		defaultGraphID = DefaultGraphID
	}

	projects := make([]types.Graph, 0, len(owned)+len(teamGraphs))
	projects = append(projects, owned...)
	projects = append(projects, teamGraphs...)

	c.JSON(http.StatusOK, gin.H{
		"defaultGraphId": defaultGraphID,
		"source":         source,
		"projects":       projects,
	})
}

// pickDefaultGraph prefers owned, non-test-named projects, then any
// owned project, then team graphs.
func pickDefaultGraph(owned, teamGraphs []types.Graph) (string, string) {
	for _, g := range owned {
		if !looksLikeTestProject(g) {
			return g.GraphID, "owner"
		}
	}
	if len(owned) > 0 {
		return owned[0].GraphID, "owner"
	}
	if len(teamGraphs) > 0 {
		return teamGraphs[0].GraphID, "team_member"
	}
	return "", "none"
}

// MembershipSync handles POST /api/v1/graph/membership/sync
// Stamps last_sync_at on the caller's membership in the graph's team.
func MembershipSync(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}
	if !requireDB(c) {
		return
	}

	graphID := c.Query("graphId")
	var req struct {
		GraphID  string `json:"graphId"`
		SyncedAt string `json:"syncedAt"`
	}
	// Body is optional for this endpoint.
	_ = c.ShouldBindJSON(&req)
	if graphID == "" {
		graphID = req.GraphID
	}
	if graphID == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId is required")
		return
	}

	syncedAt := time.Now()
	if req.SyncedAt != "" {
		t, err := types.ParseTimestamp(req.SyncedAt)
		if err != nil {
			Error(c, http.StatusBadRequest, types.CodeMissingField, "syncedAt must be an RFC3339 timestamp")
			return
		}
		syncedAt = t
	}

	updated, err := Teams.UpdateLastSyncByGraph(c.Request.Context(), graphID, principal.UserID, syncedAt)
	if err != nil {
		storeError(c, err)
		return
	}
	if !updated {
		Error(c, http.StatusNotFound, types.CodeMemberNotFound, "caller has no team membership for this graph")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"graphId":  graphID,
		"syncedAt": types.FormatTimestamp(syncedAt),
	})
}
