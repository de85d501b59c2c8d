package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"ginko-backend/auth"
	"ginko-backend/graph"
	"ginko-backend/store"
	"ginko-backend/types"
)

// Error writes the standard error envelope.
func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, types.NewErrorEnvelope(code, message))
}

// graphError maps graph-layer sentinels onto the wire contract. Errors
// with no mapping are logged and surface as internal_error so no driver
// detail leaks to clients.
func graphError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, graph.ErrGraphNotFound):
		Error(c, http.StatusNotFound, types.CodeGraphNotFound, "graph not found")
	case errors.Is(err, graph.ErrTaskNotFound):
		Error(c, http.StatusNotFound, types.CodeTaskNotFound, "task not found")
	case errors.Is(err, graph.ErrCursorNotFound):
		Error(c, http.StatusNotFound, types.CodeCursorNotFound, "cursor not found")
	case errors.Is(err, graph.ErrEpicNotFound), errors.Is(err, graph.ErrSprintNotFound):
		Error(c, http.StatusNotFound, types.CodeGraphNotFound, err.Error())
	case errors.Is(err, graph.ErrAlreadyClaimed):
		Error(c, http.StatusConflict, types.CodeAlreadyClaimed, err.Error())
	case errors.Is(err, graph.ErrNotClaimHolder):
		Error(c, http.StatusForbidden, types.CodeForbidden, "claim is held by another agent")
	case errors.Is(err, graph.ErrEpicIDConflict):
		Error(c, http.StatusConflict, types.CodeEpicIDConflict, err.Error())
	case errors.Is(err, graph.ErrInvalidTransition):
		Error(c, http.StatusBadRequest, types.CodeInvalidStatus, err.Error())
	case graph.IsUnavailable(err):
		Error(c, http.StatusServiceUnavailable, types.CodeServiceUnavailable, "graph store unreachable")
	default:
		log.Printf("Handler: graph operation failed: %v", err)
		Error(c, http.StatusInternalServerError, types.CodeInternalError, "internal error")
	}
}

// accessError maps gate failures. Unknown graphs read as 404 for owners
// probing typos and 403 never leaks whether the graph exists beyond
// that.
func accessError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrNoAccess):
		Error(c, http.StatusForbidden, types.CodeAccessDenied, "no access to this graph")
	case errors.Is(err, graph.ErrGraphNotFound):
		Error(c, http.StatusNotFound, types.CodeGraphNotFound, "graph not found")
	case graph.IsUnavailable(err):
		Error(c, http.StatusServiceUnavailable, types.CodeServiceUnavailable, "graph store unreachable")
	default:
		log.Printf("Handler: access check failed: %v", err)
		Error(c, http.StatusInternalServerError, types.CodeInternalError, "internal error")
	}
}

// storeError maps relational-store sentinels.
func storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrTeamNotFound):
		Error(c, http.StatusNotFound, types.CodeTeamNotFound, "team not found")
	case errors.Is(err, store.ErrInvitationNotFound):
		Error(c, http.StatusNotFound, types.CodeInvitationNotFound, "invitation not found")
	case errors.Is(err, store.ErrMemberNotFound):
		Error(c, http.StatusNotFound, types.CodeMemberNotFound, "member not found")
	case errors.Is(err, store.ErrAlreadyMember):
		Error(c, http.StatusConflict, types.CodeAlreadyMember, "user is already a member of this team")
	case errors.Is(err, store.ErrLastOwner):
		Error(c, http.StatusForbidden, types.CodeForbidden, "cannot remove the last owner of a team")
	default:
		log.Printf("Handler: store operation failed: %v", err)
		Error(c, http.StatusInternalServerError, types.CodeInternalError, "internal error")
	}
}

// requireDB guards relational-backed handlers when no database is
// configured.
func requireDB(c *gin.Context) bool {
	if Teams == nil {
		Error(c, http.StatusServiceUnavailable, types.CodeServiceUnavailable, "relational store not configured")
		return false
	}
	return true
}
