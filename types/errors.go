package types

// Stable error codes returned in the error envelope. Clients switch on
// these strings; never rename a shipped code.
const (
	CodeAuthRequired = "auth_required"
	CodeAuthInvalid  = "auth_invalid"

	CodeAccessDenied = "access_denied"
	CodeForbidden    = "forbidden"

	CodeGraphNotFound      = "graph_not_found"
	CodeTaskNotFound       = "task_not_found"
	CodeCursorNotFound     = "cursor_not_found"
	CodeInvitationNotFound = "invitation_not_found"
	CodeTeamNotFound       = "team_not_found"
	CodeMemberNotFound     = "member_not_found"

	CodeMissingField         = "missing_field"
	CodeInvalidStatus        = "invalid_status"
	CodeInvalidActivityType  = "invalid_activity_type"
	CodeMissingBlockedReason = "missing_blocked_reason"

	CodeAlreadyClaimed    = "already_claimed"
	CodeAlreadyMember     = "already_member"
	CodeEpicIDConflict    = "epic_id_conflict"
	CodeInvitationExpired = "invitation_expired"

	CodeServiceUnavailable     = "service_unavailable"
	CodeAIServiceNotConfigured = "ai_service_not_configured"
	CodeAIServiceError         = "ai_service_error"

	CodeInternalError = "internal_error"
)

// APIError is the wire shape of every error response:
// {"error": {"code": ..., "message": ...}}.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps an APIError for serialization.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewErrorEnvelope builds the standard error body.
func NewErrorEnvelope(code, message string) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message}}
}
