package models

// APIErrorType categorizes error responses so clients can branch on the
// failure class instead of parsing messages.
type APIErrorType string

const (
	GeneralErrorType    APIErrorType = "general"
	ValidationErrorType APIErrorType = "validation"
	NotFoundErrorType   APIErrorType = "not_found"
	// PermissionErrorType marks exact-alarm scheduling authorization
	// failures. Clients should offer the permission-request flow instead of
	// a generic error.
	PermissionErrorType APIErrorType = "permission_denied"
	PlatformErrorType   APIErrorType = "platform_failure"
)

// APIResponse is the envelope for all API payloads.
type APIResponse struct {
	Status    string       `json:"status"`
	Data      any          `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	ErrorType APIErrorType `json:"error_type,omitempty"`
}
