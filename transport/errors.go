package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	clienterrors "github.com/jrsteele09/go-docs-client/internal/errors"
)

// Kind classifies a normalized API error for retry and UI decisions.
type Kind string

const (
	// KindNetwork covers transport-level failures: unreachable host,
	// timeout, connection reset. Always safe to retry.
	KindNetwork Kind = "network"
	// KindServer covers non-2xx responses with a structured body. Retried
	// only when a caller explicitly asks the resilience helper to.
	KindServer Kind = "server"
	// KindAuthExpired is terminal for the request: refresh failed or no
	// refresh token was available.
	KindAuthExpired Kind = "auth_expired"
	// KindValidation carries field-level details from a 400 response and is
	// never retried.
	KindValidation Kind = "validation"
)

// Error is the single normalized error shape every caller sees, regardless
// of whether the failure happened on the wire or on the server.
type Error struct {
	Kind       Kind            `json:"kind"`
	Code       string          `json:"code"`
	Message    string          `json:"message"`
	Details    json.RawMessage `json:"details,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	TraceID    string          `json:"trace_id,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%s, status %d)", e.Message, e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether retrying the request could ever succeed without
// caller intervention.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

// NewNetworkError wraps a transport-level failure.
func NewNetworkError(message, traceID string, cause error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Code:    "network_error",
		Message: message,
		TraceID: traceID,
		cause:   cause,
	}
}

// NewAuthExpiredError marks a request as terminally unauthenticated. It
// wraps the ErrAuthExpired sentinel so errors.Is keeps working across the
// normalization boundary.
func NewAuthExpiredError(message, traceID string) *Error {
	if message == "" {
		message = clienterrors.ErrAuthExpired.Error()
	}
	return &Error{
		Kind:       KindAuthExpired,
		Code:       "auth_expired",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		TraceID:    traceID,
		cause:      clienterrors.ErrAuthExpired,
	}
}

// serverErrorBody matches the assorted shapes the backend uses for error
// payloads: {"detail": ...}, {"error": ...}, {"message": ...}, or a bare
// field->messages map from serializer validation.
type serverErrorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// normalizeServerError maps a non-2xx response into the Error taxonomy.
func normalizeServerError(statusCode int, body []byte, traceID string) *Error {
	parsed := serverErrorBody{}
	_ = json.Unmarshal(body, &parsed)

	message := parsed.Detail
	if message == "" {
		message = parsed.Error
	}
	if message == "" {
		message = parsed.Message
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}

	code := parsed.Code
	if code == "" {
		code = fmt.Sprintf("http_%d", statusCode)
	}

	kind := KindServer
	if statusCode == http.StatusBadRequest && json.Valid(body) {
		// Serializer validation failures arrive as a 400 with a field map;
		// the UI renders them verbatim.
		kind = KindValidation
	}

	var details json.RawMessage
	if json.Valid(body) && len(body) > 0 {
		details = json.RawMessage(body)
	}

	return &Error{
		Kind:       kind,
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
		TraceID:    traceID,
	}
}

// AsError unwraps err to the normalized *Error, if there is one.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if clienterrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a normalized 401 response.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.StatusCode == http.StatusUnauthorized && apiErr.Kind != KindAuthExpired
}

// IsAuthExpired reports whether err means the session is terminally over.
func IsAuthExpired(err error) bool {
	if clienterrors.Is(err, clienterrors.ErrAuthExpired) {
		return true
	}
	apiErr, ok := AsError(err)
	return ok && apiErr.Kind == KindAuthExpired
}
