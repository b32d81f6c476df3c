package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// DomainError represents a lobbysync error with a structured error code.
//
// Codes have the form LS-<AREA>-<NNNN>. A leading 4 in the numeric part marks
// a failure the caller caused or that repeating cannot fix; a leading 5 marks
// a transient failure.
type DomainError struct {
	Code    string // Error code (e.g., "LS-LOBBY-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Transient reports whether the code belongs to the transient (5xxx) class.
func (e *DomainError) Transient() bool {
	idx := strings.LastIndexByte(e.Code, '-')
	if idx < 0 || idx+1 >= len(e.Code) {
		return false
	}
	return e.Code[idx+1] == '5'
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsRetryable classifies an error for retry policies.
//
// Transient network failures, timeouts and 5xx responses are retryable;
// 4xx responses and queue rejections are not; cancellation is never retried;
// anything unclassified is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var de *DomainError
	if errors.As(err, &de) {
		return de.Transient()
	}
	return true
}

// IsNotFound reports whether err says the lobby does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLobbyNotFound)
}

// ============================================================================
// Transport Errors (NET / REQ)
// ============================================================================

var (
	// ErrTransientNetwork covers connection failures, timeouts and 5xx responses.
	ErrTransientNetwork = NewDomainError("LS-NET-5030", "lobby service unavailable")

	// ErrMalformedResponse indicates the service answered with an undecodable body.
	ErrMalformedResponse = NewDomainError("LS-NET-5020", "malformed response")

	// ErrClientRejected indicates the service rejected the request (4xx).
	ErrClientRejected = NewDomainError("LS-REQ-4000", "request rejected")

	// ErrLobbyNotFound indicates the lobby does not exist (404). When the id was
	// known to exist this is an authoritative deletion.
	ErrLobbyNotFound = NewDomainError("LS-LOBBY-4040", "lobby not found")
)

// ============================================================================
// Queue Errors (QUEUE)
// ============================================================================

var (
	// ErrQueueExpired indicates a mutation waited longer than its timeout before starting.
	ErrQueueExpired = NewDomainError("LS-QUEUE-4080", "mutation expired in queue")

	// ErrOperationTimeout indicates a started mutation exceeded its deadline.
	ErrOperationTimeout = NewDomainError("LS-QUEUE-5040", "mutation timed out")

	// ErrQueueCleared indicates a mutation was discarded after a critical failure.
	ErrQueueCleared = NewDomainError("LS-QUEUE-4090", "queue cleared after critical failure")

	// ErrQueueClosed indicates the queue no longer accepts or runs mutations.
	ErrQueueClosed = NewDomainError("LS-QUEUE-4100", "queue closed")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrNotInitialized indicates the session has no player yet.
	ErrNotInitialized = NewDomainError("LS-SESS-4010", "session not initialized")

	// ErrAlreadyInitialized indicates Initialize was called twice.
	ErrAlreadyInitialized = NewDomainError("LS-SESS-4090", "session already initialized")

	// ErrNotInLobby indicates the operation requires a current lobby.
	ErrNotInLobby = NewDomainError("LS-SESS-4040", "not in a lobby")
)

// ============================================================================
// Launch Errors (LAUNCH)
// ============================================================================

var (
	// ErrServerLaunchFailed indicates the server reported failed or stopped.
	ErrServerLaunchFailed = NewDomainError("LS-LAUNCH-4220", "server launch failed")

	// ErrServerLaunchTimeout indicates the server did not become ready in time.
	ErrServerLaunchTimeout = NewDomainError("LS-LAUNCH-5040", "server launch timed out")
)

// ============================================================================
// Push Errors (PUSH)
// ============================================================================

var (
	// ErrPushUnavailable indicates the push channel could not be established.
	ErrPushUnavailable = NewDomainError("LS-PUSH-5030", "push channel unavailable")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("LS-ARG-4001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("LS-ARG-4002", "missing required argument")
)
