package errx

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable, caller-visible identifier of a failure class.
type Code string

const (
	CodePlanLimitReached    Code = "PLAN_LIMIT_REACHED"
	CodeToolFailure         Code = "TOOL_FAILURE"
	CodePlanCriticalFailure Code = "PLAN_CRITICAL_FAILURE"
	CodeCredentialExpired   Code = "CREDENTIAL_EXPIRED"
	CodeStoreUnavailable    Code = "STORE_UNAVAILABLE"
	CodeGenerationFailed    Code = "GENERATION_FAILED"
	CodeChannelAccessDenied Code = "CHANNEL_ACCESS_DENIED"
	CodeInvalidRequest      Code = "INVALID_REQUEST"
	CodeCancelled           Code = "REQUEST_CANCELLED"
	CodeClarification       Code = "CLARIFICATION_NEEDED"
	CodeInternal            Code = "INTERNAL_ERROR"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// DatabaseErrorMessage describes durable store failures.
	DatabaseErrorMessage = "database operation failed"
	// GenerationErrorMessage is shown when the language model call fails.
	GenerationErrorMessage = "The assistant is temporarily unavailable. Please try again shortly."
	// ReconnectMessage is surfaced verbatim when a channel credential cannot be refreshed.
	ReconnectMessage = "Access token expired and refresh failed. Please reconnect your YouTube channel."
)

// AppError wraps an underlying error with an HTTP status, a stable code and a safe message.
type AppError struct {
	Err     error
	Code    Code
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, code Code, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Code:    code,
		Status:  status,
		Message: message,
	}
}

// PolicyDenied is returned for quota exhaustion and tier violations.
func PolicyDenied(message string) *AppError {
	return New(nil, CodePlanLimitReached, http.StatusForbidden, message)
}

// ToolFailure records a non-critical tool error.
func ToolFailure(tool string, err error) *AppError {
	return New(err, CodeToolFailure, http.StatusBadGateway, fmt.Sprintf("tool %s failed", tool))
}

// PlanCriticalFailure marks a failure that invalidates the whole response.
func PlanCriticalFailure(tool string, err error) *AppError {
	return New(err, CodePlanCriticalFailure, http.StatusBadGateway,
		fmt.Sprintf("Could not retrieve the data needed to answer (%s failed). Please try again later.", tool))
}

// CredentialExpired signals that a refresh was attempted and did not produce a usable token.
func CredentialExpired(err error) *AppError {
	return New(err, CodeCredentialExpired, http.StatusUnauthorized, ReconnectMessage)
}

// GenerationFailure wraps an error returned by the generation capability.
func GenerationFailure(err error) *AppError {
	return New(err, CodeGenerationFailed, http.StatusServiceUnavailable, GenerationErrorMessage)
}

// ChannelAccessDenied is returned when the channel is registered to another caller.
func ChannelAccessDenied(channelID string) *AppError {
	return New(nil, CodeChannelAccessDenied, http.StatusForbidden,
		fmt.Sprintf("You do not have access to channel %s.", channelID))
}

// InvalidRequest reports a malformed inbound request.
func InvalidRequest(message string) *AppError {
	return New(nil, CodeInvalidRequest, http.StatusBadRequest, message)
}

// Cancelled reports a request abandoned by timeout or client disconnect.
func Cancelled(err error) *AppError {
	return New(err, CodeCancelled, http.StatusRequestTimeout, "The request was cancelled before it completed.")
}

// ClarificationNeeded asks the creator to disambiguate; message is shown verbatim.
func ClarificationNeeded(message string) *AppError {
	return New(nil, CodeClarification, http.StatusUnprocessableEntity, message)
}

// Is reports whether the target matches the underlying error or carries the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if errors.As(target, &t) && t.Code != "" {
		return t.Code == e.Code
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// CodeOf returns the code of the first AppError in the chain, or CodeInternal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns the safe message for err, falling back to SystemErrorMessage.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}
