// Package errors provides the typed failure taxonomy for the answer pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeEmptyQuery: query formulation produced nothing usable.
	ErrCodeEmptyQuery ErrorCode = "EMPTY_QUERY"

	// ErrCodeToolUnavailable: the knowledge tool process could not be
	// started or failed to respond.
	ErrCodeToolUnavailable ErrorCode = "TOOL_UNAVAILABLE"

	// ErrCodeNoRelevantContext: the tool responded but yielded no usable
	// documents.
	ErrCodeNoRelevantContext ErrorCode = "NO_RELEVANT_CONTEXT"

	// ErrCodeSynthesisFailed: the model call over a valid context set failed.
	ErrCodeSynthesisFailed ErrorCode = "SYNTHESIS_FAILED"

	// ErrCodePersistenceWarning: history write failed after a completed run.
	ErrCodePersistenceWarning ErrorCode = "PERSISTENCE_WARNING"
)

// PipelineError represents a structured pipeline failure.
type PipelineError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("PipelineError[%s]: %s", e.Code, e.Message)
}

// NewEmptyQueryError creates a non-retryable formulation error.
func NewEmptyQueryError(details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeEmptyQuery,
		Message:   "Query formulation produced an empty query",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewToolUnavailableError creates a retryable tool transport error.
func NewToolUnavailableError(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeToolUnavailable,
		Message:   "Knowledge tool unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNoRelevantContextError creates a non-retryable retrieval outcome error.
func NewNoRelevantContextError(details string) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeNoRelevantContext,
		Message:   "No relevant context found for the query",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSynthesisFailedError creates a retryable synthesis error.
func NewSynthesisFailedError(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodeSynthesisFailed,
		Message:   "Answer synthesis failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceWarning creates a non-terminal history write warning.
func NewPersistenceWarning(err error) *PipelineError {
	return &PipelineError{
		Code:      ErrCodePersistenceWarning,
		Message:   "Failed to persist conversation record",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// IsTerminal reports whether a code aborts the run. Persistence warnings are
// logged but never propagated to the event stream as failures.
func IsTerminal(code ErrorCode) bool {
	return code != ErrCodePersistenceWarning
}

// UserMessage returns the single human-readable line shown for a failed run.
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrCodeEmptyQuery:
		return "I couldn't form a search query from that. Try rephrasing your question."
	case ErrCodeToolUnavailable:
		return "The knowledge tool isn't responding right now. Please try again shortly."
	case ErrCodeNoRelevantContext:
		return "I couldn't find anything relevant to answer that question."
	case ErrCodeSynthesisFailed:
		return "I found relevant material but couldn't compose an answer. Please try again."
	default:
		return "Something went wrong while answering. Please try again."
	}
}
