package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = fmt.Errorf("not found")
	ErrDuplicate    = fmt.Errorf("duplicate")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// LLM transport errors.
	ErrProtocol    = fmt.Errorf("protocol error")
	ErrRateLimit   = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid = fmt.Errorf("authentication failed")

	// Tool errors.
	ErrToolNotFound   = fmt.Errorf("tool not found")
	ErrToolValidation = fmt.Errorf("tool input validation failed")
	ErrToolFailure    = fmt.Errorf("tool execution failed")

	// Selection errors.
	ErrSelectionFailed = fmt.Errorf("tool selection failed")
	ErrEmbeddingFailed = fmt.Errorf("embedding generation failed")
	ErrVectorStore     = fmt.Errorf("vector store operation failed")

	// Confirmation queue errors.
	ErrQueueConflict  = fmt.Errorf("action already resolved")
	ErrActionNotFound = fmt.Errorf("pending action not found")

	// Orchestrator errors.
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrMaxIterations   = fmt.Errorf("tool-use loop reached max iterations")

	// Infra errors.
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
)

// RateLimitError wraps ErrRateLimit with the server-suggested retry delay.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimit }

// RetryAfterOf extracts the retry delay from an error chain.
// Returns 60s when the error is a rate limit without an explicit delay.
func RetryAfterOf(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	if errors.Is(err, ErrRateLimit) {
		return 60 * time.Second, true
	}
	return 0, false
}

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Queue.Approve")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// ErrorCode is a machine-parseable error category for monitoring and alerting.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeDuplicate       ErrorCode = "DUPLICATE"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeProtocol        ErrorCode = "PROTOCOL_ERROR"
	CodeRateLimit       ErrorCode = "RATE_LIMITED"
	CodeAuthInvalid     ErrorCode = "UNAUTHORIZED"
	CodeToolNotFound    ErrorCode = "TOOL_NOT_FOUND"
	CodeToolValidation  ErrorCode = "TOOL_VALIDATION"
	CodeToolFailure     ErrorCode = "TOOL_EXECUTION"
	CodeSelectionFailed ErrorCode = "SELECTION_FAILED"
	CodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"
	CodeVectorStore     ErrorCode = "VECTOR_STORE"
	CodeQueueConflict   ErrorCode = "QUEUE_CONFLICT"
	CodeActionNotFound  ErrorCode = "ACTION_NOT_FOUND"
	CodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	CodeMaxIterations   ErrorCode = "ITERATION_CAP"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:        CodeNotFound,
	ErrDuplicate:       CodeDuplicate,
	ErrInvalidInput:    CodeInvalidInput,
	ErrProtocol:        CodeProtocol,
	ErrRateLimit:       CodeRateLimit,
	ErrAuthInvalid:     CodeAuthInvalid,
	ErrToolNotFound:    CodeToolNotFound,
	ErrToolValidation:  CodeToolValidation,
	ErrToolFailure:     CodeToolFailure,
	ErrSelectionFailed: CodeSelectionFailed,
	ErrEmbeddingFailed: CodeEmbeddingFailed,
	ErrVectorStore:     CodeVectorStore,
	ErrQueueConflict:   CodeQueueConflict,
	ErrActionNotFound:  CodeActionNotFound,
	ErrSessionNotFound: CodeSessionNotFound,
	ErrMaxIterations:   CodeMaxIterations,
	ErrConfigLoad:      CodeConfigLoad,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	// Fast path: direct sentinel lookup.
	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	// Walk the error chain with errors.Is.
	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
