package domain

import (
	"context"
	"errors"
	"fmt"
)

// DomainError represents a pipeline error of one of the taxonomy kinds.
type DomainError struct {
	Code    string
	Stage   Stage
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s@%s]", e.Code, e.Stage)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is makes the kind sentinels match any error of their kind, so
// errors.Is(err, ErrStorage) holds for every storage failure.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	switch t {
	case ErrConfiguration, ErrEmbedding, ErrStorage, ErrCancelled:
		return t.Code == e.Code
	}
	return false
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes, one per failure kind surfaced by the pipeline.
const (
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeStorage       = "STORAGE_ERROR"
	ErrCodeCancelled     = "CANCELLED"
)

// Kind sentinels for errors.Is
var (
	ErrConfiguration = NewDomainError(ErrCodeConfiguration, "invalid configuration")
	ErrEmbedding     = NewDomainError(ErrCodeEmbedding, "embedding failed")
	ErrStorage       = NewDomainError(ErrCodeStorage, "storage failed")
	ErrCancelled     = NewDomainError(ErrCodeCancelled, "operation cancelled")
)

// Configuration errors, used as causes so callers can tell them apart
var (
	ErrUnknownChunker    = NewDomainError(ErrCodeConfiguration, "unknown chunker")
	ErrUnknownEmbedder   = NewDomainError(ErrCodeConfiguration, "unknown embedding adapter")
	ErrUnknownStore      = NewDomainError(ErrCodeConfiguration, "unknown storage backend")
	ErrDimensionMismatch = NewDomainError(ErrCodeConfiguration, "vector dimension does not match collection")
)

func NewConfigurationError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeConfiguration, message, err)
}

func NewEmbeddingError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbedding, message, err)
}

func NewStorageError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorage, message, err)
}

func NewCancelledError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeCancelled, message, err)
}

// IsContextError reports whether err stems from a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// FromContext returns a CancelledError when err is a context error, otherwise nil.
func FromContext(err error) *DomainError {
	if err == nil || !IsContextError(err) {
		return nil
	}
	return NewCancelledError("operation cancelled", err)
}

// CodeOf returns the taxonomy code of err, or "" for foreign errors.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// StageOf returns the stage recorded on err, or "" when none was recorded.
func StageOf(err error) Stage {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Stage
	}
	return ""
}

// AtStage tags err with the stage it failed in. Taxonomy errors keep their
// code; context errors become CancelledError; anything else is classified by
// the stage that produced it.
func AtStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}

	var de *DomainError
	if errors.As(err, &de) {
		if de.Code != ErrCodeCancelled && IsContextError(err) {
			de = NewCancelledError(de.Message, contextCause(err))
		}
		tagged := *de
		if tagged.Stage == "" {
			tagged.Stage = stage
		}
		return &tagged
	}

	if cancelled := FromContext(err); cancelled != nil {
		cancelled.Stage = stage
		return cancelled
	}

	var tagged *DomainError
	switch stage {
	case StageEmbedding:
		tagged = NewEmbeddingError("embedding failed", err)
	case StageStoring, StageQuerying, StageScoring:
		tagged = NewStorageError("storage failed", err)
	default:
		tagged = NewConfigurationError("pipeline failed", err)
	}
	tagged.Stage = stage
	return tagged
}

func contextCause(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return context.Canceled
}
