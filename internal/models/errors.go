package models

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindConfiguration Kind = "CONFIGURATION"
	KindEventShape    Kind = "EVENT_SHAPE"
	KindDataShape     Kind = "DATA_SHAPE"
	KindStorage       Kind = "STORAGE"
	KindSubmission    Kind = "SUBMISSION"
	KindSecret        Kind = "SECRET"
	KindCallbackParse Kind = "CALLBACK_PARSE"
)

func (k Kind) String() string {
	return string(k)
}

// Fatal reports whether a failure of this kind marks the invocation as failed.
// Event and data shape problems are acknowledged and dropped once notified.
func (k Kind) Fatal() bool {
	switch k {
	case KindEventShape, KindDataShape:
		return false
	default:
		return true
	}
}

// PipelineError is the single error type surfaced by every stage.
type PipelineError struct {
	Kind    Kind
	Op      string
	Message string
	// Details is forwarded verbatim into the failure notification.
	Details any
	Err     error
}

func (e *PipelineError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsFatal reports whether err should fail the invocation. Errors that are not
// PipelineErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := KindOf(err)
	if !ok {
		return true
	}
	return kind.Fatal()
}

func newError(kind Kind, op, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Op: op, Message: message, Err: err}
}

func ConfigurationError(message string, err error) *PipelineError {
	return newError(KindConfiguration, "config", message, err)
}

func EventShapeError(message string, err error) *PipelineError {
	return newError(KindEventShape, "event", message, err)
}

func DataShapeError(message string, err error) *PipelineError {
	return newError(KindDataShape, "data", message, err)
}

// StorageError wraps a failed storage operation; op names the operation
// (for example "get", "copy", "delete").
func StorageError(op, message string, err error) *PipelineError {
	return newError(KindStorage, op, message, err)
}

func SubmissionError(message string, err error) *PipelineError {
	return newError(KindSubmission, "submit", message, err)
}

func SecretError(message string, err error) *PipelineError {
	return newError(KindSecret, "secret", message, err)
}

func CallbackParseError(message string, err error) *PipelineError {
	return newError(KindCallbackParse, "callback", message, err)
}

// WithDetails attaches notification details and returns the same error.
func (e *PipelineError) WithDetails(details any) *PipelineError {
	e.Details = details
	return e
}
