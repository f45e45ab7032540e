package services

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind is the closed set of upload failure variants the worker acts on.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureAuthExpired
	FailurePartial
)

func (k FailureKind) String() string {
	switch k {
	case FailureAuthExpired:
		return "auth_expired"
	case FailurePartial:
		return "partial"
	default:
		return "transient"
	}
}

func (k FailureKind) marker() error {
	switch k {
	case FailureAuthExpired:
		return ErrAuthExpired
	case FailurePartial:
		return ErrPartialUpload
	default:
		return ErrTransient
	}
}

// UploadError is built where a remote call is made so callers never inspect
// error text to decide how to retry.
type UploadError struct {
	Kind      FailureKind
	Operation string
	Target    string
	Err       error
}

func (e *UploadError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Operation != "" {
		b.WriteString(": ")
		b.WriteString(e.Operation)
	}
	if e.Target != "" {
		b.WriteString(" ")
		b.WriteString(e.Target)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel marker for the error's kind.
func (e *UploadError) Is(target error) bool {
	return target == e.Kind.marker()
}

// AuthExpired tags err as a credential failure.
func AuthExpired(operation string, err error) error {
	return &UploadError{Kind: FailureAuthExpired, Operation: operation, Err: err}
}

// Transient tags err as a retryable failure against target.
func Transient(operation, target string, err error) error {
	return &UploadError{Kind: FailureTransient, Operation: operation, Target: target, Err: err}
}

// Partial reports that succeeded of total files were transferred. cause is the
// last per-file failure.
func Partial(succeeded, total int, cause error) error {
	return &UploadError{
		Kind:      FailurePartial,
		Operation: "sync files",
		Target:    fmt.Sprintf("%d/%d transferred", succeeded, total),
		Err:       cause,
	}
}

// ClassifyFailure maps any error to a FailureKind. Errors that were not tagged
// at the remote boundary are transient.
func ClassifyFailure(err error) FailureKind {
	var upErr *UploadError
	if errors.As(err, &upErr) {
		// An auth failure anywhere in the chain wins over the outer kind.
		if upErr.Kind != FailureAuthExpired && errors.Is(upErr.Err, ErrAuthExpired) {
			return FailureAuthExpired
		}
		return upErr.Kind
	}
	switch {
	case errors.Is(err, ErrAuthExpired):
		return FailureAuthExpired
	case errors.Is(err, ErrPartialUpload):
		return FailurePartial
	default:
		return FailureTransient
	}
}
