package queue

import (
	"errors"
	"fmt"

	"capturesync/internal/services"
)

var (
	// ErrRecordNotFound is returned when an operation references an unknown record.
	ErrRecordNotFound = fmt.Errorf("%w: record not found", services.ErrNotFound)
	// ErrMissingFolderRef guards the completed invariant: a completed record
	// must carry the remote folder it was uploaded to.
	ErrMissingFolderRef = fmt.Errorf("%w: completed status requires a remote folder reference", services.ErrValidation)
	// ErrInvalidRecord reports malformed record input.
	ErrInvalidRecord = errors.New("invalid record")
)
