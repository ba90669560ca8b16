package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedInput means the file belongs to neither the tabular nor
	// the document family.
	ErrUnsupportedInput = errors.New("unsupported input")
	// ErrUnreadable means a tabular file could not be decoded.
	ErrUnreadable = errors.New("unreadable spreadsheet")
	// ErrCollaborator means the document extraction service failed or timed out.
	ErrCollaborator = errors.New("document collaborator failed")

	ErrBusy         = errors.New("session is already parsing")
	ErrInvalidState = errors.New("operation not allowed in current state")
	ErrStale        = errors.New("session was abandoned during parsing")
	ErrUnknownItem  = errors.New("unknown item")
)

type Stage string

const (
	StageDispatch     Stage = "dispatch"
	StageRead         Stage = "read"
	StageCollaborator Stage = "collaborator"
)

// StageError tags a hard ingestion failure with the step that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsRetryable reports whether the user may simply retry the same file.
func IsRetryable(err error) bool {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage == StageCollaborator
	}
	return errors.Is(err, ErrCollaborator)
}
