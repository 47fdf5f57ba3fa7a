// Package sentinel holds the infrastructure facts stores report. Services match
// them with errors.Is and translate them into coded domain errors.
package sentinel

import "errors"

var (
	// ErrNotFound means the record, account or mint does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyUsed means the address already holds a record.
	ErrAlreadyUsed = errors.New("already used")
	// ErrConflict means an optimistic transaction lost a race and nothing was written.
	ErrConflict = errors.New("conflict")
)
