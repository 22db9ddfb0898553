package domain

import (
	"errors"
	"fmt"
)

// Error kinds matched with errors.Is against the typed errors below.
var (
	ErrNotFoundKind         = errors.New("not found")
	ErrInvalidStateKind     = errors.New("invalid state")
	ErrInconsistentDataKind = errors.New("inconsistent data")
)

// ErrNotFound is returned when a record is absent or the caller may not read it.
// Callers cannot tell the two cases apart.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFoundKind.
func (e ErrNotFound) Is(target error) bool { return target == ErrNotFoundKind }

// ErrInvalidState is returned when a statistic does not apply to an observation's type.
type ErrInvalidState struct {
	ObservationID string
	Type          ObservationType
	Want          ObservationType
}

func (e ErrInvalidState) Error() string {
	return fmt.Sprintf("observation %s has type %s, want %s", e.ObservationID, e.Type, e.Want)
}

// Is matches ErrInvalidStateKind.
func (e ErrInvalidState) Is(target error) bool { return target == ErrInvalidStateKind }

// ErrInconsistentData aborts a computation when a referenced record has no
// matching geometry or plot record.
type ErrInconsistentData struct {
	Entity EntityType
	ID     string
	Reason string
}

func (e ErrInconsistentData) Error() string {
	return fmt.Sprintf("inconsistent %s %s: %s", e.Entity, e.ID, e.Reason)
}

// Is matches ErrInconsistentDataKind.
func (e ErrInconsistentData) Is(target error) bool { return target == ErrInconsistentDataKind }
