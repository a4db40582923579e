package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange means the handle's slot index was never allocated.
	ErrOutOfRange = errors.New("arena: slot index out of range")
	// ErrStaleHandle means the slot is free or holds a later generation.
	ErrStaleHandle = errors.New("arena: stale handle")
)

// HandleError reports a failed lookup. It always wraps ErrOutOfRange or
// ErrStaleHandle.
type HandleError struct {
	Handle Handle
	// Stored is the generation held by the slot, 0 when the slot is free.
	Stored uint32
	Err    error
}

func (e *HandleError) Error() string {
	if errors.Is(e.Err, ErrOutOfRange) {
		return fmt.Sprintf("%v: %s", e.Err, e.Handle)
	}
	return fmt.Sprintf("%v: %s (slot generation %d)", e.Err, e.Handle, e.Stored)
}

func (e *HandleError) Unwrap() error { return e.Err }
