package pipeline

import (
	"errors"
	"fmt"
)

// ErrInvariant is wrapped by every error Board.Validate returns.
var ErrInvariant = errors.New("board invariant violated")

// FetchError reports that the leads for a board could not be loaded.
// No board is produced when it is returned.
type FetchError struct {
	OwnerID string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load board for %s: %v", e.OwnerID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError reports that the status write after a cross-column move failed.
// The board it accompanies has already been rolled back.
type PersistError struct {
	LeadID string
	Status Status
	Err    error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist status %s for lead %s: %v", e.Status, e.LeadID, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
