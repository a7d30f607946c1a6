package datastore

import (
	"fmt"
)

/*
PersistenceError reports a failed commit against the backing store.
The context's pending changes are left intact, so the caller can
retry the same Save without re-deriving the mutation.
*/
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
