package onenote

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a page or section name matches nothing
var ErrNotFound = errors.New("not found")

// ErrPaginationLoop is returned when a collection links back to a page it
// already served
var ErrPaginationLoop = errors.New("pagination loop")

// StatusError reports a non-success HTTP status from the service
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}
