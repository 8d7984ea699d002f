package scraper

import (
	"errors"
	"fmt"
)

// Failure kinds that cross the dispatcher boundary.
var (
	ErrRender = errors.New("render failure")
	ErrFetch  = errors.New("fetch failure")
	ErrAPI    = errors.New("api failure")
)

// Error describes a failed extraction. errors.Is matches both Kind and the
// underlying cause, so a pool exhaustion surfaces as ErrRender and
// pool.ErrExhausted at once.
type Error struct {
	Kind     error
	Strategy string
	URL      string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v (%s) %s: %v", e.Kind, e.Strategy, e.URL, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
