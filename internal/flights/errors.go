package flights

import (
	"errors"
	"fmt"
)

var (
	// ErrCycleInProgress is returned when a refresh is requested while another cycle is still running
	ErrCycleInProgress = errors.New("refresh cycle already in progress")

	// ErrStopped is returned when a cycle completes after the service was stopped; its results are discarded
	ErrStopped = errors.New("flight service stopped")
)

// FetchError reports a failed read of one of the two snapshot collections.
// A failure on either endpoint fails the whole cycle.
type FetchError struct {
	Endpoint   string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status code %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// SinkError reports a render operation rejected by a sink
type SinkError struct {
	Op  string // create, update, remove, render_active, render_upcoming, status
	ID  string
	Err error
}

func (e *SinkError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("sink %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sink %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
