// Package interval provides billing-window arithmetic.
// All functions are pure - no side effects.
package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow indicates a window whose start is not before its end.
var ErrInvalidWindow = errors.New("window start must be before end")

// SecondsPerHour is the billing unit granularity.
const SecondsPerHour = 3600

// Window is the half-open time range [Start, End) over which usage is computed.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and returns a billing window.
func NewWindow(start, end time.Time) (Window, error) {
	if !start.Before(end) {
		return Window{}, fmt.Errorf("%w: start=%s end=%s",
			ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}

// Valid reports whether the window satisfies Start < End.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// Seconds returns the window length in whole seconds.
func (w Window) Seconds() int64 {
	return int64(w.End.Sub(w.Start) / time.Second)
}

// Overlap returns the clipped overlap between a resource lifetime and the
// window, in whole seconds. A nil deletedAt means the resource is still
// active and is treated as alive through the window's end. Lifetimes
// disjoint from the window yield zero, including a deletion exactly at
// the window start.
func Overlap(createdAt time.Time, deletedAt *time.Time, w Window) int64 {
	start := w.Start
	if createdAt.After(start) {
		start = createdAt
	}

	end := w.End
	if deletedAt != nil && deletedAt.Before(end) {
		end = *deletedAt
	}

	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}

// BilledHours converts overlap seconds to whole billing hours. Any partial
// hour of use is billed as a full hour; the rounding here is the only
// rounding in the pipeline and it always rounds up.
func BilledHours(seconds int64) int64 {
	if seconds <= 0 {
		return 0
	}
	return (seconds + SecondsPerHour - 1) / SecondsPerHour
}
