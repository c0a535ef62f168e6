// Package usage provides resource lifetime records and the aggregation
// functions that turn them into per-owner billing totals.
// All functions are pure - no side effects.
package usage

import (
	"errors"
	"fmt"
	"time"

	"github.com/cloudmeter/cloudmeter/domain/interval"
)

// Metric identifies which resource dimension a total measures.
type Metric string

const (
	MetricCoreHours     Metric = "cpu"     // compute core-hours
	MetricVolumeGBHours Metric = "volume"  // block-storage GB-hours
	MetricImageGBHours  Metric = "image"   // image-storage GiB-hours
	MetricObjectGB      Metric = "objects" // object-storage decimal GB
)

// ErrBadRecord indicates a record that violates its integrity invariants.
// Such records fail the run rather than being silently coerced to zero,
// which would under-bill without any trace of the anomaly.
var ErrBadRecord = errors.New("invalid resource record")

// Record represents one billable resource (a compute instance, a block
// volume, or a stored image) over its lifetime. A record is a point-in-time
// read of the external store and is never mutated by the aggregation engine.
type Record struct {
	UserID    string
	ProjectID string

	// RateQuantity multiplies billed hours: vCPU count for instances,
	// size in GB for volumes, size in bytes for images. Constant for
	// the record's lifetime.
	RateQuantity int64

	CreatedAt time.Time
	DeletedAt *time.Time // nil = still active through the window end

	// Excluded removes the record from consideration entirely,
	// e.g. an instance stuck in an error state.
	Excluded bool
}

// Validate checks the record's integrity invariants.
func (r Record) Validate() error {
	if r.RateQuantity < 0 {
		return fmt.Errorf("%w: negative rate quantity %d", ErrBadRecord, r.RateQuantity)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing creation time", ErrBadRecord)
	}
	if r.DeletedAt != nil && r.DeletedAt.Before(r.CreatedAt) {
		return fmt.Errorf("%w: deleted %s before created %s", ErrBadRecord,
			r.DeletedAt.Format(time.RFC3339), r.CreatedAt.Format(time.RFC3339))
	}
	return nil
}

// Admit reports whether the record can possibly intersect the window.
// Records deleted at or before the window start, created at or after the
// window end, or flagged as excluded never contribute.
func Admit(r Record, w interval.Window) bool {
	if r.Excluded {
		return false
	}
	if r.DeletedAt != nil && !r.DeletedAt.After(w.Start) {
		return false
	}
	if !r.CreatedAt.Before(w.End) {
		return false
	}
	return true
}

// Key identifies the owner of one accumulated total.
type Key struct {
	UserID    string
	ProjectID string
}
