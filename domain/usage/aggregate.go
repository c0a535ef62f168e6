package usage

import (
	"fmt"

	"github.com/cloudmeter/cloudmeter/domain/interval"
)

// Aggregate computes billed resource-time per (user, project) over the
// window. Each admitted record contributes ceil(overlap/1h) * RateQuantity.
// This is a PURE function.
func Aggregate(records []Record, w interval.Window) (map[Key]int64, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("aggregate: %w", interval.ErrInvalidWindow)
	}

	totals := make(map[Key]int64)
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if !Admit(r, w) {
			continue
		}

		hours := interval.BilledHours(interval.Overlap(r.CreatedAt, r.DeletedAt, w))
		if hours == 0 {
			continue
		}
		totals[Key{UserID: r.UserID, ProjectID: r.ProjectID}] += hours * r.RateQuantity
	}
	return totals, nil
}

// Merge adds src totals into dst. Summation is commutative and associative,
// so partial sums produced by concurrent workers can be merged in any order.
func Merge(dst, src map[Key]int64) {
	for k, v := range src {
		dst[k] += v
	}
}

// ScaleBinaryGB converts a byte-hour total to whole GiB-hours, rounding up.
// Image storage bills in binary gigabytes; object storage deliberately uses
// decimal scaling instead (see the objectstore package).
func ScaleBinaryGB(byteHours int64) int64 {
	const gib = 1 << 30
	if byteHours <= 0 {
		return 0
	}
	return (byteHours + gib - 1) / gib
}
