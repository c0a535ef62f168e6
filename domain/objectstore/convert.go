// Package objectstore converts object-storage byte-count series into
// billing totals. Structurally parallel to the usage aggregator, but driven
// by pre-summed samples from the metrics backend rather than lifetime
// interval arithmetic.
package objectstore

import "time"

// Sample is one time-series datapoint. A nil Bytes means the backend
// reported no value for that timestamp; such samples contribute zero.
type Sample struct {
	Bytes *float64
	At    time.Time
}

// Series holds the datapoints reported for one project.
type Series struct {
	ProjectID string
	Samples   []Sample
}

// Result is the outcome of one metrics-backend fetch. Degraded marks an
// empty result that actually masks a collection failure (backend
// unreachable or an error payload); callers decide whether a degraded
// fetch fails the whole report or merely annotates it.
type Result struct {
	Series   []Series
	Degraded bool
	Reason   string
}

// Degrade builds an empty, degraded result with the given reason.
func Degrade(reason string) Result {
	return Result{Degraded: true, Reason: reason}
}

// GigabytesByProject sums the present samples of each series and converts
// the byte totals to decimal gigabytes (1e9 bytes per GB). Decimal scaling
// here is deliberate; image storage is the only metric billed in binary
// gigabytes.
func GigabytesByProject(series []Series) map[string]float64 {
	out := make(map[string]float64, len(series))
	for _, s := range series {
		var bytes float64
		for _, p := range s.Samples {
			if p.Bytes != nil {
				bytes += *p.Bytes
			}
		}
		out[s.ProjectID] += bytes / 1e9
	}
	return out
}
