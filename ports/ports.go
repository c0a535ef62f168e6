// Package ports defines interfaces (contracts) between the aggregation core
// and its external collaborators. Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/cloudmeter/cloudmeter/domain/identity"
	"github.com/cloudmeter/cloudmeter/domain/interval"
	"github.com/cloudmeter/cloudmeter/domain/objectstore"
	"github.com/cloudmeter/cloudmeter/domain/usage"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers (report run ids).
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Source Ports
// -----------------------------------------------------------------------------

// RecordSource reads point-in-time snapshots of resource lifetime records.
// Implementations must tolerate an empty project list (substituting an
// impossible sentinel identifier rather than emitting an invalid query)
// and must return every record whose lifetime could intersect the window;
// the core re-applies the admission predicate itself. A fetch failure is
// fatal for the run: the core cannot build a consistent report from a
// partial snapshot.
type RecordSource interface {
	// ComputeRecords returns compute-instance records in the eligible
	// projects or created by the eligible user. RateQuantity is vCPUs.
	ComputeRecords(ctx context.Context, w interval.Window, projectIDs []string, userID string) ([]usage.Record, error)

	// VolumeRecords returns block-volume records. RateQuantity is size in GB.
	VolumeRecords(ctx context.Context, w interval.Window, projectIDs []string, userID string) ([]usage.Record, error)

	// ImageRecords returns image records owned by the given projects.
	// Images carry no owning user; RateQuantity is size in bytes.
	ImageRecords(ctx context.Context, w interval.Window, projectIDs []string) ([]usage.Record, error)
}

// IdentitySource reads the role/identity snapshot a run is built from.
type IdentitySource interface {
	// RoleAssignments returns every (project, user, role) grant.
	RoleAssignments(ctx context.Context) ([]identity.RoleAssignment, error)

	// Projects returns the project id to name listing.
	Projects(ctx context.Context) ([]identity.Project, error)

	// LocalUsernames returns the user id to login name listing.
	LocalUsernames(ctx context.Context) ([]identity.LocalUser, error)

	// UserAttributes returns the opaque attribute document for a user.
	UserAttributes(ctx context.Context, userID string) (map[string]any, error)
}

// MetricsSource reads pre-aggregated object-storage byte series from the
// time-series backend. Transport failures degrade to an empty Result rather
// than returning an error; only invalid input is an error.
type MetricsSource interface {
	ByteSeries(ctx context.Context, w interval.Window, projectIDs []string) (objectstore.Result, error)
}
