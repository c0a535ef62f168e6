package sqlite

import (
	"context"
	"database/sql"

	"github.com/cloudmeter/cloudmeter/domain/interval"
	"github.com/cloudmeter/cloudmeter/domain/usage"
	"github.com/cloudmeter/cloudmeter/ports"
)

// RecordStore implements ports.RecordSource using SQLite.
//
// Queries apply the coarse lifetime predicate (a record deleted at or
// before the window start, or created at or after the window end, can
// never contribute) plus project/user eligibility. The core re-applies
// the full admission rule, so the SQL here is an optimization, not the
// source of truth for boundary semantics.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new SQLite record store.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// ComputeRecords returns compute-instance records in the eligible projects
// or created by the eligible user.
func (s *RecordStore) ComputeRecords(ctx context.Context, w interval.Window, projectIDs []string, userID string) ([]usage.Record, error) {
	projectIDs = sentinelProjects(projectIDs)

	query := `
		SELECT user_id, project_id, vcpus, state, created_at, deleted_at
		FROM compute_instances
		WHERE (deleted_at > ? OR deleted_at IS NULL)
		  AND created_at < ?
		  AND (project_id IN ` + placeholders(len(projectIDs)) + ` OR user_id = ?)
	`
	args := windowArgs(w, projectIDs, userID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []usage.Record
	for rows.Next() {
		var (
			r       usage.Record
			state   string
			deleted sql.NullTime
		)
		if err := rows.Scan(&r.UserID, &r.ProjectID, &r.RateQuantity, &state, &r.CreatedAt, &deleted); err != nil {
			return nil, err
		}
		if deleted.Valid {
			t := deleted.Time
			r.DeletedAt = &t
		}
		r.Excluded = state == "error"
		records = append(records, r)
	}
	return records, rows.Err()
}

// VolumeRecords returns block-volume records in the eligible projects or
// created by the eligible user.
func (s *RecordStore) VolumeRecords(ctx context.Context, w interval.Window, projectIDs []string, userID string) ([]usage.Record, error) {
	projectIDs = sentinelProjects(projectIDs)

	query := `
		SELECT user_id, project_id, size_gb, created_at, deleted_at
		FROM block_volumes
		WHERE (deleted_at > ? OR deleted_at IS NULL)
		  AND created_at < ?
		  AND (project_id IN ` + placeholders(len(projectIDs)) + ` OR user_id = ?)
	`
	args := windowArgs(w, projectIDs, userID)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectRecords(rows, true)
}

// ImageRecords returns image records owned by the given projects. Images
// carry no owning user.
func (s *RecordStore) ImageRecords(ctx context.Context, w interval.Window, projectIDs []string) ([]usage.Record, error) {
	projectIDs = sentinelProjects(projectIDs)

	query := `
		SELECT project_id, size_bytes, created_at, deleted_at
		FROM images
		WHERE (deleted_at > ? OR deleted_at IS NULL)
		  AND created_at < ?
		  AND project_id IN ` + placeholders(len(projectIDs))
	args := windowArgs(w, projectIDs, "")
	args = args[:len(args)-1] // no user eligibility for images

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProjectRecords(rows, false)
}

func windowArgs(w interval.Window, projectIDs []string, userID string) []any {
	args := make([]any, 0, len(projectIDs)+3)
	args = append(args, w.Start.UTC(), w.End.UTC())
	for _, id := range projectIDs {
		args = append(args, id)
	}
	return append(args, userID)
}

func scanProjectRecords(rows *sql.Rows, withUser bool) ([]usage.Record, error) {
	var records []usage.Record
	for rows.Next() {
		var (
			r       usage.Record
			deleted sql.NullTime
		)
		var err error
		if withUser {
			err = rows.Scan(&r.UserID, &r.ProjectID, &r.RateQuantity, &r.CreatedAt, &deleted)
		} else {
			err = rows.Scan(&r.ProjectID, &r.RateQuantity, &r.CreatedAt, &deleted)
		}
		if err != nil {
			return nil, err
		}
		if deleted.Valid {
			t := deleted.Time
			r.DeletedAt = &t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Ensure interface compliance.
var _ ports.RecordSource = (*RecordStore)(nil)
