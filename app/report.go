// Package app orchestrates report runs: it gathers snapshots from the
// external sources, drives the pure aggregation core, and attributes the
// results to the requesting user.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cloudmeter/cloudmeter/adapters/metrics"
	"github.com/cloudmeter/cloudmeter/domain/identity"
	"github.com/cloudmeter/cloudmeter/domain/interval"
	"github.com/cloudmeter/cloudmeter/domain/objectstore"
	"github.com/cloudmeter/cloudmeter/domain/usage"
	"github.com/cloudmeter/cloudmeter/ports"
)

// ErrValidation indicates a malformed report request.
var ErrValidation = errors.New("invalid report request")

// ErrDegradedMetrics indicates the object-storage backend degraded and the
// service is configured to fail the run instead of annotating the report.
var ErrDegradedMetrics = errors.New("object-storage metrics degraded")

// aggregateWorkers bounds the partitioned aggregation fan-out.
const aggregateWorkers = 4

// ReportRequest describes one report run.
type ReportRequest struct {
	Start  time.Time
	End    time.Time
	UserID string

	// Projects optionally restricts the report to a subset of the
	// projects the user may see.
	Projects []string
}

// Row is one line of the output report.
type Row struct {
	UserID      string       `json:"user_id,omitempty"`
	UserName    string       `json:"user_name,omitempty"`
	ProjectID   string       `json:"project_id"`
	ProjectName string       `json:"project_name,omitempty"`
	Metric      usage.Metric `json:"metric"`
	Quantity    float64      `json:"quantity"`
}

// Report is the merged per-project billing report for one user and window.
type Report struct {
	RunID          string    `json:"run_id"`
	UserID         string    `json:"user_id"`
	UserName       string    `json:"user_name"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	GeneratedAt    time.Time `json:"generated_at"`
	Degraded       bool      `json:"degraded,omitempty"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
	Rows           []Row     `json:"rows"`
}

// Deps contains dependencies for the report service.
type Deps struct {
	Records  ports.RecordSource
	Identity ports.IdentitySource
	Metrics  ports.MetricsSource // nil disables object-storage usage
	Clock    ports.Clock
	IDs      ports.IDGenerator
	Logger   zerolog.Logger

	Collector *metrics.Collector // nil disables instrumentation

	// BillingRole names the role grant that makes a user financially
	// responsible for a project.
	BillingRole string

	// FailOnDegradedMetrics fails the run when the object-storage fetch
	// degrades, instead of annotating the report.
	FailOnDegradedMetrics bool
}

// Service generates usage reports.
type Service struct {
	records    ports.RecordSource
	identity   ports.IdentitySource
	metricsSrc ports.MetricsSource
	clock      ports.Clock
	ids        ports.IDGenerator
	logger     zerolog.Logger
	collector  *metrics.Collector

	billingRole    string
	failOnDegraded bool

	mu     sync.RWMutex
	runCtx *RunContext
}

// NewService creates the report service.
func NewService(deps Deps) *Service {
	role := deps.BillingRole
	if role == "" {
		role = "billing"
	}
	return &Service{
		records:        deps.Records,
		identity:       deps.Identity,
		metricsSrc:     deps.Metrics,
		clock:          deps.Clock,
		ids:            deps.IDs,
		logger:         deps.Logger.With().Str("component", "reports").Logger(),
		collector:      deps.Collector,
		billingRole:    role,
		failOnDegraded: deps.FailOnDegradedMetrics,
	}
}

// Report runs one aggregation pass and returns the merged report.
func (s *Service) Report(ctx context.Context, req ReportRequest) (*Report, error) {
	started := s.clock.Now()

	w, err := interval.NewWindow(req.Start, req.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if req.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}

	rc, err := s.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity snapshot: %w", err)
	}

	runID := s.ids.New()
	logger := s.logger.With().
		Str("run_id", runID).
		Str("user_id", req.UserID).
		Time("window_start", w.Start).
		Time("window_end", w.End).
		Logger()

	billing := rc.Responsibility.BillingProjects(req.UserID)
	used := identity.UsedProjects(rc.Assignments, req.UserID)
	eligible := unionProjects(billing, used)

	var requested map[string]struct{}
	if len(req.Projects) > 0 {
		requested = toSet(req.Projects)
		billing = intersect(billing, requested)
		eligible = intersect(eligible, requested)
		used = intersectSet(used, requested)
	}

	var (
		compute, volumes, images []usage.Record
		objects                  objectstore.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		compute, err = s.records.ComputeRecords(gctx, w, eligible, req.UserID)
		if err != nil {
			return fmt.Errorf("fetch compute records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		volumes, err = s.records.VolumeRecords(gctx, w, eligible, req.UserID)
		if err != nil {
			return fmt.Errorf("fetch volume records: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		images, err = s.records.ImageRecords(gctx, w, billing)
		if err != nil {
			return fmt.Errorf("fetch image records: %w", err)
		}
		return nil
	})
	if s.metricsSrc != nil {
		g.Go(func() error {
			var err error
			objects, err = s.metricsSrc.ByteSeries(gctx, w, billing)
			if err != nil {
				return fmt.Errorf("fetch object-storage series: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.observe("error", started)
		return nil, err
	}

	rep := &Report{
		RunID:       runID,
		UserID:      req.UserID,
		UserName:    rc.Usernames.Resolve(req.UserID),
		Start:       w.Start,
		End:         w.End,
		GeneratedAt: s.clock.Now(),
	}

	computeTotals, err := parallelAggregate(ctx, compute, w)
	if err != nil {
		s.observe("error", started)
		return nil, fmt.Errorf("aggregate compute: %w", err)
	}
	volumeTotals, err := parallelAggregate(ctx, volumes, w)
	if err != nil {
		s.observe("error", started)
		return nil, fmt.Errorf("aggregate volumes: %w", err)
	}
	imageTotals, err := usage.Aggregate(images, w)
	if err != nil {
		s.observe("error", started)
		return nil, fmt.Errorf("aggregate images: %w", err)
	}

	computeTotals = identity.Attribute(computeTotals, rc.Responsibility, req.UserID, used)
	volumeTotals = identity.Attribute(volumeTotals, rc.Responsibility, req.UserID, used)
	imageTotals = identity.Attribute(imageTotals, rc.Responsibility, req.UserID, used)

	// The stores fetch by project eligibility OR record ownership, so the
	// user's own records from non-requested projects can still come back.
	// Re-apply the request's project restriction here.
	if requested != nil {
		computeTotals = filterProjects(computeTotals, requested)
		volumeTotals = filterProjects(volumeTotals, requested)
		imageTotals = filterProjects(imageTotals, requested)
	}

	for k, v := range computeTotals {
		rep.Rows = append(rep.Rows, s.row(rc, k, usage.MetricCoreHours, float64(v)))
	}
	for k, v := range volumeTotals {
		rep.Rows = append(rep.Rows, s.row(rc, k, usage.MetricVolumeGBHours, float64(v)))
	}
	for k, v := range imageTotals {
		rep.Rows = append(rep.Rows, s.row(rc, k, usage.MetricImageGBHours, float64(usage.ScaleBinaryGB(v))))
	}

	if s.metricsSrc != nil {
		if objects.Degraded {
			if s.failOnDegraded {
				s.observe("error", started)
				return nil, fmt.Errorf("%w: %s", ErrDegradedMetrics, objects.Reason)
			}
			rep.Degraded = true
			rep.DegradedReason = objects.Reason
			if s.collector != nil {
				s.collector.DegradedFetches.Inc()
			}
			logger.Warn().Str("reason", objects.Reason).Msg("object-storage usage degraded to empty")
		}
		for projectID, gb := range objectstore.GigabytesByProject(objects.Series) {
			rep.Rows = append(rep.Rows, s.row(rc, usage.Key{ProjectID: projectID}, usage.MetricObjectGB, gb))
		}
	}

	sort.Slice(rep.Rows, func(i, j int) bool {
		a, b := rep.Rows[i], rep.Rows[j]
		if a.ProjectID != b.ProjectID {
			return a.ProjectID < b.ProjectID
		}
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		return a.Metric < b.Metric
	})

	s.countRecords(len(compute), len(volumes), len(images))
	s.observe("ok", started)
	logger.Info().
		Int("rows", len(rep.Rows)).
		Dur("elapsed", s.clock.Now().Sub(started)).
		Msg("report generated")
	return rep, nil
}

// UserRoles returns the user's per-project role sets from the current snapshot.
func (s *Service) UserRoles(ctx context.Context, userID string) (map[string][]string, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	rc, err := s.snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity snapshot: %w", err)
	}
	return identity.RolesForUser(rc.Assignments, userID), nil
}

// UserAttributes returns the opaque attribute document for a user.
func (s *Service) UserAttributes(ctx context.Context, userID string) (map[string]any, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return s.identity.UserAttributes(ctx, userID)
}

func (s *Service) row(rc *RunContext, k usage.Key, metric usage.Metric, quantity float64) Row {
	r := Row{
		UserID:      k.UserID,
		ProjectID:   k.ProjectID,
		ProjectName: rc.ProjectNames[k.ProjectID],
		Metric:      metric,
		Quantity:    quantity,
	}
	if k.UserID != "" {
		r.UserName = rc.Usernames.Resolve(k.UserID)
	}
	return r
}

func (s *Service) observe(status string, started time.Time) {
	if s.collector == nil {
		return
	}
	s.collector.ReportsTotal.WithLabelValues(status).Inc()
	s.collector.ReportDuration.Observe(s.clock.Now().Sub(started).Seconds())
}

func (s *Service) countRecords(compute, volumes, images int) {
	if s.collector == nil {
		return
	}
	s.collector.RecordsProcessed.WithLabelValues(string(usage.MetricCoreHours)).Add(float64(compute))
	s.collector.RecordsProcessed.WithLabelValues(string(usage.MetricVolumeGBHours)).Add(float64(volumes))
	s.collector.RecordsProcessed.WithLabelValues(string(usage.MetricImageGBHours)).Add(float64(images))
}

// parallelAggregate partitions the record set across workers and merges the
// per-key partial sums. Aggregation is commutative and associative, so the
// merge order does not affect the totals.
func parallelAggregate(ctx context.Context, records []usage.Record, w interval.Window) (map[usage.Key]int64, error) {
	if len(records) < aggregateWorkers*2 {
		return usage.Aggregate(records, w)
	}

	chunk := (len(records) + aggregateWorkers - 1) / aggregateWorkers
	partials := make([]map[usage.Key]int64, aggregateWorkers)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < aggregateWorkers; i++ {
		i := i
		lo := i * chunk
		hi := lo + chunk
		if hi > len(records) {
			hi = len(records)
		}
		if lo >= hi {
			break
		}
		g.Go(func() error {
			part, err := usage.Aggregate(records[lo:hi], w)
			if err != nil {
				return err
			}
			partials[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totals := make(map[usage.Key]int64)
	for _, part := range partials {
		usage.Merge(totals, part)
	}
	return totals, nil
}

func unionProjects(billing []string, used map[string]struct{}) []string {
	set := make(map[string]struct{}, len(billing)+len(used))
	for _, p := range billing {
		set[p] = struct{}{}
	}
	for p := range used {
		set[p] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func intersect(ids []string, keep map[string]struct{}) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func filterProjects(totals map[usage.Key]int64, keep map[string]struct{}) map[usage.Key]int64 {
	out := make(map[usage.Key]int64, len(totals))
	for k, v := range totals {
		if _, ok := keep[k.ProjectID]; ok {
			out[k] = v
		}
	}
	return out
}

func intersectSet(set, keep map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for id := range set {
		if _, ok := keep[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}
