package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cloudmeter/cloudmeter/domain/identity"
)

// RunContext is the immutable identity snapshot one report run reads from.
// It is built once, swapped in atomically, and never mutated afterwards;
// Refresh produces a new value instead of changing the one in-flight runs
// may still be reading.
type RunContext struct {
	Usernames      identity.UsernameMap
	Responsibility identity.ResponsibilityMap
	ProjectNames   map[string]string
	Assignments    []identity.RoleAssignment
	BuiltAt        time.Time
}

// buildRunContext loads the identity snapshot from the source.
func (s *Service) buildRunContext(ctx context.Context) (*RunContext, error) {
	var (
		assignments []identity.RoleAssignment
		projects    []identity.Project
		users       []identity.LocalUser
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		assignments, err = s.identity.RoleAssignments(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = s.identity.Projects(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.identity.LocalUsernames(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usernames := make(identity.UsernameMap, len(users))
	for _, u := range users {
		usernames[u.ID] = u.Name
	}
	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}

	return &RunContext{
		Usernames:      usernames,
		Responsibility: identity.BuildResponsibility(assignments, s.billingRole),
		ProjectNames:   projectNames,
		Assignments:    assignments,
		BuiltAt:        s.clock.Now(),
	}, nil
}

// Refresh rebuilds the identity snapshot. The old snapshot stays valid for
// runs already using it.
func (s *Service) Refresh(ctx context.Context) error {
	rc, err := s.buildRunContext(ctx)
	if err != nil {
		if s.collector != nil {
			s.collector.SnapshotRefreshErrors.Inc()
		}
		return err
	}

	s.mu.Lock()
	s.runCtx = rc
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.SnapshotRefreshes.Inc()
	}
	s.logger.Info().
		Int("assignments", len(rc.Assignments)).
		Int("usernames", len(rc.Usernames)).
		Int("projects", len(rc.ProjectNames)).
		Msg("identity snapshot refreshed")
	return nil
}

// snapshot returns the current run context, loading it on first use.
func (s *Service) snapshot(ctx context.Context) (*RunContext, error) {
	s.mu.RLock()
	rc := s.runCtx
	s.mu.RUnlock()
	if rc != nil {
		return rc, nil
	}

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runCtx, nil
}
