package instance_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
	"github.com/roach88/hearth/internal/store"
	"github.com/roach88/hearth/internal/testutil"
)

var t0 = time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store     instance.Store
	clock     *testutil.FixedClock
	lifecycle *instance.LifecycleManager
	resolver  *instance.Resolver
	coverage  *instance.CoverageCoordinator
	notes     *instance.Notes
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newFixture(t *testing.T, opts ...instance.Option) *fixture {
	t.Helper()
	return newFixtureOver(openStore(t), opts...)
}

func newFixtureOver(st instance.Store, opts ...instance.Option) *fixture {
	clock := testutil.NewFixedClock(t0)
	all := append([]instance.Option{
		instance.WithClock(clock),
		instance.WithIDGenerator(testutil.NewSequentialIDs("id")),
	}, opts...)
	return &fixture{
		store:     st,
		clock:     clock,
		lifecycle: instance.NewLifecycleManager(st, all...),
		resolver:  instance.NewResolver(st, all...),
		coverage:  instance.NewCoverageCoordinator(st, all...),
		notes:     instance.NewNotes(st, all...),
	}
}

func date(s string) recurrence.Date { return recurrence.MustParseDate(s) }

func routine(id, day string) instance.Key {
	return instance.Key{EntityType: instance.Routine, EntityID: id, Date: date(day)}
}

func ids(instances []instance.Instance) []string {
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.EntityID)
	}
	return out
}

var errBoom = errors.New("boom")

// flakyStore fails selected calls on top of a real store.
type flakyStore struct {
	instance.Store
	failUpdateLifecycle bool
	failAccept          bool
	failResolve         bool
	failCreate          bool
}

func (f *flakyStore) CreateIfAbsent(ctx context.Context, c instance.Instance) (instance.Instance, bool, error) {
	if f.failCreate {
		return instance.Instance{}, false, errBoom
	}
	return f.Store.CreateIfAbsent(ctx, c)
}

func (f *flakyStore) UpdateLifecycle(ctx context.Context, id string, lc instance.Lifecycle, at time.Time) (instance.Instance, error) {
	if f.failUpdateLifecycle {
		return instance.Instance{}, errBoom
	}
	return f.Store.UpdateLifecycle(ctx, id, lc, at)
}

func (f *flakyStore) AcceptCoverageRequest(ctx context.Context, id, responder string, at time.Time) (instance.CoverageRequest, error) {
	if f.failAccept {
		return instance.CoverageRequest{}, errBoom
	}
	return f.Store.AcceptCoverageRequest(ctx, id, responder, at)
}

func (f *flakyStore) ResolveCoverageRequest(ctx context.Context, id string, status instance.CoverageStatus, coveredBy *string, at time.Time) (instance.CoverageRequest, error) {
	if f.failResolve {
		return instance.CoverageRequest{}, errBoom
	}
	return f.Store.ResolveCoverageRequest(ctx, id, status, coveredBy, at)
}

// interleavedStore runs beforeAccept once, right before the first accept
// reaches the store. It lets a test slot a competing response between
// another caller's pending check and its write.
type interleavedStore struct {
	instance.Store
	beforeAccept func()
}

func (s *interleavedStore) AcceptCoverageRequest(ctx context.Context, id, responder string, at time.Time) (instance.CoverageRequest, error) {
	if hook := s.beforeAccept; hook != nil {
		s.beforeAccept = nil
		hook()
	}
	return s.Store.AcceptCoverageRequest(ctx, id, responder, at)
}
