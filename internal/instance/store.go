package instance

import (
	"context"
	"time"

	"github.com/roach88/hearth/internal/recurrence"
)

// InstanceStore persists instances. Implementations must enforce a unique
// constraint on (entity_type, entity_id, date).
type InstanceStore interface {
	// Find returns the instance for key, or ErrNotFound.
	Find(ctx context.Context, key Key) (Instance, error)

	// Get returns the instance with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Instance, error)

	// CreateIfAbsent inserts candidate unless a row with the same key exists.
	// It returns the stored row and whether it was inserted. Concurrent calls
	// for one key must all return the same row; exactly one reports created.
	CreateIfAbsent(ctx context.Context, candidate Instance) (Instance, bool, error)

	// UpdateLifecycle overwrites the lifecycle field group in one write.
	UpdateLifecycle(ctx context.Context, id string, lc Lifecycle, at time.Time) (Instance, error)

	// UpdateAssignee overwrites the assignee override (nil clears it).
	UpdateAssignee(ctx context.Context, id string, assignee *string, at time.Time) (Instance, error)

	// QueryByDate returns instances originally due on date.
	QueryByDate(ctx context.Context, date recurrence.Date) ([]Instance, error)

	// QueryByDeferredTo returns deferred instances whose DeferredTo lies in
	// [start, end).
	QueryByDeferredTo(ctx context.Context, start, end time.Time) ([]Instance, error)
}

// NoteStore persists instance notes.
type NoteStore interface {
	InsertNote(ctx context.Context, n Note) error
	ListNotes(ctx context.Context, instanceID string) ([]Note, error)

	// DeleteNote removes a note, or returns ErrNotFound.
	DeleteNote(ctx context.Context, id string) error
}

// CoverageStore persists coverage requests. Requests are never deleted.
type CoverageStore interface {
	InsertCoverageRequest(ctx context.Context, r CoverageRequest) error

	// GetCoverageRequest returns the request, or ErrNotFound.
	GetCoverageRequest(ctx context.Context, id string) (CoverageRequest, error)

	// ListCoverageRequests returns all requests for an instance, oldest first.
	ListCoverageRequests(ctx context.Context, instanceID string) ([]CoverageRequest, error)

	// ResolveCoverageRequest moves a pending request to status. It returns
	// ErrNotPending if the request was no longer pending.
	ResolveCoverageRequest(ctx context.Context, id string, status CoverageStatus, coveredBy *string, at time.Time) (CoverageRequest, error)

	// AcceptCoverageRequest sets the owning instance's assignee override to
	// responder and flips the pending request to accepted, as one atomic
	// write. If the request is no longer pending it returns ErrNotPending and
	// neither record changes.
	AcceptCoverageRequest(ctx context.Context, id, responder string, at time.Time) (CoverageRequest, error)
}

// Store is everything the services in this package need.
type Store interface {
	InstanceStore
	NoteStore
	CoverageStore
}
