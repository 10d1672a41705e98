package instance

import (
	"context"
	"errors"
	"fmt"
)

// CoverageCoordinator manages handoff requests between household members.
//
// Request history is append-only. The actionable request for an instance is
// the most recent pending one, selected at query time.
type CoverageCoordinator struct {
	store Store
	opts  options
}

// NewCoverageCoordinator creates a coordinator over store.
func NewCoverageCoordinator(store Store, opts ...Option) *CoverageCoordinator {
	return &CoverageCoordinator{store: store, opts: buildOptions(opts)}
}

// RequestCoverage materializes the instance for key and appends a pending
// request from requestedBy.
func (c *CoverageCoordinator) RequestCoverage(ctx context.Context, requestedBy string, key Key) (CoverageRequest, error) {
	const op = "request coverage"
	if err := checkCall(op, requestedBy, key); err != nil {
		return CoverageRequest{}, err
	}

	inst, err := materialize(ctx, c.store, c.opts, key)
	if err != nil {
		return CoverageRequest{}, storeFailure(op, err)
	}

	req := CoverageRequest{
		ID:          c.opts.ids.Generate(),
		InstanceID:  inst.ID,
		RequestedBy: requestedBy,
		Status:      CoveragePending,
		RequestedAt: c.opts.clock.Now(),
	}
	if err := c.store.InsertCoverageRequest(ctx, req); err != nil {
		return CoverageRequest{}, storeFailure(op, err)
	}
	return req, nil
}

// RespondToCoverage accepts or declines a pending request.
//
// Accepting also reassigns the instance to the responder. The store applies
// the assignee and the request flip together, so a failed or lost accept
// leaves both records as they were.
//
// Responding to a request that is no longer pending fails with
// ALREADY_RESOLVED and changes nothing. When several members accept the same
// request at once exactly one succeeds, and the instance ends up assigned to
// that member.
func (c *CoverageCoordinator) RespondToCoverage(ctx context.Context, responder, requestID string, accept bool) (CoverageRequest, error) {
	const op = "respond to coverage"
	if responder == "" {
		return CoverageRequest{}, errNotAuthenticated(op)
	}

	req, err := c.store.GetCoverageRequest(ctx, requestID)
	if err != nil {
		return CoverageRequest{}, storeFailure(op, err)
	}
	if req.Status != CoveragePending {
		return CoverageRequest{}, errAlreadyResolved(op, req)
	}

	if !accept {
		return c.resolve(ctx, op, req, CoverageDeclined)
	}

	resolved, err := c.store.AcceptCoverageRequest(ctx, req.ID, responder, c.opts.clock.Now())
	if errors.Is(err, ErrNotPending) {
		return CoverageRequest{}, errAlreadyResolved(op, req)
	}
	if err != nil {
		return CoverageRequest{}, storeFailure(op, err)
	}
	return resolved, nil
}

func (c *CoverageCoordinator) resolve(ctx context.Context, op string, req CoverageRequest, status CoverageStatus) (CoverageRequest, error) {
	resolved, err := c.store.ResolveCoverageRequest(ctx, req.ID, status, nil, c.opts.clock.Now())
	if errors.Is(err, ErrNotPending) {
		return CoverageRequest{}, errAlreadyResolved(op, req)
	}
	if err != nil {
		return CoverageRequest{}, storeFailure(op, err)
	}
	return resolved, nil
}

// ActiveRequest returns the most recent pending request for an instance, or
// false if there is none.
func (c *CoverageCoordinator) ActiveRequest(ctx context.Context, instanceID string) (CoverageRequest, bool, error) {
	history, err := c.History(ctx, instanceID)
	if err != nil {
		return CoverageRequest{}, false, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Status == CoveragePending {
			return history[i], true, nil
		}
	}
	return CoverageRequest{}, false, nil
}

// History returns every request ever made for an instance, oldest first.
func (c *CoverageCoordinator) History(ctx context.Context, instanceID string) ([]CoverageRequest, error) {
	history, err := c.store.ListCoverageRequests(ctx, instanceID)
	if err != nil {
		return nil, storeFailure("coverage history", err)
	}
	return history, nil
}

func errAlreadyResolved(op string, req CoverageRequest) *Error {
	return newError(ErrCodeAlreadyResolved, op, fmt.Sprintf("request %s was already answered", req.ID), nil)
}
