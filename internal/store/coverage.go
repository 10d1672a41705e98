package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hearth/internal/instance"
)

const coverageColumns = `id, instance_id, requested_by, covered_by, status, requested_at, responded_at`

// InsertCoverageRequest appends a request. The referenced instance must exist
// (foreign key constraint).
func (s *Store) InsertCoverageRequest(ctx context.Context, r instance.CoverageRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO coverage_requests
		(id, instance_id, requested_by, covered_by, status, requested_at, responded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.InstanceID,
		r.RequestedBy,
		toNullString(r.CoveredBy),
		string(r.Status),
		r.RequestedAt.UnixNano(),
		toNullTime(r.RespondedAt),
	)
	if err != nil {
		return fmt.Errorf("insert coverage request: %w", err)
	}
	return nil
}

// GetCoverageRequest returns a request by id.
// Returns instance.ErrNotFound if it does not exist.
func (s *Store) GetCoverageRequest(ctx context.Context, id string) (instance.CoverageRequest, error) {
	return getCoverageRequest(ctx, s.db, id)
}

// ListCoverageRequests returns every request for an instance, oldest first.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListCoverageRequests(ctx context.Context, instanceID string) ([]instance.CoverageRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+coverageColumns+`
		FROM coverage_requests
		WHERE instance_id = ?
		ORDER BY requested_at ASC, rowid ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list coverage requests: %w", err)
	}
	defer rows.Close()

	requests := []instance.CoverageRequest{}
	for rows.Next() {
		r, err := scanCoverageRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("list coverage requests: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list coverage requests: iterate: %w", err)
	}
	return requests, nil
}

// ResolveCoverageRequest sets status, covered_by and responded_at on a
// request that is still pending. The WHERE status = 'pending' guard makes a
// second response a no-op reported as instance.ErrNotPending.
func (s *Store) ResolveCoverageRequest(ctx context.Context, id string, status instance.CoverageStatus, coveredBy *string, at time.Time) (instance.CoverageRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("resolve coverage request: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE coverage_requests
		SET status = ?, covered_by = ?, responded_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(status), toNullString(coveredBy), at.UnixNano(), id)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("resolve coverage request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("resolve coverage request: rows affected: %w", err)
	}

	req, err := getCoverageRequest(ctx, tx, id)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("resolve coverage request: %w", err)
	}
	if n == 0 {
		return instance.CoverageRequest{}, fmt.Errorf("coverage request %s is %s: %w", id, req.Status, instance.ErrNotPending)
	}

	if err := tx.Commit(); err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("resolve coverage request: commit: %w", err)
	}
	return req, nil
}

// AcceptCoverageRequest assigns the request's instance to responder and
// marks the request accepted in one transaction. The assignee is written
// first; the flip is guarded by status = 'pending', and when it matches no
// row the transaction rolls back and instance.ErrNotPending is returned.
func (s *Store) AcceptCoverageRequest(ctx context.Context, id, responder string, at time.Time) (instance.CoverageRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	req, err := getCoverageRequest(ctx, tx, id)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE instances
		SET assignee_override = ?, updated_at = ?
		WHERE id = ?
	`, responder, at.UnixNano(), req.InstanceID); err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: update assignee: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE coverage_requests
		SET status = ?, covered_by = ?, responded_at = ?
		WHERE id = ? AND status = 'pending'
	`, string(instance.CoverageAccepted), responder, at.UnixNano(), id)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: rows affected: %w", err)
	}
	if n == 0 {
		return instance.CoverageRequest{}, fmt.Errorf("coverage request %s is %s: %w", id, req.Status, instance.ErrNotPending)
	}

	req, err = getCoverageRequest(ctx, tx, id)
	if err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: reload: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return instance.CoverageRequest{}, fmt.Errorf("accept coverage request: commit: %w", err)
	}
	return req, nil
}

func getCoverageRequest(ctx context.Context, q rowQuerier, id string) (instance.CoverageRequest, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+coverageColumns+`
		FROM coverage_requests
		WHERE id = ?
	`, id)

	r, err := scanCoverageRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return instance.CoverageRequest{}, fmt.Errorf("coverage request %s: %w", id, instance.ErrNotFound)
	}
	return r, err
}

func scanCoverageRequest(sc scanner) (instance.CoverageRequest, error) {
	var r instance.CoverageRequest
	var status string
	var coveredBy sql.NullString
	var requestedAt int64
	var respondedAt sql.NullInt64

	if err := sc.Scan(&r.ID, &r.InstanceID, &r.RequestedBy, &coveredBy, &status, &requestedAt, &respondedAt); err != nil {
		return instance.CoverageRequest{}, err
	}
	r.Status = instance.CoverageStatus(status)
	r.CoveredBy = fromNullString(coveredBy)
	r.RequestedAt = fromUnixNano(requestedAt)
	r.RespondedAt = fromNullTime(respondedAt)
	return r, nil
}
