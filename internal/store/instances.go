package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

const instanceColumns = `id, entity_type, entity_id, date, status, assignee_override,
	deferred_to, completed_at, skipped_at, created_at, updated_at`

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Find returns the instance for key.
// Returns instance.ErrNotFound if no row exists.
func (s *Store) Find(ctx context.Context, key instance.Key) (instance.Instance, error) {
	return findByKey(ctx, s.db, key)
}

// Get returns the instance with the given id.
// Returns instance.ErrNotFound if no row exists.
func (s *Store) Get(ctx context.Context, id string) (instance.Instance, error) {
	return getByID(ctx, s.db, id)
}

// CreateIfAbsent inserts candidate unless its (entity_type, entity_id, date)
// already exists, then returns whichever row is stored.
//
// The insert and the select run in one transaction with
// ON CONFLICT(entity_type, entity_id, date) DO NOTHING, so racing callers all
// observe the single winning row. created is true only for the winner.
func (s *Store) CreateIfAbsent(ctx context.Context, candidate instance.Instance) (inst instance.Instance, created bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return instance.Instance{}, false, fmt.Errorf("create instance: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO instances
		(id, entity_type, entity_id, date, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id, date) DO NOTHING
	`,
		candidate.ID,
		string(candidate.EntityType),
		candidate.EntityID,
		candidate.Date.String(),
		string(instance.StatusPending),
		candidate.CreatedAt.UnixNano(),
		candidate.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return instance.Instance{}, false, fmt.Errorf("create instance: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return instance.Instance{}, false, fmt.Errorf("create instance: rows affected: %w", err)
	}

	inst, err = findByKey(ctx, tx, candidate.Key())
	if err != nil {
		return instance.Instance{}, false, fmt.Errorf("create instance: select existing: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return instance.Instance{}, false, fmt.Errorf("create instance: commit: %w", err)
	}

	return inst, rowsAffected > 0, nil
}

// UpdateLifecycle overwrites status, completed_at, skipped_at and deferred_to
// in a single statement and returns the updated row.
func (s *Store) UpdateLifecycle(ctx context.Context, id string, lc instance.Lifecycle, at time.Time) (instance.Instance, error) {
	return s.updateInstance(ctx, "update lifecycle", id, `
		UPDATE instances
		SET status = ?, completed_at = ?, skipped_at = ?, deferred_to = ?, updated_at = ?
		WHERE id = ?
	`,
		string(lc.Status),
		toNullTime(lc.CompletedAt),
		toNullTime(lc.SkippedAt),
		toNullTime(lc.DeferredTo),
		at.UnixNano(),
		id,
	)
}

// UpdateAssignee overwrites assignee_override. A nil assignee clears it.
func (s *Store) UpdateAssignee(ctx context.Context, id string, assignee *string, at time.Time) (instance.Instance, error) {
	return s.updateInstance(ctx, "update assignee", id, `
		UPDATE instances
		SET assignee_override = ?, updated_at = ?
		WHERE id = ?
	`,
		toNullString(assignee),
		at.UnixNano(),
		id,
	)
}

func (s *Store) updateInstance(ctx context.Context, op, id, query string, args ...any) (instance.Instance, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return instance.Instance{}, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return instance.Instance{}, fmt.Errorf("%s %s: %w", op, id, instance.ErrNotFound)
	}

	inst, err := getByID(ctx, tx, id)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("%s: reload: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return instance.Instance{}, fmt.Errorf("%s: commit: %w", op, err)
	}
	return inst, nil
}

// QueryByDate returns all instances whose original date is date, whatever
// their status. Ordered by entity_type, entity_id, id.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) QueryByDate(ctx context.Context, date recurrence.Date) ([]instance.Instance, error) {
	return s.queryInstances(ctx, "query by date", `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE date = ?
		ORDER BY entity_type ASC, entity_id ASC, id COLLATE BINARY ASC
	`, date.String())
}

// QueryByDeferredTo returns deferred instances with deferred_to in
// [start, end). Ordered by deferred_to, then id.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) QueryByDeferredTo(ctx context.Context, start, end time.Time) ([]instance.Instance, error) {
	return s.queryInstances(ctx, "query by deferred to", `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE status = 'deferred' AND deferred_to >= ? AND deferred_to < ?
		ORDER BY deferred_to ASC, id COLLATE BINARY ASC
	`, start.UnixNano(), end.UnixNano())
}

func (s *Store) queryInstances(ctx context.Context, op, query string, args ...any) ([]instance.Instance, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	instances := []instance.Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return instances, nil
}

func findByKey(ctx context.Context, q rowQuerier, key instance.Key) (instance.Instance, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE entity_type = ? AND entity_id = ? AND date = ?
	`, string(key.EntityType), key.EntityID, key.Date.String())

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return instance.Instance{}, fmt.Errorf("instance %s: %w", key, instance.ErrNotFound)
	}
	return inst, err
}

func getByID(ctx context.Context, q rowQuerier, id string) (instance.Instance, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+instanceColumns+`
		FROM instances
		WHERE id = ?
	`, id)

	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return instance.Instance{}, fmt.Errorf("instance %s: %w", id, instance.ErrNotFound)
	}
	return inst, err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(sc scanner) (instance.Instance, error) {
	var inst instance.Instance
	var entityType, date, status string
	var assignee sql.NullString
	var deferredTo, completedAt, skippedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := sc.Scan(
		&inst.ID, &entityType, &inst.EntityID, &date, &status, &assignee,
		&deferredTo, &completedAt, &skippedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return instance.Instance{}, err
	}

	inst.Date, err = recurrence.ParseDate(date)
	if err != nil {
		return instance.Instance{}, fmt.Errorf("scan instance %s: %w", inst.ID, err)
	}
	inst.EntityType = instance.EntityType(entityType)
	inst.Status = instance.Status(status)
	inst.AssigneeOverride = fromNullString(assignee)
	inst.DeferredTo = fromNullTime(deferredTo)
	inst.CompletedAt = fromNullTime(completedAt)
	inst.SkippedAt = fromNullTime(skippedAt)
	inst.CreatedAt = fromUnixNano(createdAt)
	inst.UpdatedAt = fromUnixNano(updatedAt)
	return inst, nil
}
