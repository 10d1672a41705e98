package store

import (
	"context"
	"fmt"

	"github.com/roach88/hearth/internal/instance"
)

// InsertNote appends a note. The referenced instance must exist (foreign key
// constraint).
func (s *Store) InsertNote(ctx context.Context, n instance.Note) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instance_notes (id, instance_id, author, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.InstanceID, n.Author, n.Body, n.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

// ListNotes returns an instance's notes ordered by creation time, then
// insertion order.
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListNotes(ctx context.Context, instanceID string) ([]instance.Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, instance_id, author, body, created_at
		FROM instance_notes
		WHERE instance_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	notes := []instance.Note{}
	for rows.Next() {
		var n instance.Note
		var createdAt int64
		if err := rows.Scan(&n.ID, &n.InstanceID, &n.Author, &n.Body, &createdAt); err != nil {
			return nil, fmt.Errorf("list notes: scan: %w", err)
		}
		n.CreatedAt = fromUnixNano(createdAt)
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notes: iterate: %w", err)
	}
	return notes, nil
}

// DeleteNote removes a note.
// Returns instance.ErrNotFound if it does not exist.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM instance_notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("note %s: %w", id, instance.ErrNotFound)
	}
	return nil
}
