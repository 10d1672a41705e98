package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/hearth/internal/instance"
	"github.com/roach88/hearth/internal/recurrence"
)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testNow = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

// createTestCandidate builds an unsaved pending instance for key.
func createTestCandidate(id, entityID, date string) instance.Instance {
	return instance.Instance{
		ID:         id,
		EntityType: instance.Routine,
		EntityID:   entityID,
		Date:       recurrence.MustParseDate(date),
		Status:     instance.StatusPending,
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
}

// mustCreate materializes a candidate and fails the test on error.
func mustCreate(t *testing.T, s *Store, candidate instance.Instance) instance.Instance {
	t.Helper()
	inst, _, err := s.CreateIfAbsent(context.Background(), candidate)
	if err != nil {
		t.Fatalf("CreateIfAbsent() failed: %v", err)
	}
	return inst
}
