package store

import (
	"context"
	"testing"
)

// TestDSN opens a private in-memory sqlite database with foreign keys on
const TestDSN = "file::memory:?_pragma=foreign_keys(1)&_time_format=sqlite"

// NewTestStore returns a migrated in-memory store closed at test cleanup
func NewTestStore(t testing.TB) *Store {
	t.Helper()

	s, err := NewStore(DriverSQLite, TestDSN)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}
	return s
}
