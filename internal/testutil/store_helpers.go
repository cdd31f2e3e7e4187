package testutil

import (
	"path/filepath"
	"testing"

	"github.com/wesm/chatarchive/internal/store"
)

// NewTestStore creates a temporary database for testing.
// The database is automatically cleaned up when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	if err := st.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	return st
}

// SeedMessages inserts msgs and fails the test if any row is rejected.
func SeedMessages(t *testing.T, st *store.Store, msgs ...store.Message) {
	t.Helper()
	n, rowErrs, err := st.InsertMessages(msgs)
	if err != nil {
		t.Fatalf("seed messages: %v", err)
	}
	if len(rowErrs) > 0 {
		t.Fatalf("seed messages: %d rows rejected, first: %v", len(rowErrs), rowErrs[0])
	}
	if n != len(msgs) {
		t.Fatalf("seed messages: inserted %d of %d", n, len(msgs))
	}
}
