// Package testutil provides shared test helpers for setting up work
// directories and task databases.
package testutil

import (
	"os"
	"testing"

	"github.com/egret-dev/egret/internal/storage"
	"github.com/egret-dev/egret/internal/taskstore"
)

// TestTaskDB creates a temporary SQLite task store that is
// automatically cleaned up.
func TestTaskDB(t *testing.T) *taskstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "egret-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := taskstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestWorkDir creates a temporary work directory with a
// storage.Provider.
func TestWorkDir(t *testing.T) (string, storage.Provider) {
	t.Helper()
	workDir := t.TempDir()
	store, err := storage.NewFS(workDir)
	if err != nil {
		t.Fatal(err)
	}
	return workDir, store
}
