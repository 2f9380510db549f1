// Package testutil provides shared test helpers for laying out archives.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/gridcat/internal/storage"
)

// Archive creates a temporary archive root with a storage.Provider.
func Archive(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return store.Root(), store
}

// WriteFile creates path (and its parents) with a GRIB-looking payload and
// sets its modification time to mtime seconds since the epoch.
func WriteFile(t *testing.T, path string, mtime int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("GRIB....7777"), 0o644); err != nil {
		t.Fatal(err)
	}
	Touch(t, path, mtime)
}

// Touch sets the modification time of path to mtime seconds since the epoch.
func Touch(t *testing.T, path string, mtime int64) {
	t.Helper()
	ts := time.Unix(mtime, 0)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the bytes at path or fails the test.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
