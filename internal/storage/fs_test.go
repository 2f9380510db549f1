package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/gridcat/internal/apperr"
)

func tempArchive(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func writeFile(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("GRIB"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestListFilesSortedAndFiltered(t *testing.T) {
	s := tempArchive(t)
	ts := time.Unix(100, 0)
	writeFile(t, filepath.Join(s.Root(), "b.grib2"), ts)
	writeFile(t, filepath.Join(s.Root(), "a.grib2"), ts)
	writeFile(t, filepath.Join(s.Root(), "README.txt"), ts)
	writeFile(t, filepath.Join(s.Root(), TempPrefix+"123"), ts)
	writeFile(t, filepath.Join(s.Root(), "sub", "c.grib2"), ts)

	match := func(p string) bool { return strings.HasSuffix(p, ".grib2") }
	items, err := s.ListFiles(context.Background(), "", match)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Name() != "a.grib2" || items[1].Name() != "b.grib2" {
		t.Errorf("order = %s, %s", items[0].Name(), items[1].Name())
	}
	if !items[0].LastModified.Equal(ts) {
		t.Errorf("mtime = %v, want %v", items[0].LastModified, ts)
	}
}

func TestListFiles_MissingDir(t *testing.T) {
	s := tempArchive(t)
	_, err := s.ListFiles(context.Background(), "nope", MatchAll)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListFiles_Cancelled(t *testing.T) {
	s := tempArchive(t)
	writeFile(t, filepath.Join(s.Root(), "a.grib2"), time.Unix(100, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ListFiles(ctx, "", MatchAll)
	if !errors.Is(err, apperr.ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", err)
	}
}

func TestListDirs(t *testing.T) {
	s := tempArchive(t)
	for _, d := range []string{"2024", "2023", "2025"} {
		if err := os.MkdirAll(filepath.Join(s.Root(), d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(s.Root(), "file.grib2"), time.Unix(1, 0))

	dirs, err := s.ListDirs(context.Background(), "")
	if err != nil {
		t.Fatalf("ListDirs: %v", err)
	}
	want := []string{"2023", "2024", "2025"}
	if len(dirs) != len(want) {
		t.Fatalf("dirs = %v", dirs)
	}
	for i, d := range dirs {
		if filepath.Base(d) != want[i] {
			t.Errorf("dirs[%d] = %s, want %s", i, d, want[i])
		}
	}
}

func TestContainsMatch(t *testing.T) {
	s := tempArchive(t)
	writeFile(t, filepath.Join(s.Root(), "a", "b", "deep.grib2"), time.Unix(1, 0))
	if err := os.MkdirAll(filepath.Join(s.Root(), "empty", "x"), 0o755); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ok, err := s.ContainsMatch(ctx, "a", MatchAll)
	if err != nil || !ok {
		t.Errorf("a: ok=%v err=%v", ok, err)
	}
	ok, err = s.ContainsMatch(ctx, "empty", MatchAll)
	if err != nil || ok {
		t.Errorf("empty: ok=%v err=%v", ok, err)
	}
}

func TestStat(t *testing.T) {
	s := tempArchive(t)
	p := filepath.Join(s.Root(), "f.grib2")
	writeFile(t, p, time.Unix(200, 0))
	m, err := s.Stat(p)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if m.Path != p || m.Size != 4 || m.LastModified.Unix() != 200 {
		t.Errorf("mfile = %+v", m)
	}
	if _, err := s.Stat("missing.grib2"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempArchive(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.gcx",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Stat(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.WriteAtomic(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempArchive(t)
	p := filepath.Join(s.Root(), "atomic.gcx")
	if err := s.WriteAtomic(p, []byte("original content")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	updated := []byte("updated content")
	if err := s.WriteAtomic(p, updated); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	got, _ := os.ReadFile(p)
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, TempPrefix+"*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestAtomicWriteMissingDirLeavesNothing(t *testing.T) {
	s := tempArchive(t)
	err := s.WriteAtomic(filepath.Join(s.Root(), "nodir", "x.gcx"), []byte("x"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS("/tmp/gridcat-does-not-exist-" + t.Name())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "gridcat-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestWalkFilesDescends(t *testing.T) {
	s := tempArchive(t)
	ts := time.Unix(100, 0)
	writeFile(t, filepath.Join(s.Root(), "top.grib2"), ts)
	writeFile(t, filepath.Join(s.Root(), "2024", "01", "f1.grib2"), ts)
	writeFile(t, filepath.Join(s.Root(), "2024", "02", "f2.grib2"), ts)
	writeFile(t, filepath.Join(s.Root(), "2024", "02", TempPrefix+"9"), ts)
	writeFile(t, filepath.Join(s.Root(), "2024", "README.txt"), ts)

	match := func(p string) bool { return strings.HasSuffix(p, ".grib2") }
	items, err := s.WalkFiles(context.Background(), "", match)
	if err != nil {
		t.Fatalf("WalkFiles: %v", err)
	}
	want := []string{
		filepath.Join(s.Root(), "2024", "01", "f1.grib2"),
		filepath.Join(s.Root(), "2024", "02", "f2.grib2"),
		filepath.Join(s.Root(), "top.grib2"),
	}
	if len(items) != len(want) {
		t.Fatalf("len = %d, want %d", len(items), len(want))
	}
	for i, p := range want {
		if items[i].Path != p {
			t.Errorf("items[%d] = %s, want %s", i, items[i].Path, p)
		}
	}
}

func TestWalkFiles_MissingDir(t *testing.T) {
	s := tempArchive(t)
	_, err := s.WalkFiles(context.Background(), "nope", MatchAll)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
