package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/gridcat/internal/apperr"
	"github.com/starford/gridcat/internal/models"
)

// TempPrefix marks in-flight atomic writes.
const TempPrefix = ".gridcat-tmp-"

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to archive root
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", notFound(err))
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute archive root.
func (f *FS) Root() string { return f.root }

// safePath resolves p against the archive root and rejects any result that
// escapes it.
func (f *FS) safePath(p string) (string, error) {
	if p == "" {
		return f.root, nil
	}
	joined := filepath.Clean(p)
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(f.root, joined)
	}
	if !strings.HasPrefix(joined, f.root+string(os.PathSeparator)) && joined != f.root {
		return "", fmt.Errorf("storage: path escapes archive root: %s", p)
	}
	return joined, nil
}

// Stat observes a single file.
func (f *FS) Stat(path string) (models.MFile, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.MFile{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return models.MFile{}, fmt.Errorf("storage: stat %s: %w", abs, notFound(err))
	}
	if info.IsDir() {
		return models.MFile{}, fmt.Errorf("storage: stat %s: is a directory", abs)
	}
	return models.NewMFile(abs, info.ModTime(), info.Size()), nil
}

// ListFiles returns the regular files directly inside dir accepted by match.
func (f *FS) ListFiles(ctx context.Context, dir string, match Matcher) ([]models.MFile, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", base, notFound(err))
	}
	var out []models.MFile
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("storage: list %s: %w", base, apperr.ErrCancelled)
		}
		if !e.Type().IsRegular() || IsTemp(e.Name()) {
			continue
		}
		p := filepath.Join(base, e.Name())
		if match != nil && !match(p) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", p, err)
		}
		out = append(out, models.NewMFile(p, info.ModTime(), info.Size()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// WalkFiles returns the regular files at any depth below dir accepted by
// match, sorted by path.
func (f *FS) WalkFiles(ctx context.Context, dir string, match Matcher) ([]models.MFile, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	var out []models.MFile
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return apperr.ErrCancelled
		}
		if d.IsDir() || !d.Type().IsRegular() || IsTemp(d.Name()) {
			return nil
		}
		if match != nil && !match(p) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, models.NewMFile(p, info.ModTime(), info.Size()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: walk %s: %w", base, notFound(err))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ListDirs returns the immediate subdirectories of dir, sorted by name.
func (f *FS) ListDirs(ctx context.Context, dir string) ([]string, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("storage: list dirs %s: %w", base, notFound(err))
	}
	var out []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("storage: list dirs %s: %w", base, apperr.ErrCancelled)
		}
		if e.IsDir() {
			out = append(out, filepath.Join(base, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

// ContainsMatch walks dir and stops at the first accepted file.
func (f *FS) ContainsMatch(ctx context.Context, dir string, match Matcher) (bool, error) {
	base, err := f.safePath(dir)
	if err != nil {
		return false, err
	}
	found := false
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return apperr.ErrCancelled
		}
		if d.IsDir() || !d.Type().IsRegular() || IsTemp(d.Name()) {
			return nil
		}
		if match == nil || match(p) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("storage: walk %s: %w", base, notFound(err))
	}
	return found, nil
}

// WriteAtomic writes content: tmp file → fsync → rename.
func (f *FS) WriteAtomic(path string, content []byte) error {
	abs, err := f.safePath(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	tmp, err := os.CreateTemp(dir, TempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", notFound(err))
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// IsTemp reports whether name is an in-flight atomic write.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, TempPrefix)
}

// notFound tags missing-path errors with apperr.ErrNotFound while keeping the cause.
func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Join(apperr.ErrNotFound, err)
	}
	return err
}
