// Package storage defines the archive file-system abstraction.
package storage

import (
	"context"

	"github.com/starford/gridcat/internal/models"
)

// Matcher is the inclusion predicate applied to candidate archive files.
type Matcher func(path string) bool

// MatchAll accepts every file.
func MatchAll(string) bool { return true }

// Provider is the interface for archive file operations. Paths may be
// absolute (inside the root) or relative to the root; returned paths are absolute.
type Provider interface {
	// Root returns the absolute archive root.
	Root() string
	// Stat observes a single file.
	Stat(path string) (models.MFile, error)
	// ListFiles returns the regular files directly inside dir accepted by
	// match, sorted by path.
	ListFiles(ctx context.Context, dir string, match Matcher) ([]models.MFile, error)
	// WalkFiles is ListFiles over dir and every directory below it.
	WalkFiles(ctx context.Context, dir string, match Matcher) ([]models.MFile, error)
	// ListDirs returns the immediate subdirectories of dir, sorted by name.
	ListDirs(ctx context.Context, dir string) ([]string, error)
	// ContainsMatch reports whether any file below dir (at any depth) is accepted by match.
	ContainsMatch(ctx context.Context, dir string, match Matcher) (bool, error)
	// WriteAtomic replaces path with content so readers never see a partial file.
	WriteAtomic(path string, content []byte) error
}
