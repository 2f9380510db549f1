// Package models defines the domain types for gridcat.
package models

import (
	"path/filepath"
	"time"
)

// MFile is an immutable observation of one archive member: where it lives,
// when it was last modified and how large it was.
type MFile struct {
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
	Size         int64     `json:"size"`
}

// NewMFile builds an MFile, truncating the timestamp to the millisecond
// resolution stored in index files.
func NewMFile(path string, modTime time.Time, size int64) MFile {
	return MFile{
		Path:         path,
		LastModified: time.UnixMilli(modTime.UnixMilli()),
		Size:         size,
	}
}

// Name returns the base name of the file.
func (m MFile) Name() string {
	return filepath.Base(m.Path)
}

// Dir returns the directory containing the file.
func (m MFile) Dir() string {
	return filepath.Dir(m.Path)
}

// SameAs reports whether both observations refer to the same file version.
func (m MFile) SameAs(o MFile) bool {
	return m.Path == o.Path && m.LastModified.Equal(o.LastModified)
}

// Diff compares a recorded member list against a fresh scan. It returns the
// paths that were added, removed, or whose timestamp changed.
func Diff(recorded, current []MFile) (added, removed, modified []string) {
	old := make(map[string]MFile, len(recorded))
	for _, m := range recorded {
		old[m.Path] = m
	}
	seen := make(map[string]struct{}, len(current))
	for _, m := range current {
		seen[m.Path] = struct{}{}
		prev, ok := old[m.Path]
		switch {
		case !ok:
			added = append(added, m.Path)
		case !prev.SameAs(m):
			modified = append(modified, m.Path)
		}
	}
	for _, m := range recorded {
		if _, ok := seen[m.Path]; !ok {
			removed = append(removed, m.Path)
		}
	}
	return added, removed, modified
}

// Equal reports whether two member lists describe the same set of file versions.
func Equal(a, b []MFile) bool {
	added, removed, modified := Diff(a, b)
	return len(added) == 0 && len(removed) == 0 && len(modified) == 0
}
