// Package collectionservice exposes catalog updates and index reads to the
// HTTP and MCP front ends.
package collectionservice

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/gridcat/internal/apperr"
	"github.com/starford/gridcat/internal/catalog"
	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/indexfile"
	"github.com/starford/gridcat/internal/models"
)

// CollectionInfo describes one configured collection.
type CollectionInfo struct {
	Name       string              `json:"name"`
	Spec       string              `json:"spec"`
	RootDir    string              `json:"root_dir"`
	Subdirs    bool                `json:"subdirs"`
	DateFormat string              `json:"date_format,omitempty"`
	Partition  collection.Strategy `json:"partition"`
	Self       collection.Policy   `json:"collection_policy"`
	Children   collection.Policy   `json:"children_policy"`
}

// ChildInfo is one child reported by a partition index.
type ChildInfo struct {
	Dir          string    `json:"dir"`
	Name         string    `json:"name"`
	IndexPath    string    `json:"index_path"`
	LastModified time.Time `json:"last_modified"`
}

// UpdateResult reports the outcome of an update call.
type UpdateResult struct {
	Collection string            `json:"collection"`
	Result     collection.Result `json:"result"`
	Error      string            `json:"error,omitempty"`
}

// Service coordinates the catalog updater, the ledger and index reads.
type Service struct {
	targets []catalog.Target
	byName  map[string]catalog.Target
	updater *catalog.Updater
	ledger  catalog.Ledger
}

// NewService creates a new collection service.
func NewService(targets []catalog.Target, updater *catalog.Updater, ledger catalog.Ledger) *Service {
	byName := make(map[string]catalog.Target, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
	}
	return &Service{targets: targets, byName: byName, updater: updater, ledger: ledger}
}

// Collections lists the configured collections in configuration order.
func (s *Service) Collections(_ context.Context) []CollectionInfo {
	out := make([]CollectionInfo, len(s.targets))
	for i, t := range s.targets {
		out[i] = CollectionInfo{
			Name:       t.Name,
			Spec:       t.Spec.String(),
			RootDir:    t.Spec.RootDir,
			Subdirs:    t.Spec.WantSubdirs,
			DateFormat: t.Spec.DateFormat,
			Partition:  t.Strategy,
			Self:       t.Self,
			Children:   t.Children,
		}
	}
	return out
}

// UpdateCollection updates the named collection. Empty policies fall back to
// the collection's configured ones. A failed update still returns the
// partial result alongside the error.
func (s *Service) UpdateCollection(ctx context.Context, name string, self, children collection.Policy) (*UpdateResult, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", name, apperr.ErrNotFound)
	}
	if self == "" {
		self = t.Self
	}
	if children == "" {
		children = t.Children
	}
	res, err := s.updater.Update(ctx, t, self, children)
	out := &UpdateResult{Collection: name, Result: res}
	if err != nil {
		out.Error = err.Error()
	}
	return out, err
}

// IndexKind returns "leaf" or "partition" for the index at path.
func (s *Service) IndexKind(_ context.Context, path string) (string, error) {
	p, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	kind, err := indexfile.ReadKind(p)
	if err != nil {
		return "", err
	}
	return kind.String(), nil
}

// Children lists the children of the partition index at path.
func (s *Service) Children(_ context.Context, path string) ([]ChildInfo, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	out := []ChildInfo{}
	err = indexfile.ReadChildren(p, func(dir, name string, lastModified time.Time) {
		out = append(out, ChildInfo{
			Dir:          dir,
			Name:         name,
			IndexPath:    indexfile.PathFor(dir, name),
			LastModified: lastModified,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MFiles lists the members of the leaf index at path.
func (s *Service) MFiles(_ context.Context, path string) ([]models.MFile, error) {
	p, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	files, err := indexfile.ReadMFiles(p)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []models.MFile{}
	}
	return files, nil
}

// Nodes returns the ledger entries of a collection, or of all collections
// when name is empty.
func (s *Service) Nodes(_ context.Context, name string) ([]catalog.NodeRow, error) {
	if name != "" {
		if _, ok := s.byName[name]; !ok {
			return nil, fmt.Errorf("collection %q: %w", name, apperr.ErrNotFound)
		}
	}
	rows, err := s.ledger.ListNodes(name)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []catalog.NodeRow{}
	}
	return rows, nil
}

// Runs returns the most recent update runs of a collection.
func (s *Service) Runs(_ context.Context, name string, limit int) ([]catalog.RunRow, error) {
	if _, ok := s.byName[name]; !ok {
		return nil, fmt.Errorf("collection %q: %w", name, apperr.ErrNotFound)
	}
	rows, err := s.ledger.ListRuns(name, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []catalog.RunRow{}
	}
	return rows, nil
}

// resolve restricts reads to index files under a configured collection root.
func (s *Service) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required: %w", apperr.ErrInvalidInput)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, apperr.ErrInvalidInput)
	}
	if !indexfile.IsIndexArtifact(abs) {
		return "", fmt.Errorf("%s is not an index file: %w", path, apperr.ErrInvalidInput)
	}
	for _, t := range s.targets {
		root, err := filepath.Abs(t.Spec.RootDir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(root, abs)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%s is outside every collection: %w", path, apperr.ErrNotFound)
}
