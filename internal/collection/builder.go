// Package collection builds and refreshes the tree of catalog nodes: leaf
// collections over raw files and partitions over other nodes, each backed by
// its own index file.
package collection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/starford/gridcat/internal/apperr"
	"github.com/starford/gridcat/internal/checksum"
	"github.com/starford/gridcat/internal/indexfile"
	"github.com/starford/gridcat/internal/models"
	"github.com/starford/gridcat/internal/storage"
)

// Event describes the final state of one node after an update.
type Event struct {
	IndexPath string
	Name      string
	Kind      Kind
	Decision  Decision
	Rebuilt   bool
	Members   int
	Checksum  string
	Err       error
}

// Observer is notified once per visited node. It may be called from several
// goroutines at once.
type Observer func(Event)

// Option configures a Builder.
type Option func(*Builder)

// WithMatcher sets the inclusion predicate for archive files.
func WithMatcher(m storage.Matcher) Option {
	return func(b *Builder) { b.match = m }
}

// WithWorkers bounds how many sibling subtrees are processed at once.
func WithWorkers(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.workers = n
		}
	}
}

// WithSubdirs makes leaf scans and file partitions include files in
// subdirectories of the node root.
func WithSubdirs(on bool) Option {
	return func(b *Builder) { b.subdirs = on }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithObserver registers a per-node callback.
func WithObserver(o Observer) Option {
	return func(b *Builder) { b.observer = o }
}

// Builder runs the update decision engine over a node tree.
type Builder struct {
	store    storage.Provider
	match    storage.Matcher
	workers  int
	subdirs  bool
	logger   *slog.Logger
	observer Observer
}

// NewBuilder creates a Builder over store.
func NewBuilder(store storage.Provider, opts ...Option) *Builder {
	b := &Builder{
		store:   store,
		workers: 1,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Update brings n's index up to date. self applies to n; children applies to
// every descendant. The returned error joins the failures of all subtrees;
// children that succeeded keep their new index even when n itself fails.
func (b *Builder) Update(ctx context.Context, n *Node, self, children Policy) (Result, error) {
	if n.IsPartition() {
		return b.updatePartition(ctx, n, self, children)
	}
	return b.updateLeaf(ctx, n, self)
}

func (b *Builder) updateLeaf(ctx context.Context, n *Node, self Policy) (Result, error) {
	res := Result{Stats: Stats{Nodes: 1}}
	if err := ctx.Err(); err != nil {
		return b.fail(n, res, Rebuild, apperr.ErrCancelled)
	}

	exists, err := b.indexExists(n)
	if err != nil {
		return b.fail(n, res, Rebuild, err)
	}
	d := Decide(exists, self)
	res.Decision = d
	switch d {
	case NoIndex:
		return b.fail(n, res, d, apperr.ErrNoIndex)
	case Keep:
		return b.keep(n, res, 0)
	}

	members, err := b.scanLeaf(ctx, n)
	if err != nil {
		return b.fail(n, res, d, err)
	}
	res.Stats.Scanned = len(members)
	n.Members = members

	if d == Verify {
		stale, err := b.stale(n, indexfile.Catalog{TopDir: n.Root, Members: members})
		if err != nil {
			return b.fail(n, res, d, err)
		}
		if !stale {
			return b.keep(n, res, len(members))
		}
	}

	cat := indexfile.Catalog{TopDir: n.Root, Members: members}
	return b.rebuild(ctx, n, res, cat, func() ([]models.MFile, error) {
		return b.scanLeaf(ctx, n)
	})
}

func (b *Builder) updatePartition(ctx context.Context, n *Node, self, children Policy) (Result, error) {
	res := Result{Stats: Stats{Nodes: 1}}
	if err := ctx.Err(); err != nil {
		return b.fail(n, res, Rebuild, apperr.ErrCancelled)
	}

	exists, err := b.indexExists(n)
	if err != nil {
		return b.fail(n, res, Rebuild, err)
	}
	d := Decide(exists, self)
	res.Decision = d
	if children == Never {
		switch d {
		case Keep:
			return b.keep(n, res, 0)
		case NoIndex:
			return b.fail(n, res, d, apperr.ErrNoIndex)
		}
	}

	kids, err := b.listChildren(ctx, n)
	if err != nil {
		return b.fail(n, res, d, err)
	}
	n.Children = kids

	if children != Never {
		childStats, errs := b.updateChildren(ctx, kids, children)
		res.Stats.Merge(childStats)
		if len(errs) > 0 {
			b.logger.Warn("collection: partition skipped after child failures",
				slog.String("index", n.IndexPath()),
				slog.Int("failed_children", len(errs)))
			res.Stats.Failed++
			b.emit(Event{IndexPath: n.IndexPath(), Name: n.Name, Kind: n.Kind, Decision: d, Err: errors.Join(errs...)})
			return res, errors.Join(errs...)
		}
	}

	switch d {
	case NoIndex:
		return b.fail(n, res, d, apperr.ErrNoIndex)
	case Keep:
		return b.keep(n, res, len(kids))
	}

	members, err := b.childIndexes(kids)
	if err != nil {
		return b.fail(n, res, d, err)
	}
	res.Stats.Scanned += len(members)
	cat := indexfile.Catalog{TopDir: n.Root, Members: members, Children: childPaths(kids)}

	if d == Verify {
		stale, err := b.stale(n, cat)
		if err != nil {
			return b.fail(n, res, d, err)
		}
		if !stale {
			return b.keep(n, res, len(kids))
		}
	}

	return b.rebuild(ctx, n, res, cat, func() ([]models.MFile, error) {
		return b.childIndexes(kids)
	})
}

// updateChildren resolves every child before returning. Siblings run on a
// bounded pool; a failing sibling never cancels the others.
func (b *Builder) updateChildren(ctx context.Context, kids []*Node, policy Policy) (Stats, []error) {
	type outcome struct {
		res Result
		err error
	}
	outcomes := make([]outcome, len(kids))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, kid := range kids {
		if ctx.Err() != nil {
			outcomes[i].err = apperr.AtNode(kid.IndexPath(), fmt.Errorf("collection: %w", apperr.ErrCancelled))
			continue
		}
		g.Go(func() error {
			r, err := b.Update(ctx, kid, policy, policy)
			outcomes[i] = outcome{res: r, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var stats Stats
	var errs []error
	for _, o := range outcomes {
		stats.Merge(o.res.Stats)
		if o.err != nil {
			errs = append(errs, o.err)
		}
	}
	return stats, errs
}

func (b *Builder) matcher() storage.Matcher {
	return func(p string) bool {
		if indexfile.IsIndexArtifact(p) {
			return false
		}
		return b.match == nil || b.match(p)
	}
}

func (b *Builder) indexExists(n *Node) (bool, error) {
	_, err := b.store.Stat(n.IndexPath())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, apperr.ErrNotFound):
		return false, nil
	}
	return false, err
}

func (b *Builder) scanLeaf(ctx context.Context, n *Node) ([]models.MFile, error) {
	if n.File != "" {
		m, err := b.store.Stat(n.File)
		if err != nil {
			return nil, err
		}
		return []models.MFile{m}, nil
	}
	return b.listFiles(ctx, n.Root)
}

// listFiles lists the accepted files of dir, descending into subdirectories
// when the builder was configured to.
func (b *Builder) listFiles(ctx context.Context, dir string) ([]models.MFile, error) {
	if b.subdirs {
		return b.store.WalkFiles(ctx, dir, b.matcher())
	}
	return b.store.ListFiles(ctx, dir, b.matcher())
}

func (b *Builder) listChildren(ctx context.Context, n *Node) ([]*Node, error) {
	switch n.Kind {
	case KindFilePartition:
		files, err := b.listFiles(ctx, n.Root)
		if err != nil {
			return nil, err
		}
		kids := make([]*Node, 0, len(files))
		owners := make(map[string]string, len(files))
		for _, f := range files {
			kid := NewFileCollection(f.Path)
			if kid.IndexPath() == n.IndexPath() {
				return nil, fmt.Errorf("collection: file %s collides with partition index %s: %w",
					f.Path, n.IndexPath(), apperr.ErrIndexCollision)
			}
			// Files sharing a stem would share one child index.
			if prev, ok := owners[kid.IndexPath()]; ok {
				return nil, apperr.AtNode(kid.IndexPath(), fmt.Errorf("collection: files %s and %s: %w",
					prev, f.Path, apperr.ErrIndexCollision))
			}
			owners[kid.IndexPath()] = f.Path
			kids = append(kids, kid)
		}
		return kids, nil

	case KindDirectoryPartition:
		dirs, err := b.store.ListDirs(ctx, n.Root)
		if err != nil {
			return nil, err
		}
		kids := make([]*Node, 0, len(dirs))
		for _, d := range dirs {
			nested, err := b.hasNestedData(ctx, d)
			if err != nil {
				return nil, err
			}
			if nested {
				kids = append(kids, NewDirectoryPartition(d))
			} else {
				kids = append(kids, NewCollection(d))
			}
		}
		return kids, nil
	}
	return nil, fmt.Errorf("collection: %s has no children", n.Kind)
}

// hasNestedData reports whether dir has a subdirectory holding matching files.
func (b *Builder) hasNestedData(ctx context.Context, dir string) (bool, error) {
	subs, err := b.store.ListDirs(ctx, dir)
	if err != nil {
		return false, err
	}
	for _, s := range subs {
		ok, err := b.store.ContainsMatch(ctx, s, b.matcher())
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// childIndexes observes each child's index as it is now on disk, after the
// children have been resolved.
func (b *Builder) childIndexes(kids []*Node) ([]models.MFile, error) {
	out := make([]models.MFile, 0, len(kids))
	for _, kid := range kids {
		m, err := b.store.Stat(kid.IndexPath())
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return nil, apperr.AtNode(kid.IndexPath(), apperr.ErrNoIndex)
			}
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func childPaths(kids []*Node) []string {
	out := make([]string, len(kids))
	for i, kid := range kids {
		out[i] = kid.IndexPath()
	}
	return out
}

// stale compares the existing index with the catalog a rebuild would write.
func (b *Builder) stale(n *Node, want indexfile.Catalog) (bool, error) {
	idx, err := n.LoadIndex()
	if err != nil {
		return false, err
	}
	if idx.Kind != n.indexKind() {
		b.logger.Info("collection: index kind changed",
			slog.String("index", n.IndexPath()),
			slog.String("recorded", idx.Kind.String()))
		return true, nil
	}
	added, removed, modified := models.Diff(idx.Members, want.Members)
	if len(added)+len(removed)+len(modified) > 0 {
		b.logger.Debug("collection: index stale",
			slog.String("index", n.IndexPath()),
			slog.Int("added", len(added)),
			slog.Int("removed", len(removed)),
			slog.Int("modified", len(modified)))
		return true, nil
	}
	if idx.TopDir != want.TopDir || !slices.Equal(idx.Children, want.Children) {
		return true, nil
	}
	return false, nil
}

// rebuild writes a fresh index for n. The members are observed again right
// before the atomic replace; any difference aborts the write.
func (b *Builder) rebuild(ctx context.Context, n *Node, res Result, cat indexfile.Catalog, rescan func() ([]models.MFile, error)) (Result, error) {
	res.Decision = Rebuild
	data, err := indexfile.Marshal(n.indexKind(), cat)
	if err != nil {
		return b.fail(n, res, Rebuild, err)
	}
	if err := ctx.Err(); err != nil {
		return b.fail(n, res, Rebuild, apperr.ErrCancelled)
	}
	again, err := rescan()
	if err != nil {
		return b.fail(n, res, Rebuild, err)
	}
	if !models.Equal(cat.Members, again) {
		return b.fail(n, res, Rebuild, apperr.ErrStaleFilesystemRace)
	}
	if err := b.store.WriteAtomic(n.IndexPath(), data); err != nil {
		return b.fail(n, res, Rebuild, err)
	}
	n.Index = &indexfile.IndexFile{
		Header: indexfile.Header{
			Kind:    n.indexKind(),
			Version: indexfile.CurrentVersion,
			Length:  int64(len(data) - indexfile.HeaderLen),
		},
		Catalog: cat,
	}

	sum := checksum.Sum(data)
	b.logger.Info("collection: index rebuilt",
		slog.String("index", n.IndexPath()),
		slog.String("kind", n.Kind.String()),
		slog.Int("members", len(cat.Members)))
	res.Rebuilt = true
	res.Stats.Rebuilt++
	b.emit(Event{IndexPath: n.IndexPath(), Name: n.Name, Kind: n.Kind, Decision: Rebuild, Rebuilt: true, Members: len(cat.Members), Checksum: sum})
	return res, nil
}

func (b *Builder) keep(n *Node, res Result, members int) (Result, error) {
	res.Decision = Keep
	res.Stats.Kept++
	b.logger.Debug("collection: index kept", slog.String("index", n.IndexPath()))
	b.emit(Event{IndexPath: n.IndexPath(), Name: n.Name, Kind: n.Kind, Decision: Keep, Members: members})
	return res, nil
}

func (b *Builder) fail(n *Node, res Result, d Decision, err error) (Result, error) {
	err = apperr.AtNode(n.IndexPath(), fmt.Errorf("collection: %s: %w", d, err))
	res.Decision = d
	res.Stats.Failed++
	b.logger.Warn("collection: update failed",
		slog.String("index", n.IndexPath()),
		slog.String("error", err.Error()))
	b.emit(Event{IndexPath: n.IndexPath(), Name: n.Name, Kind: n.Kind, Decision: d, Err: err})
	return res, err
}

func (b *Builder) emit(ev Event) {
	if b.observer != nil {
		b.observer(ev)
	}
}
