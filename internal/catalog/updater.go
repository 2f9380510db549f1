package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/parser"
	"github.com/starford/gridcat/internal/storage"
)

// EventCallback is called after each node visited by an update.
// kind is one of "rebuilt", "kept", "failed".
type EventCallback func(kind string, path string)

// Target is a configured collection resolved for updates.
type Target struct {
	Name     string
	Spec     *parser.Spec
	Strategy collection.Strategy
	Self     collection.Policy
	Children collection.Policy
}

// Updater runs the collection builder for targets and records every visited
// node in the ledger. Updates of the same target are serialised.
type Updater struct {
	ledger  Ledger
	logger  *slog.Logger
	workers int
	cb      EventCallback

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewUpdater creates an Updater. cb may be nil.
func NewUpdater(ledger Ledger, logger *slog.Logger, workers int, cb EventCallback) *Updater {
	return &Updater{
		ledger:  ledger,
		logger:  logger,
		workers: workers,
		cb:      cb,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (u *Updater) lock(name string) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[name]
	if !ok {
		l = &sync.Mutex{}
		u.locks[name] = l
	}
	return l
}

// Update brings target t up to date under the given policies.
func (u *Updater) Update(ctx context.Context, t Target, self, children collection.Policy) (collection.Result, error) {
	l := u.lock(t.Name)
	l.Lock()
	defer l.Unlock()

	started := time.Now()
	res, err := u.update(ctx, t, self, children)

	run := RunRow{
		Collection: t.Name,
		SelfPolicy: string(self),
		Children:   string(children),
		Rebuilt:    res.Rebuilt,
		Nodes:      res.Stats.Nodes,
		Scanned:    res.Stats.Scanned,
		Rebuilds:   res.Stats.Rebuilt,
		Kept:       res.Stats.Kept,
		Failed:     res.Stats.Failed,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		run.Error = err.Error()
	}
	if _, recErr := u.ledger.RecordRun(run); recErr != nil {
		u.logger.Warn("catalog: record run failed",
			slog.String("collection", t.Name),
			slog.String("error", recErr.Error()))
	}
	return res, err
}

func (u *Updater) update(ctx context.Context, t Target, self, children collection.Policy) (collection.Result, error) {
	store, err := storage.NewFS(t.Spec.RootDir)
	if err != nil {
		return collection.Result{}, fmt.Errorf("catalog: %s: %w", t.Name, err)
	}
	node, err := collection.NewNode(store.Root(), t.Strategy)
	if err != nil {
		return collection.Result{}, fmt.Errorf("catalog: %s: %w", t.Name, err)
	}
	b := collection.NewBuilder(store,
		collection.WithMatcher(t.Spec.Match),
		collection.WithWorkers(u.workers),
		collection.WithSubdirs(t.Spec.WantSubdirs),
		collection.WithLogger(u.logger),
		collection.WithObserver(func(ev collection.Event) { u.observe(t.Name, ev) }),
	)
	return b.Update(ctx, node, self, children)
}

func (u *Updater) observe(name string, ev collection.Event) {
	row := NodeRow{
		IndexPath:  ev.IndexPath,
		Collection: name,
		Name:       ev.Name,
		Kind:       ev.Kind.String(),
		Decision:   ev.Decision.String(),
		Rebuilt:    ev.Rebuilt,
		Members:    ev.Members,
		Checksum:   ev.Checksum,
	}
	kind := "kept"
	switch {
	case ev.Err != nil:
		row.Error = ev.Err.Error()
		kind = "failed"
	case ev.Rebuilt:
		kind = "rebuilt"
	}
	if err := u.ledger.UpsertNode(row); err != nil {
		u.logger.Warn("catalog: record node failed",
			slog.String("index", ev.IndexPath),
			slog.String("error", err.Error()))
	}
	if u.cb != nil {
		u.cb(kind, ev.IndexPath)
	}
}
