package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/indexfile"
	"github.com/starford/gridcat/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatcher_NewFileRebuildsIndex(t *testing.T) {
	root, _ := testutil.Archive(t)
	testutil.WriteFile(t, filepath.Join(root, "f1.grib2"), 1000)
	db := testDB(t)
	u := NewUpdater(db, quietLogger(), 1, nil)
	tg := target(t, root, collection.StrategyNone)

	if _, err := u.Update(context.Background(), tg, collection.Always, collection.Always); err != nil {
		t.Fatal(err)
	}
	idx := filepath.Join(root, filepath.Base(root)+".gcx")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, u, []Target{tg}, 100*time.Millisecond, quietLogger())

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(root, "f2.grib2"), []byte("GRIB"), 0o644); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		files, err := indexfile.ReadMFiles(idx)
		return err == nil && len(files) == 2
	}, "new file not picked up by watcher")
}

func TestWatcher_IgnoresOwnWrites(t *testing.T) {
	root, _ := testutil.Archive(t)
	testutil.WriteFile(t, filepath.Join(root, "f1.grib2"), 1000)
	db := testDB(t)
	u := NewUpdater(db, quietLogger(), 1, nil)
	tg := target(t, root, collection.StrategyNone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, u, []Target{tg}, 50*time.Millisecond, quietLogger())
	time.Sleep(100 * time.Millisecond)

	// Writing an index artifact must not schedule an update.
	if err := os.WriteFile(filepath.Join(root, "stray.gcx"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)

	runs, err := db.ListRuns("gfs", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %d, want 0", len(runs))
	}
}

func TestWatcher_StopsOnCancel(t *testing.T) {
	root, _ := testutil.Archive(t)
	u := NewUpdater(testDB(t), quietLogger(), 1, nil)
	targets := []Target{target(t, root, collection.StrategyNone)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, u, targets, 0, quietLogger()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
