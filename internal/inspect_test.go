package internal

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/starford/gridcat/internal/apperr"
	"github.com/starford/gridcat/internal/collection"
	"github.com/starford/gridcat/internal/testutil"
)

func testConfig(t *testing.T, root string) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Collections = []CollectionConfig{{
		Name:      "gfs",
		Spec:      root + "/.*\\.grib2$",
		Partition: collection.StrategyDirectory,
	}}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestRunUpdateThenInspect(t *testing.T) {
	root, _ := testutil.Archive(t)
	testutil.WriteFile(t, filepath.Join(root, "a", "f1.grib2"), 1000)
	testutil.WriteFile(t, filepath.Join(root, "b", "f2.grib2"), 1000)
	testutil.WriteFile(t, filepath.Join(root, "b", "f3.grib2"), 1000)
	cfg := testConfig(t, root)

	results, err := RunUpdate(context.Background(), nil, "", "", WithConfig(cfg), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("RunUpdate: %v", err)
	}
	if len(results) != 1 || results[0].Result.Stats.Rebuilt != 3 {
		t.Fatalf("results = %+v", results)
	}

	top := filepath.Join(root, filepath.Base(root)+".gcx")
	nodes, err := Inspect(top, true)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(nodes))
	}
	last := nodes[len(nodes)-1]
	if last.IndexPath != top || last.Kind != "directory_partition" || len(last.Children) != 2 {
		t.Errorf("top = %+v", last)
	}
	if last.Checksum == "" {
		t.Error("top checksum missing")
	}
	if nodes[1].Name != "b" || len(nodes[1].Members) != 2 {
		t.Errorf("b = %+v", nodes[1])
	}
}

func TestRunUpdate_UnknownCollection(t *testing.T) {
	root, _ := testutil.Archive(t)
	cfg := testConfig(t, root)
	if _, err := RunUpdate(context.Background(), []string{"nam"}, "", "", WithConfig(cfg), WithLogOutput(io.Discard)); err == nil {
		t.Error("expected error for unknown collection")
	}
}

func TestRunUpdate_RequiresConfig(t *testing.T) {
	if _, err := RunUpdate(context.Background(), nil, "", "", WithLogOutput(io.Discard)); err == nil {
		t.Error("expected error without config")
	}
}

func TestInspect_Missing(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "none.gcx"), false)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
