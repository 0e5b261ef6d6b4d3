package vectorindex

import (
	"path/filepath"
	"testing"
)

func TestGraphIndex_AddAndSearch(t *testing.T) {
	cfg := DefaultConfig(4)
	cfg.Backend = Graph
	idx, err := newGraphIndex(cfg)
	if err != nil {
		t.Fatalf("newGraphIndex() error = %v", err)
	}

	vectors := map[uint64][]float32{
		1: {1, 0, 0, 0},
		2: {0, 1, 0, 0},
		3: {0.95, 0.05, 0, 0},
	}
	for id, v := range vectors {
		q, scale := mustQuantize(t, v)
		if _, err := idx.AddItem(q, scale, id); err != nil {
			t.Fatalf("AddItem(%d) error = %v", id, err)
		}
	}

	if got := idx.Count(); got != 3 {
		t.Fatalf("Count() = %d, want 3", got)
	}

	q, scale := mustQuantize(t, []float32{1, 0, 0, 0})
	results, err := idx.Search(q, scale, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search() returned no candidates")
	}
	if results[0].ID != 1 && results[0].ID != 3 {
		t.Errorf("Search() nearest id = %d, want 1 or 3", results[0].ID)
	}
}

func TestGraphIndex_DeleteRemovesFromCount(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Backend = Graph
	idx, err := newGraphIndex(cfg)
	if err != nil {
		t.Fatalf("newGraphIndex() error = %v", err)
	}

	q, scale := mustQuantize(t, []float32{1, 0})
	idx.AddItem(q, scale, 1)
	if err := idx.Delete(1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := idx.Count(); got != 0 {
		t.Fatalf("Count() after delete = %d, want 0", got)
	}
}

func TestGraphIndex_UnsupportedMetricIsBackendUnavailable(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.Backend = Graph
	cfg.Metric = "manhattan"

	if _, err := newGraphIndex(cfg); err == nil {
		t.Fatal("newGraphIndex() with unsupported metric: error = nil, want BackendUnavailable")
	}
}

func TestGraphIndex_SaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig(3)
	cfg.Backend = Graph
	idx, err := newGraphIndex(cfg)
	if err != nil {
		t.Fatalf("newGraphIndex() error = %v", err)
	}
	gi := idx.(*graphIndex)

	q1, s1 := mustQuantize(t, []float32{1, 2, 3})
	q2, s2 := mustQuantize(t, []float32{4, 5, 6})
	gi.AddItem(q1, s1, 10)
	gi.AddItem(q2, s2, 20)

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.snapshot")
	if err := gi.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	restored, err := newGraphIndex(cfg)
	if err != nil {
		t.Fatalf("newGraphIndex() error = %v", err)
	}
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := restored.Count(); got != 2 {
		t.Fatalf("Count() after load = %d, want 2", got)
	}
}

func TestGraphIndex_WrongDimensionIsInvalidShape(t *testing.T) {
	cfg := DefaultConfig(4)
	cfg.Backend = Graph
	idx, err := newGraphIndex(cfg)
	if err != nil {
		t.Fatalf("newGraphIndex() error = %v", err)
	}

	q, scale := mustQuantize(t, []float32{1, 2})
	if _, err := idx.AddItem(q, scale, 1); err == nil {
		t.Fatal("AddItem() with wrong dimension: error = nil, want error")
	}
}
