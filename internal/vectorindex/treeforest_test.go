package vectorindex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blueberrycongee/semcache/internal/quantize"
)

func mustQuantize(t *testing.T, v []float32) ([]int8, float32) {
	t.Helper()
	q, scale := quantize.Quantize(v)
	return q, scale
}

func TestTreeForest_AddAndSearch(t *testing.T) {
	cfg := DefaultConfig(4)
	cfg.Forests = 3
	cfg.LeafSize = 2
	idx := newTreeForest(cfg)

	vectors := map[uint64][]float32{
		1: {1, 0, 0, 0},
		2: {0, 1, 0, 0},
		3: {0.9, 0.1, 0, 0},
		4: {0, 0, 1, 0},
	}
	for id, v := range vectors {
		q, scale := mustQuantize(t, v)
		if _, err := idx.AddItem(q, scale, id); err != nil {
			t.Fatalf("AddItem(%d) error = %v", id, err)
		}
	}

	if got := idx.Count(); got != 4 {
		t.Fatalf("Count() = %d, want 4", got)
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

func TestTreeForest_DeleteRemovesFromResults(t *testing.T) {
	cfg := DefaultConfig(2)
	idx := newTreeForest(cfg)

	q1, s1 := mustQuantize(t, []float32{1, 0})
	q2, s2 := mustQuantize(t, []float32{0, 1})
	idx.AddItem(q1, s1, 1)
	idx.AddItem(q2, s2, 2)

	if err := idx.Delete(1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := idx.Count(); got != 1 {
		t.Fatalf("Count() after delete = %d, want 1", got)
	}

	results, err := idx.Search(q1, s1, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, c := range results {
		if c.ID == 1 {
			t.Errorf("Search() returned deleted id 1")
		}
	}
}

func TestTreeForest_WrongDimensionIsInvalidShape(t *testing.T) {
	cfg := DefaultConfig(4)
	idx := newTreeForest(cfg)

	q, scale := mustQuantize(t, []float32{1, 2})
	if _, err := idx.AddItem(q, scale, 1); err == nil {
		t.Fatal("AddItem() with wrong dimension: error = nil, want error")
	}
}

func TestTreeForest_SaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig(3)
	idx := newTreeForest(cfg)

	q1, s1 := mustQuantize(t, []float32{1, 2, 3})
	q2, s2 := mustQuantize(t, []float32{4, 5, 6})
	idx.AddItem(q1, s1, 10)
	idx.AddItem(q2, s2, 20)

	dir := t.TempDir()
	path := filepath.Join(dir, "tree.snapshot")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	restored := newTreeForest(cfg)
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := restored.Count(); got != 2 {
		t.Fatalf("Count() after load = %d, want 2", got)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
}

func TestTreeForest_EmptySearchFallsBackToBruteForce(t *testing.T) {
	cfg := DefaultConfig(2)
	idx := newTreeForest(cfg)
	q, scale := mustQuantize(t, []float32{1, 1})

	results, err := idx.Search(q, scale, 5)
	if err != nil {
		t.Fatalf("Search() on empty index error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() on empty index = %v, want empty", results)
	}
}
