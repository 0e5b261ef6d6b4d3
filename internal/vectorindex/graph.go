package vectorindex

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	"github.com/blueberrycongee/semcache/internal/quantize"
	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// graphIndex wraps coder/hnsw, a pure-Go hierarchical-graph ANN library,
// as the "graph" backend. Using a pure-Go
// library rather than cgo-bound native bindings is a deliberate deviation
// from the spec's "native-library-backed" framing — see DESIGN.md — that
// keeps the HNSW algorithm without requiring a native toolchain.
// Config.M and Config.Ef are applied to the graph (see newHNSWGraph);
// Config.EfConstruction is not passed to it.
//
// vectors is the authoritative record used for Save/Load and Count; the
// hnsw graph itself is the search structure built on top of it. This
// mirrors the tree-forest backend's save format rather than depending on
// a binary graph dump, so restore always rebuilds the graph structure
// from the same insertions that produced it originally.
type graphIndex struct {
	mu sync.Mutex

	cfg     Config
	g       *hnsw.Graph[uint64]
	vectors map[uint64][]float32
}

func hnswDistanceFunc(metric Metric) (hnsw.DistanceFunc, error) {
	switch metric {
	case Cosine, "":
		return hnsw.CosineDistance, nil
	case L2:
		return hnsw.EuclideanDistance, nil
	case IP:
		return func(a, b []float32) float32 {
			return float32(-dot(a, b))
		}, nil
	default:
		return nil, fmt.Errorf("no distance function registered for metric %q", metric)
	}
}

func newHNSWGraph(cfg Config, distFn hnsw.DistanceFunc) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = cfg.M
	g.Ml = 1 / float64(cfg.M)
	g.EfSearch = cfg.Ef
	g.Distance = distFn
	return g
}

// newGraphIndex constructs the HNSW backend. It returns BackendUnavailable
// if the requested metric has no registered distance function — the
// graph backend's distance-function table is fixed at build time, unlike
// tree-forest's generic distance() dispatch, so an unsupported metric here
// genuinely means "this backend cannot serve this request."
func newGraphIndex(cfg Config) (Index, error) {
	distFn, err := hnswDistanceFunc(cfg.Metric)
	if err != nil {
		return nil, cerrors.NewBackendUnavailable(err.Error())
	}

	return &graphIndex{
		cfg:     cfg,
		g:       newHNSWGraph(cfg, distFn),
		vectors: make(map[uint64][]float32),
	}, nil
}

func (gi *graphIndex) AddItem(q []int8, scale float32, id uint64) (uint64, error) {
	if len(q) != gi.cfg.Dim {
		return 0, cerrors.NewInvalidShape(
			fmt.Sprintf("quantized vector has wrong dimension: got %d, want %d", len(q), gi.cfg.Dim))
	}
	vec := quantize.Dequantize(q, scale)

	gi.mu.Lock()
	defer gi.mu.Unlock()

	gi.g.Add(hnsw.MakeNode(id, vec))
	gi.vectors[id] = vec
	return id, nil
}

func (gi *graphIndex) Delete(id uint64) error {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.g.Delete(id)
	delete(gi.vectors, id)
	return nil
}

func (gi *graphIndex) Count() int {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	return len(gi.vectors)
}

func (gi *graphIndex) Search(q []int8, scale float32, k int) ([]Candidate, error) {
	if len(q) != gi.cfg.Dim {
		return nil, cerrors.NewInvalidShape(
			fmt.Sprintf("quantized query vector has wrong dimension: got %d, want %d", len(q), gi.cfg.Dim))
	}
	query := quantize.Dequantize(q, scale)

	gi.mu.Lock()
	nodes := gi.g.Search(query, k)
	dist := gi.g.Distance
	gi.mu.Unlock()

	out := make([]Candidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Candidate{ID: n.Key, Distance: float64(dist(query, n.Value))})
	}

	// hnsw.Graph.Search already orders by ascending distance; re-sort
	// defensively with an id tie-break.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// Save writes the live vector set to path in the same
// "id dim v0 v1 ... v(dim-1)" per-line text format the tree-forest
// backend uses, so both backends' snapshot files are interchangeable at
// the storage layer even though their in-memory search structures differ.
func (gi *graphIndex) Save(path string) error {
	gi.mu.Lock()
	defer gi.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for id, vec := range gi.vectors {
		fmt.Fprintf(w, "%d %d", id, len(vec))
		for _, v := range vec {
			fmt.Fprintf(w, " %s", strconv.FormatFloat(float64(v), 'g', -1, 32))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

// Load rebuilds the graph from the vector set written by Save, replaying
// every insertion through the real HNSW construction path.
func (gi *graphIndex) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	distFn, err := hnswDistanceFunc(gi.cfg.Metric)
	if err != nil {
		return cerrors.NewBackendUnavailable(err.Error())
	}
	g := newHNSWGraph(gi.cfg, distFn)
	vectors := make(map[uint64][]float32)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		dim, err := strconv.Atoi(fields[1])
		if err != nil || len(fields) != 2+dim {
			continue
		}
		vec := make([]float32, dim)
		for i := 0; i < dim; i++ {
			v, err := strconv.ParseFloat(fields[2+i], 32)
			if err != nil {
				continue
			}
			vec[i] = float32(v)
		}
		g.Add(hnsw.MakeNode(id, vec))
		vectors[id] = vec
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	gi.mu.Lock()
	gi.g = g
	gi.vectors = vectors
	gi.mu.Unlock()

	return nil
}

func (gi *graphIndex) Destroy() error {
	gi.mu.Lock()
	defer gi.mu.Unlock()
	gi.g = nil
	gi.vectors = nil
	return nil
}
