// Package vectorindex implements the approximate-nearest-neighbour (ANN)
// vector index: a single Index contract with two selectable backends,
// tree-forest (pure Go, default) and graph (HNSW-style).
package vectorindex

import (
	"fmt"

	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// Metric selects the distance function used for search and ordering.
type Metric string

const (
	Cosine Metric = "cosine"
	L2     Metric = "l2"
	IP     Metric = "ip"
)

func (m Metric) valid() bool {
	switch m {
	case Cosine, L2, IP:
		return true
	default:
		return false
	}
}

// Backend selects which ANN implementation an Index uses.
type Backend string

const (
	// TreeForest is the pure-runtime, zero-native-deps default backend.
	TreeForest Backend = "tree-forest"
	// Graph is the HNSW-style backend.
	Graph Backend = "graph"
)

// Config configures an Index at construction time.
type Config struct {
	Dim      int
	Capacity int
	Metric   Metric
	Backend  Backend

	// Tree-forest hyperparameters (recommended defaults F=10, L=100).
	Forests     int
	LeafSize    int

	// Graph (HNSW) hyperparameters.
	M              int
	EfConstruction int
	Ef             int
}

// DefaultConfig returns a Config with spec-recommended defaults for the
// given dimension.
func DefaultConfig(dim int) Config {
	return Config{
		Dim:            dim,
		Capacity:       100_000,
		Metric:         Cosine,
		Backend:        TreeForest,
		Forests:        10,
		LeafSize:       100,
		M:              16,
		EfConstruction: 200,
		Ef:             100,
	}
}

// Candidate is a single ANN search result: smaller Distance is better.
// Ties are broken by smaller ID.
type Candidate struct {
	ID       uint64
	Distance float64
}

// Index is the single ANN contract backing the Vector Index component.
// Both implementations guard their own state with a mutex, so an Index
// is safe for concurrent use.
type Index interface {
	// AddItem inserts quantized vector q (with its scale) under id and
	// returns id unchanged; re-adding an existing id replaces its vector.
	// No id is generated: 0 is stored as id 0 like any other value (the
	// Cache Controller always supplies a fingerprint-derived id).
	AddItem(q []int8, scale float32, id uint64) (assignedID uint64, err error)

	// Search returns up to k candidates ordered by ascending distance.
	Search(q []int8, scale float32, k int) ([]Candidate, error)

	// Count returns the number of live vectors.
	Count() int

	// Delete removes a vector, if present. Back ends that cannot delete
	// may no-op; stale vectors are harmless because
	// the Metadata Store id lookup will miss.
	Delete(id uint64) error

	// Save persists the index to an opaque file at path.
	Save(path string) error
	// Load restores the index from an opaque file at path.
	Load(path string) error

	// Destroy releases backend resources.
	Destroy() error
}

// New constructs an Index for the requested backend. If Backend is Graph
// and the backend cannot be initialized (e.g. an unsupported metric, for
// which the graph backend has no distance-function table entry),
// construction fails with BackendUnavailable.
func New(cfg Config) (Index, error) {
	if cfg.Dim <= 0 {
		return nil, cerrors.NewInvalidInput("dim must be positive")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100_000
	}
	if cfg.Forests <= 0 {
		cfg.Forests = 10
	}
	if cfg.LeafSize <= 0 {
		cfg.LeafSize = 100
	}
	if cfg.M <= 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = 200
	}
	if cfg.Ef <= 0 {
		cfg.Ef = 100
	}

	switch cfg.Backend {
	case "", TreeForest:
		if !cfg.Metric.valid() {
			return nil, cerrors.NewInvalidInput(fmt.Sprintf("unsupported metric %q", cfg.Metric))
		}
		return newTreeForest(cfg), nil

	case Graph:
		return newGraphIndex(cfg)

	default:
		return nil, cerrors.NewBackendUnavailable(fmt.Sprintf("unknown vector index backend %q", cfg.Backend))
	}
}
