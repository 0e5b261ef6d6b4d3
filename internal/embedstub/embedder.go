// Package embedstub provides the bundled trivial embedder
// calls out as the only built-in stand-in for a real embedding model:
// deterministic, dependency-free, good enough to exercise the cache core
// end-to-end without a network call.
package embedstub

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

const defaultDimension = 384

// Embedder derives a deterministic, L2-normalized embedding from the
// SHA-256 digest of the input text, expanded to the configured dimension
// by re-hashing with an incrementing counter. Same text always yields
// the same vector; different text yields (with overwhelming likelihood)
// a different one. It carries no semantic meaning beyond that — real
// embedding models are the out-of-scope external collaborator this
// stands in for.
type Embedder struct {
	dim   int
	model string
}

// New constructs a stub embedder of the given dimension. dim <= 0 uses
// the default of 384 (the dimension used when the bundled
// small embedder is selected).
func New(dim int) *Embedder {
	if dim <= 0 {
		dim = defaultDimension
	}
	return &Embedder{dim: dim, model: "bundled-sha256"}
}

// Dimension returns the fixed vector length this embedder produces.
func (e *Embedder) Dimension() int {
	return e.dim
}

// Generate implements semcache.Embedder.
func (e *Embedder) Generate(ctx context.Context, text string) ([]float32, string, error) {
	if text == "" {
		return nil, "", cerrors.NewEmbeddingUnavailable("cannot embed empty text")
	}

	vec := make([]float32, e.dim)
	seed := sha256.Sum256([]byte(text))

	var block [32]byte
	counter := uint32(0)
	for i := 0; i < e.dim; i++ {
		if i%8 == 0 {
			var counterBytes [4]byte
			binary.BigEndian.PutUint32(counterBytes[:], counter)
			h := sha256.New()
			h.Write(seed[:])
			h.Write(counterBytes[:])
			copy(block[:], h.Sum(nil))
			counter++
		}
		// Four bytes per component, mapped into [-1, 1].
		offset := (i % 8) * 4
		raw := binary.BigEndian.Uint32(block[offset : offset+4])
		vec[i] = float32(raw)/float32(math.MaxUint32)*2 - 1
	}

	normalize(vec)
	return vec, e.model, nil
}

func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
