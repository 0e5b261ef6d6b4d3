package semcache

import "context"

// Embedder is the external collaborator that
// deliberately out of scope for the core: the cache consumes
// already-computed vectors and only calls this interface when a tool
// invocation (cache_store, generate_embedding) needs one generated.
type Embedder interface {
	// Generate returns the embedding for text and the model name that
	// produced it. A non-nil error (or a nil embedding) is surfaced to
	// callers as EmbeddingUnavailable.
	Generate(ctx context.Context, text string) (embedding []float32, model string, err error)

	// Dimension returns the fixed length of vectors this embedder
	// produces.
	Dimension() int
}
