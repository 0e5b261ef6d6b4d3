package semcache

import (
	"fmt"

	"github.com/blueberrycongee/semcache/internal/embedstub"
)

// NewFromConfig validates cfg, constructs the Cache Controller, and
// resolves the configured embedder. Only the bundled stub embedder
// ("bundled-sha256", the zero value) is produced in-process; for any other
// EmbedderModel name the returned Embedder is nil, since real embedding
// providers are an out-of-scope external collaborator.
func NewFromConfig(cfg Config) (*Controller, Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	controller, err := New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create cache controller: %w", err)
	}

	var embedder Embedder
	switch cfg.EmbedderModel {
	case "", "bundled-sha256":
		embedder = embedstub.New(cfg.Dim)
	default:
		// Leave embedder nil for any named model this factory does not
		// know how to construct itself; cmd/semcached hands it to the
		// dispatcher unchanged.
	}

	return controller, embedder, nil
}
