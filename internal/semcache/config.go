// Package semcache implements the Cache Controller (component F): it
// orchestrates the Normalizer, Quantizer, Compressor, Vector Index, and
// Metadata Store into the two externally visible operations lookup and
// insert, plus statistics, snapshotting, and savings tracking.
package semcache

import (
	"time"

	"github.com/blueberrycongee/semcache/internal/vectorindex"
	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// Config holds the construction options recognized by the Cache
// Controller.
type Config struct {
	Dim                  int                  `yaml:"dim"`
	MaxElements          int                  `yaml:"max_elements"`
	SimilarityThreshold  float64              `yaml:"similarity_threshold"`
	MemoryLimit          string               `yaml:"memory_limit"`
	DefaultTTL           time.Duration        `yaml:"default_ttl"`
	Backend              vectorindex.Backend  `yaml:"backend"`
	Metric               vectorindex.Metric   `yaml:"metric"`
	EmbedderModel        string               `yaml:"embedder_model"`

	// EnableReranking turns on an optional lexical-similarity second pass
	// over approximate-hit candidates gathered in a Lookup widen round
	// (see rerank.go); RerankingThreshold is the minimum lexical score a
	// reranked pick must clear before it is trusted over the candidate
	// with the best vector score.
	EnableReranking    bool    `yaml:"enable_reranking"`
	RerankingThreshold float64 `yaml:"reranking_threshold"`
}

// DefaultConfig returns the Controller's default configuration.
func DefaultConfig() Config {
	return Config{
		Dim:                 1536,
		MaxElements:         100_000,
		SimilarityThreshold: 0.85,
		MemoryLimit:         "1gb",
		DefaultTTL:          time.Hour,
		Backend:             vectorindex.TreeForest,
		Metric:              vectorindex.Cosine,
		EmbedderModel:       "bundled-sha256",
		RerankingThreshold:  0.8,
	}
}

// Validate checks the configuration, filling in defaults for zero-valued
// optional fields.
func (c *Config) Validate() error {
	if c.Dim <= 0 {
		return cerrors.NewInvalidInput("dim must be positive")
	}
	if c.MaxElements <= 0 {
		c.MaxElements = 100_000
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return cerrors.NewInvalidInput("similarity_threshold must be in (0, 1]")
	}
	if c.DefaultTTL < 0 {
		return cerrors.NewInvalidInput("default_ttl must not be negative")
	}
	if c.Backend == "" {
		c.Backend = vectorindex.TreeForest
	}
	if c.Metric == "" {
		c.Metric = vectorindex.Cosine
	}
	if c.MemoryLimit == "" {
		c.MemoryLimit = "1gb"
	}
	if c.EnableReranking && (c.RerankingThreshold <= 0 || c.RerankingThreshold > 1) {
		return cerrors.NewInvalidInput("reranking_threshold must be in (0, 1] when reranking is enabled")
	}
	return nil
}

// indexConfig derives the Vector Index construction config from the
// controller config.
func (c Config) indexConfig() vectorindex.Config {
	cfg := vectorindex.DefaultConfig(c.Dim)
	cfg.Capacity = c.MaxElements
	cfg.Metric = c.Metric
	cfg.Backend = c.Backend
	return cfg
}
