// Package config loads the process-level configuration for the cache
// core from YAML with environment-variable overrides, and hot-reloads it
// via Manager.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/semcache/internal/semcache"
	"github.com/blueberrycongee/semcache/internal/vectorindex"
)

// Config is the YAML-serializable process configuration; it carries the
// Cache Controller's construction options plus the
// snapshot directory the process wrapper uses.
type Config struct {
	Dim                 int           `yaml:"dim"`
	MaxElements         int           `yaml:"max_elements"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	MemoryLimit         string        `yaml:"memory_limit"`
	DefaultTTL          time.Duration `yaml:"default_ttl"`
	Backend             string        `yaml:"backend"`
	Metric              string        `yaml:"metric"`
	EmbedderModel       string        `yaml:"embedder_model"`
	EnableReranking     bool          `yaml:"enable_reranking"`
	RerankingThreshold  float64       `yaml:"reranking_threshold"`

	SnapshotDir string `yaml:"snapshot_dir"`
}

// DefaultConfig returns the process's default configuration.
func DefaultConfig() *Config {
	d := semcache.DefaultConfig()
	return &Config{
		Dim:                 d.Dim,
		MaxElements:         d.MaxElements,
		SimilarityThreshold: d.SimilarityThreshold,
		MemoryLimit:         d.MemoryLimit,
		DefaultTTL:          d.DefaultTTL,
		Backend:             string(d.Backend),
		Metric:              string(d.Metric),
		EmbedderModel:       d.EmbedderModel,
		EnableReranking:     d.EnableReranking,
		RerankingThreshold:  d.RerankingThreshold,
		SnapshotDir:         "./data",
	}
}

// LoadFromFile reads and parses a YAML config file over the defaults
// (fields the file leaves out keep their default value; a field the file
// sets explicitly, even to zero, takes that value) and then applies
// environment-variable overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies supported environment variable overrides.
// These are recognized by the process wrapper, not the cache core
// itself.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VECTOR_INDEX_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("CACHE_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SimilarityThreshold = f
		}
	}
	if v := os.Getenv("CACHE_MAX_ELEMENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxElements = n
		}
	}
	if v := os.Getenv("CACHE_DEFAULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DefaultTTL = d
		}
	}
}

// ToSemcacheConfig converts the process configuration to the Cache
// Controller's construction type.
func (c *Config) ToSemcacheConfig() semcache.Config {
	return semcache.Config{
		Dim:                 c.Dim,
		MaxElements:         c.MaxElements,
		SimilarityThreshold: c.SimilarityThreshold,
		MemoryLimit:         c.MemoryLimit,
		DefaultTTL:          c.DefaultTTL,
		Backend:             vectorindex.Backend(c.Backend),
		Metric:              vectorindex.Metric(c.Metric),
		EmbedderModel:       c.EmbedderModel,
		EnableReranking:     c.EnableReranking,
		RerankingThreshold:  c.RerankingThreshold,
	}
}
