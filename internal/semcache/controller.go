package semcache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"

	"github.com/blueberrycongee/semcache/internal/compress"
	"github.com/blueberrycongee/semcache/internal/metadata"
	"github.com/blueberrycongee/semcache/internal/normalize"
	"github.com/blueberrycongee/semcache/internal/quantize"
	"github.com/blueberrycongee/semcache/internal/vectorindex"
	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// Controller is the Cache Controller (component F). It is the sole
// mutator of the Vector Index and Metadata Store and composes A-E into
// lookup/insert plus the surrounding operations.
type Controller struct {
	mu    sync.RWMutex // guards index swap-on-Clear/Restore, not per-call hot paths
	index vectorindex.Index

	metadata *metadata.Store
	cfg      Config

	hits         atomic.Int64
	misses       atomic.Int64
	totalQueries atomic.Int64
	savedTokens  atomic.Int64
	savedUsdBits atomic.Uint64
}

// New constructs a Cache Controller from cfg, validating it and building
// the Vector Index and Metadata Store.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	idx, err := vectorindex.New(cfg.indexConfig())
	if err != nil {
		return nil, err
	}

	return &Controller{
		index:    idx,
		metadata: metadata.New(cfg.MaxElements, cfg.MemoryLimit),
		cfg:      cfg,
	}, nil
}

// Hit is the result of a successful Lookup.
type Hit struct {
	Response     string
	Similarity   float64
	IsExactMatch bool
	CachedAt     int64
	Metadata     *metadata.Entry
}

// LookupOptions carries the per-call overrides lookup accepts.
type LookupOptions struct {
	MinSimilarity float64 // zero means "use the controller default"
}

func (c *Controller) getIndex() vectorindex.Index {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index
}

// Lookup runs an exact fingerprint fast path, and,
// when an embedding is supplied, an approximate path with a bounded
// widen-search loop.
func (c *Controller) Lookup(ctx context.Context, prompt string, embedding []float32, opts LookupOptions) (*Hit, error) {
	c.totalQueries.Add(1)

	normalized := normalize.Normalize(prompt)
	fingerprint := normalize.Fingerprint(normalized, true)

	if entry, ok := c.metadata.FindByPromptHash(fingerprint); ok {
		response, err := c.decompressOrPurge(entry)
		if err != nil {
			c.misses.Add(1)
			return nil, nil
		}
		c.hits.Add(1)
		return &Hit{
			Response:     response,
			Similarity:   1.0,
			IsExactMatch: true,
			CachedAt:     entry.CreatedAt,
			Metadata:     entry,
		}, nil
	}

	if len(embedding) == 0 {
		c.misses.Add(1)
		return nil, nil
	}

	threshold := opts.MinSimilarity
	if threshold <= 0 {
		threshold = c.cfg.SimilarityThreshold
	}

	q, scale, err := c.quantizeQuery(embedding)
	if err != nil {
		return nil, err
	}

	idx := c.getIndex()
	n := idx.Count()
	if n == 0 {
		c.misses.Add(1)
		return nil, nil
	}

	k := min(5, n)
	kmax := min(50, n)

	for {
		results, err := idx.Search(q, scale, k)
		if err != nil {
			return nil, err
		}

		foundStale := false
		var matches []approxMatch
		for _, candidate := range results {
			similarity := vectorindex.Similarity(candidate.Distance)
			if similarity < threshold {
				// Results are ordered by ascending distance, so
				// similarity only decreases from here.
				break
			}

			entry, ok := c.metadata.Get(strconv.FormatUint(candidate.ID, 10))
			if !ok {
				foundStale = true
				continue
			}

			response, err := c.decompressOrPurge(entry)
			if err != nil {
				foundStale = true
				continue
			}

			matches = append(matches, approxMatch{entry: entry, response: response, similarity: similarity})
			if !c.cfg.EnableReranking {
				// Without reranking the first above-threshold, live
				// candidate is the answer: results arrive in descending
				// similarity order already.
				break
			}
		}

		if len(matches) > 0 {
			best := matches[0]
			if c.cfg.EnableReranking && len(matches) > 1 {
				best = c.rerankMatches(normalized, matches)
			}

			c.hits.Add(1)
			return &Hit{
				Response:     best.response,
				Similarity:   best.similarity,
				IsExactMatch: false,
				CachedAt:     best.entry.CreatedAt,
				Metadata:     best.entry,
			}, nil
		}

		if foundStale && k < kmax {
			k = min(kmax, k+5)
			continue
		}
		break
	}

	c.misses.Add(1)
	return nil, nil
}

// approxMatch is a live, above-threshold approximate candidate gathered
// during one widen-loop round of Lookup, before any reranking decides
// which one wins.
type approxMatch struct {
	entry      *metadata.Entry
	response   string
	similarity float64
}

// rerankMatches re-scores matches by lexical similarity to prompt and
// returns whichever one rerank prefers, falling back to the top
// vector-similarity match (matches[0]) when the winner's lexical score
// doesn't clear RerankingThreshold.
func (c *Controller) rerankMatches(prompt string, matches []approxMatch) approxMatch {
	candidates := make([]rerankCandidate, len(matches))
	for i, m := range matches {
		candidates[i] = rerankCandidate{
			id:             m.entry.ID,
			normalizedText: m.entry.NormalizedPrompt,
			vectorScore:    m.similarity,
		}
	}

	picked := rerank(prompt, candidates)
	if picked == nil || picked.secondaryScore < c.cfg.RerankingThreshold {
		return matches[0]
	}
	for _, m := range matches {
		if m.entry.ID == picked.id {
			return m
		}
	}
	return matches[0]
}

// decompressOrPurge decompresses an entry's response, deleting the entry
// and reporting a CorruptedPayload error if the payload cannot be
// decoded.
func (c *Controller) decompressOrPurge(entry *metadata.Entry) (string, error) {
	response, err := compress.Decompress(entry.CompressedResponse, entry.OriginalResponseSize)
	if err != nil {
		slog.Warn("corrupted cache payload, entry purged", "prompt_hash", entry.PromptHash, "error", err)
		c.metadata.Delete(entry.ID)
		return "", err
	}
	return string(response), nil
}

func (c *Controller) quantizeQuery(embedding []float32) ([]int8, float32, error) {
	if err := quantize.CheckDimension(embedding, c.cfg.Dim); err != nil {
		return nil, 0, err
	}
	q, scale := quantize.Quantize(embedding)
	return q, scale, nil
}

// InsertOptions carries the per-call overrides insert accepts.
type InsertOptions struct {
	TTL time.Duration // zero means "use the controller default"
}

// Insert stores a prompt/response pair keyed by its embedding and fingerprint.
func (c *Controller) Insert(ctx context.Context, prompt, response string, embedding []float32, opts InsertOptions) error {
	q, scale, err := c.quantizeQuery(embedding)
	if err != nil {
		return err
	}

	normalized := normalize.Normalize(prompt)
	fingerprint := normalize.Fingerprint(normalized, true)
	vectorID, err := strconv.ParseUint(fingerprint, 16, 64)
	if err != nil {
		return cerrors.NewInvalidInput("prompt fingerprint could not be parsed as a vector id")
	}

	compressedPrompt := compress.Compress([]byte(normalized))
	compressedResponse := compress.Compress([]byte(response))

	idx := c.getIndex()
	assignedID, err := idx.AddItem(q, scale, vectorID)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	entry := &metadata.Entry{
		VectorID:               assignedID,
		PromptHash:             fingerprint,
		NormalizedPrompt:       normalized,
		CompressedPrompt:       compressedPrompt,
		CompressedResponse:     compressedResponse,
		OriginalPromptSize:     len(normalized),
		OriginalResponseSize:   len(response),
		CompressedPromptSize:   len(compressedPrompt),
		CompressedResponseSize: len(compressedResponse),
		CreatedAt:              now,
		LastAccessed:           now,
		AccessCount:            0,
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}

	id := strconv.FormatUint(assignedID, 10)
	c.metadata.Set(id, entry, ttl)
	return nil
}

// Delete removes prompt's metadata entry, if present. Its vector index
// entry, if any survives, is orphaned and ignored on future hits.
func (c *Controller) Delete(prompt string) (bool, error) {
	fingerprint := normalize.Fingerprint(prompt, false)
	entry, ok := c.metadata.FindByPromptHash(fingerprint)
	if !ok {
		return false, nil
	}
	return c.metadata.Delete(entry.ID), nil
}

// Clear rebuilds the Vector Index from scratch
// with the same construction parameters, clear the Metadata Store, and
// reset counters.
func (c *Controller) Clear() error {
	newIndex, err := vectorindex.New(c.cfg.indexConfig())
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.index
	c.index = newIndex
	c.mu.Unlock()

	old.Destroy()
	c.metadata.Clear()

	c.hits.Store(0)
	c.misses.Store(0)
	c.totalQueries.Store(0)
	c.savedTokens.Store(0)
	c.savedUsdBits.Store(0)
	return nil
}

// MemoryUsage is a breakdown of estimated memory consumption.
type MemoryUsage struct {
	Vectors  int64 `json:"vectors"`
	Metadata int64 `json:"metadata"`
	Total    int64 `json:"total"`
}

// Stats is the Cache Controller's externally visible statistics object.
type Stats struct {
	TotalEntries     int         `json:"total_entries"`
	MemoryUsage      MemoryUsage `json:"memory_usage"`
	CompressionRatio float64     `json:"compression_ratio"`
	CacheHits        int64       `json:"cache_hits"`
	CacheMisses      int64       `json:"cache_misses"`
	HitRate          string      `json:"hit_rate"`
	TotalQueries     int64       `json:"total_queries"`
	SavedTokens      int64       `json:"saved_tokens"`
	SavedUsd         float64     `json:"saved_usd"`
}

// Stats reports current cache size and hit-rate counters.
func (c *Controller) Stats() Stats {
	ms := c.metadata.Stats()
	entries := c.metadata.Entries()

	var totalOriginal int64
	for _, e := range entries {
		totalOriginal += int64(e.OriginalResponseSize)
	}

	compressionRatio := 0.0
	if totalOriginal > 0 {
		compressionRatio = float64(ms.TotalCompressedSize) / float64(totalOriginal)
	}

	vectorBytes := int64(ms.TotalEntries) * int64(c.cfg.Dim)
	memoryUsage := MemoryUsage{
		Vectors:  vectorBytes,
		Metadata: ms.TotalCompressedSize,
		Total:    vectorBytes + ms.TotalCompressedSize,
	}

	hits := c.hits.Load()
	total := c.totalQueries.Load()
	hitRate := "0.0000"
	if total > 0 {
		hitRate = fmt.Sprintf("%.4f", float64(hits)/float64(total))
	}

	return Stats{
		TotalEntries:     ms.TotalEntries,
		MemoryUsage:      memoryUsage,
		CompressionRatio: compressionRatio,
		CacheHits:        hits,
		CacheMisses:      c.misses.Load(),
		HitRate:          hitRate,
		TotalQueries:     total,
		SavedTokens:      c.savedTokens.Load(),
		SavedUsd:         math.Float64frombits(c.savedUsdBits.Load()),
	}
}

// TrackSavings does additive bookkeeping so callers
// can report tokens/cost a hit avoided spending.
func (c *Controller) TrackSavings(tokens int, usd float64) {
	c.savedTokens.Add(int64(tokens))
	addFloat64(&c.savedUsdBits, usd)
}

func addFloat64(addr *atomic.Uint64, delta float64) {
	for {
		old := addr.Load()
		newVal := math.Float64bits(math.Float64frombits(old) + delta)
		if addr.CompareAndSwap(old, newVal) {
			return
		}
	}
}

type snapshotCounters struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	TotalQueries int64   `json:"total_queries"`
	SavedTokens  int64   `json:"saved_tokens"`
	SavedUsd     float64 `json:"saved_usd"`
}

type snapshotFile struct {
	Counters snapshotCounters  `json:"counters"`
	Entries  []*metadata.Entry `json:"entries"`
	Config   Config            `json:"config"`
}

// Snapshot writes index.bin
// (back-end-opaque, via Vector Index.Save) and metadata.json (counters,
// entries, config) as siblings under dir.
func (c *Controller) Snapshot(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	idx := c.getIndex()
	if err := idx.Save(filepath.Join(dir, "index.bin")); err != nil {
		return err
	}

	file := snapshotFile{
		Counters: snapshotCounters{
			Hits:         c.hits.Load(),
			Misses:       c.misses.Load(),
			TotalQueries: c.totalQueries.Load(),
			SavedTokens:  c.savedTokens.Load(),
			SavedUsd:     math.Float64frombits(c.savedUsdBits.Load()),
		},
		Entries: c.metadata.Entries(),
		Config:  c.cfg,
	}

	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "metadata.json"), data, 0o644)
}

// Restore loads a prior snapshot; entries whose expiresAt has already
// passed are skipped; entries with remaining TTL are re-inserted with
// the residual TTL, not the original one.
func (c *Controller) Restore(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return err
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return cerrors.NewCorruptedPayload("snapshot metadata.json could not be parsed", err)
	}

	idx := c.getIndex()
	if err := idx.Load(filepath.Join(dir, "index.bin")); err != nil {
		return err
	}

	c.metadata.Clear()
	now := time.Now().UnixMilli()
	for _, entry := range file.Entries {
		if entry.ExpiresAt != 0 && entry.ExpiresAt <= now {
			continue
		}
		var ttl time.Duration
		if entry.ExpiresAt != 0 {
			ttl = time.Duration(entry.ExpiresAt-now) * time.Millisecond
		}
		c.metadata.Set(entry.ID, entry, ttl)
	}

	c.hits.Store(file.Counters.Hits)
	c.misses.Store(file.Counters.Misses)
	c.totalQueries.Store(file.Counters.TotalQueries)
	c.savedTokens.Store(file.Counters.SavedTokens)
	c.savedUsdBits.Store(math.Float64bits(file.Counters.SavedUsd))
	return nil
}

// Destroy releases the Vector Index's backend resources.
func (c *Controller) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.Destroy()
}
