// Package tooldispatcher implements the five MCP tool entry points
// (ai_complete, cache_check, cache_store, cache_stats, generate_embedding),
// each taking a validated parameter struct and returning a uniform
// tool-result envelope for wire compatibility.
package tooldispatcher

import (
	"context"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/blueberrycongee/semcache/internal/pricing"
	"github.com/blueberrycongee/semcache/internal/semcache"
	"github.com/blueberrycongee/semcache/internal/tokenizer"
	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

// Dispatcher mediates every external call into the Cache Controller; it
// is the only component that talks both the cache's internal types and
// the MCP tool-result wire format.
type Dispatcher struct {
	controller *semcache.Controller
	embedder   semcache.Embedder
	pricing    *pricing.Calculator
	logger     *slog.Logger
}

// New constructs a Dispatcher over controller. embedder may be nil; a
// nil embedder means cache_store and generate_embedding requests that
// need one always fail with EmbeddingUnavailable.
func New(controller *semcache.Controller, embedder semcache.Embedder) *Dispatcher {
	return &Dispatcher{
		controller: controller,
		embedder:   embedder,
		pricing:    pricing.NewCalculator(nil),
		logger:     slog.Default(),
	}
}

// logCall assigns a correlation id to a single tool invocation so its
// start and finish log lines can be joined in process logs.
func (d *Dispatcher) logCall(tool string) (done func(isError bool)) {
	callID := uuid.New().String()
	d.logger.Info("tool call", "tool", tool, "call_id", callID)
	start := time.Now()
	return func(isError bool) {
		d.logger.Info("tool call finished",
			"tool", tool, "call_id", callID, "is_error", isError, "duration_ms", time.Since(start).Milliseconds())
	}
}

func textResult(payload any, isError bool) *mcp.CallToolResult {
	body, err := json.Marshal(payload)
	if err != nil {
		body = []byte(`{"error":"failed to serialize tool result"}`)
		isError = true
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(body)}},
		IsError: isError,
	}
}

func errorResult(tool, message string) *mcp.CallToolResult {
	return textResult(map[string]any{"error": message, "tool": tool}, true)
}

// AICompleteParams are the ai_complete tool's parameters.
type AICompleteParams struct {
	Prompt              string    `json:"prompt"`
	Embedding           []float32 `json:"embedding,omitempty"`
	Metadata            any       `json:"metadata,omitempty"`
	SimilarityThreshold float64   `json:"similarityThreshold,omitempty"`
	// Model names the upstream model a hit would have otherwise called,
	// used only to estimate the tokens and USD a hit saved.
	Model string `json:"model,omitempty"`
}

// AIComplete implements the ai_complete tool.
func (d *Dispatcher) AIComplete(ctx context.Context, p AICompleteParams) (result *mcp.CallToolResult) {
	done := d.logCall("ai_complete")
	defer func() { done(result.IsError) }()

	if p.Prompt == "" {
		return errorResult("ai_complete", "prompt is required")
	}
	if err := validateThreshold(p.SimilarityThreshold); err != nil {
		return errorResult("ai_complete", err.Error())
	}

	hit, err := d.controller.Lookup(ctx, p.Prompt, p.Embedding, lookupOpts(p.SimilarityThreshold))
	if err != nil {
		return errorResult("ai_complete", err.Error())
	}
	if hit == nil {
		return textResult(map[string]any{
			"cached":  false,
			"message": "Cache miss - no similar prompt found",
		}, false)
	}

	d.trackHitSavings(p.Model, p.Prompt, hit.Response)

	return textResult(map[string]any{
		"cached":       true,
		"response":     hit.Response,
		"similarity":   hit.Similarity,
		"isExactMatch": hit.IsExactMatch,
		"cachedAt":     hit.CachedAt,
	}, false)
}

// trackHitSavings estimates the tokens and USD a cache hit avoided
// sending upstream and records them on the Cache Controller. model may
// be empty, in which case the token estimate uses the tokenizer's
// default encoding (see tokenizer.CountTextTokens) and no USD is
// attributed (the pricing table has no fallback entry for an unknown
// model).
func (d *Dispatcher) trackHitSavings(model, prompt, response string) {
	tokens := tokenizer.EstimateSavedTokens(model, prompt, response)
	var usd float64
	if model != "" {
		promptTokens := tokenizer.CountTextTokens(model, prompt)
		responseTokens := tokenizer.CountTextTokens(model, response)
		usd = d.pricing.Calculate(model, promptTokens, responseTokens)
	}
	d.controller.TrackSavings(tokens, usd)
}

// CacheCheckParams are the cache_check tool's parameters.
type CacheCheckParams struct {
	Prompt              string    `json:"prompt"`
	Embedding           []float32 `json:"embedding,omitempty"`
	SimilarityThreshold float64   `json:"similarityThreshold,omitempty"`
}

// CacheCheck implements the cache_check tool: a side-effect-free lookup
// beyond the counters every lookup updates.
func (d *Dispatcher) CacheCheck(ctx context.Context, p CacheCheckParams) (result *mcp.CallToolResult) {
	done := d.logCall("cache_check")
	defer func() { done(result.IsError) }()

	if p.Prompt == "" {
		return errorResult("cache_check", "prompt is required")
	}
	if err := validateThreshold(p.SimilarityThreshold); err != nil {
		return errorResult("cache_check", err.Error())
	}

	hit, err := d.controller.Lookup(ctx, p.Prompt, p.Embedding, lookupOpts(p.SimilarityThreshold))
	if err != nil {
		return errorResult("cache_check", err.Error())
	}
	if hit == nil {
		return textResult(map[string]any{
			"found":   false,
			"message": "No cached entry found",
		}, false)
	}

	return textResult(map[string]any{
		"found":        true,
		"response":     hit.Response,
		"similarity":   hit.Similarity,
		"isExactMatch": hit.IsExactMatch,
		"cachedAt":     hit.CachedAt,
	}, false)
}

// CacheStoreParams are the cache_store tool's parameters.
type CacheStoreParams struct {
	Prompt    string        `json:"prompt"`
	Response  string        `json:"response"`
	Embedding []float32     `json:"embedding,omitempty"`
	Metadata  any           `json:"metadata,omitempty"`
	TTL       time.Duration `json:"ttl,omitempty"`
}

// CacheStore implements the cache_store tool. If no embedding is
// supplied it requests one from the embedder; if none is available the
// cache never stores with a zero vector.
func (d *Dispatcher) CacheStore(ctx context.Context, p CacheStoreParams) (result *mcp.CallToolResult) {
	done := d.logCall("cache_store")
	defer func() { done(result.IsError) }()

	if p.Prompt == "" {
		return errorResult("cache_store", "prompt is required")
	}
	if p.Response == "" {
		return errorResult("cache_store", "response is required")
	}

	embedding := p.Embedding
	hasEmbedding := len(embedding) > 0
	if !hasEmbedding {
		if d.embedder == nil {
			return textResult(map[string]any{
				"error":   "Embedding required: no embedding supplied and no embedder configured",
				"isError": true,
			}, true)
		}
		generated, _, err := d.embedder.Generate(ctx, p.Prompt)
		if err != nil || len(generated) == 0 {
			return textResult(map[string]any{
				"error":   "Embedding required: embedder failed to produce a vector",
				"isError": true,
			}, true)
		}
		embedding = generated
		hasEmbedding = true
	}

	if err := d.controller.Insert(ctx, p.Prompt, p.Response, embedding, semcache.InsertOptions{TTL: p.TTL}); err != nil {
		return errorResult("cache_store", err.Error())
	}

	return textResult(map[string]any{
		"success":      true,
		"hasEmbedding": hasEmbedding,
	}, false)
}

// CacheStats implements the cache_stats tool.
func (d *Dispatcher) CacheStats(ctx context.Context) *mcp.CallToolResult {
	done := d.logCall("cache_stats")
	defer func() { done(false) }()
	return textResult(d.controller.Stats(), false)
}

// GenerateEmbeddingParams are the generate_embedding tool's parameters.
type GenerateEmbeddingParams struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// GenerateEmbedding implements the generate_embedding tool.
func (d *Dispatcher) GenerateEmbedding(ctx context.Context, p GenerateEmbeddingParams) (result *mcp.CallToolResult) {
	done := d.logCall("generate_embedding")
	defer func() { done(result.IsError) }()

	if p.Text == "" {
		return errorResult("generate_embedding", "text is required")
	}
	if d.embedder == nil {
		return errorResult("generate_embedding", "no embedder configured")
	}

	embedding, model, err := d.embedder.Generate(ctx, p.Text)
	if err != nil {
		return errorResult("generate_embedding", err.Error())
	}
	if len(embedding) == 0 {
		return errorResult("generate_embedding", "embedder returned no embedding")
	}

	return textResult(map[string]any{
		"embedding": embedding,
		"model":     model,
	}, false)
}

func validateThreshold(threshold float64) error {
	if threshold != 0 && (threshold < 0 || threshold > 1) {
		return cerrors.NewInvalidInput("similarityThreshold must be in [0, 1]")
	}
	return nil
}

func lookupOpts(threshold float64) semcache.LookupOptions {
	return semcache.LookupOptions{MinSimilarity: threshold}
}
