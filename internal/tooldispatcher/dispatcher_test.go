package tooldispatcher

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/blueberrycongee/semcache/internal/embedstub"
	"github.com/blueberrycongee/semcache/internal/semcache"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg := semcache.DefaultConfig()
	cfg.Dim = 384
	controller, err := semcache.New(cfg)
	if err != nil {
		t.Fatalf("semcache.New() error = %v", err)
	}
	return New(controller, embedstub.New(384))
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("Content len = %d, want 1", len(result.Content))
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] = %T, want mcp.TextContent", result.Content[0])
	}
	if tc.Type != "text" {
		t.Errorf("Content[0].Type = %q, want text", tc.Type)
	}
	return tc.Text
}

func decodeJSON(t *testing.T, text string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", text, err)
	}
	return out
}

func TestCacheStore_ThenAIComplete_ExactHit(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	storeResult := d.CacheStore(ctx, CacheStoreParams{Prompt: "What is ML?", Response: "ML is AI."})
	if storeResult.IsError {
		t.Fatalf("CacheStore() isError = true, body = %s", resultText(t, storeResult))
	}
	body := decodeJSON(t, resultText(t, storeResult))
	if body["success"] != true {
		t.Errorf("CacheStore() success = %v, want true", body["success"])
	}

	completeResult := d.AIComplete(ctx, AICompleteParams{Prompt: "What is ML?"})
	if completeResult.IsError {
		t.Fatalf("AIComplete() isError = true, body = %s", resultText(t, completeResult))
	}
	completeBody := decodeJSON(t, resultText(t, completeResult))
	if completeBody["cached"] != true {
		t.Errorf("AIComplete() cached = %v, want true", completeBody["cached"])
	}
	if completeBody["response"] != "ML is AI." {
		t.Errorf("AIComplete() response = %v, want %q", completeBody["response"], "ML is AI.")
	}
}

func TestAIComplete_Miss(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.AIComplete(context.Background(), AICompleteParams{Prompt: "never stored"})
	if result.IsError {
		t.Fatalf("AIComplete() isError = true, body = %s", resultText(t, result))
	}
	body := decodeJSON(t, resultText(t, result))
	if body["cached"] != false {
		t.Errorf("AIComplete() cached = %v, want false", body["cached"])
	}
}

func TestAIComplete_MissingPromptIsError(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.AIComplete(context.Background(), AICompleteParams{})
	if !result.IsError {
		t.Fatal("AIComplete() with no prompt: isError = false, want true")
	}
	body := decodeJSON(t, resultText(t, result))
	if body["tool"] != "ai_complete" {
		t.Errorf("error body tool = %v, want ai_complete", body["tool"])
	}
}

func TestCacheCheck_InvalidThresholdIsError(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.CacheCheck(context.Background(), CacheCheckParams{Prompt: "x", SimilarityThreshold: 1.5})
	if !result.IsError {
		t.Fatal("CacheCheck() with threshold=1.5: isError = false, want true")
	}
}

func TestCacheStore_NoEmbeddingUsesBundledEmbedder(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.CacheStore(context.Background(), CacheStoreParams{Prompt: "auto-embed", Response: "response"})
	if result.IsError {
		t.Fatalf("CacheStore() isError = true, body = %s", resultText(t, result))
	}
	body := decodeJSON(t, resultText(t, result))
	if body["hasEmbedding"] != true {
		t.Errorf("hasEmbedding = %v, want true", body["hasEmbedding"])
	}
}

func TestCacheStore_NoEmbedderAndNoEmbeddingIsError(t *testing.T) {
	cfg := semcache.DefaultConfig()
	cfg.Dim = 384
	controller, _ := semcache.New(cfg)
	d := New(controller, nil)

	result := d.CacheStore(context.Background(), CacheStoreParams{Prompt: "p", Response: "r"})
	if !result.IsError {
		t.Fatal("CacheStore() with no embedder and no embedding: isError = false, want true")
	}
}

func TestCacheStats(t *testing.T) {
	d := newTestDispatcher(t)
	d.CacheStore(context.Background(), CacheStoreParams{Prompt: "p", Response: "r"})

	result := d.CacheStats(context.Background())
	if result.IsError {
		t.Fatalf("CacheStats() isError = true, body = %s", resultText(t, result))
	}
	body := decodeJSON(t, resultText(t, result))
	if body["total_entries"] != float64(1) {
		t.Errorf("total_entries = %v, want 1", body["total_entries"])
	}
}

func TestGenerateEmbedding(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.GenerateEmbedding(context.Background(), GenerateEmbeddingParams{Text: "hello"})
	if result.IsError {
		t.Fatalf("GenerateEmbedding() isError = true, body = %s", resultText(t, result))
	}
	body := decodeJSON(t, resultText(t, result))
	if body["model"] == "" || body["model"] == nil {
		t.Error("GenerateEmbedding() model is empty")
	}
	embedding, ok := body["embedding"].([]any)
	if !ok || len(embedding) != 384 {
		t.Errorf("GenerateEmbedding() embedding len = %v, want 384", len(embedding))
	}
}

func TestGenerateEmbedding_MissingTextIsError(t *testing.T) {
	d := newTestDispatcher(t)
	result := d.GenerateEmbedding(context.Background(), GenerateEmbeddingParams{})
	if !result.IsError {
		t.Fatal("GenerateEmbedding() with no text: isError = false, want true")
	}
}
