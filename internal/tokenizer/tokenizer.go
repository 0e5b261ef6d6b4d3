// Package tokenizer provides token counting helpers for estimating the
// savings a cache hit produces.
package tokenizer

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache sync.Map
	defaultOnce   sync.Once
	defaultEnc    *tiktoken.Tiktoken
)

// CountTextTokens counts the tokens a model's encoder would produce for text.
// A model tiktoken does not recognize is counted with the cl100k_base
// encoding; a byte/4 estimate is used only when no encoding can be loaded.
func CountTextTokens(model, text string) int {
	if text == "" {
		return 0
	}
	enc := getEncoding(model)
	if enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

// EstimateSavedTokens returns the prompt + completion tokens a cache hit
// avoided re-sending to the upstream model.
func EstimateSavedTokens(model, prompt, response string) int {
	return CountTextTokens(model, prompt) + CountTextTokens(model, response)
}

func getEncoding(model string) *tiktoken.Tiktoken {
	base := normalizeModelName(model)
	if cached, ok := encodingCache.Load(base); ok {
		if enc, ok := cached.(*tiktoken.Tiktoken); ok {
			return enc
		}
		return getDefaultEncoding()
	}

	if strings.Contains(base, "gpt-4o") {
		if enc, err := tiktoken.GetEncoding("o200k_base"); err == nil {
			encodingCache.Store(base, enc)
			return enc
		}
	}

	enc, err := tiktoken.EncodingForModel(base)
	if err != nil {
		enc = getDefaultEncoding()
	}
	if enc != nil {
		encodingCache.Store(base, enc)
	}
	return enc
}

func getDefaultEncoding() *tiktoken.Tiktoken {
	defaultOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			defaultEnc = enc
		}
	})
	return defaultEnc
}

func normalizeModelName(model string) string {
	if model == "" {
		return model
	}
	if idx := strings.LastIndex(model, "/"); idx >= 0 && idx+1 < len(model) {
		return model[idx+1:]
	}
	return model
}
