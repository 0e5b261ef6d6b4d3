package semcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/blueberrycongee/semcache/pkg/errors"
)

func TestDefaultConfig_MatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1536, cfg.Dim)
	assert.Equal(t, 100_000, cfg.MaxElements)
	assert.Equal(t, 0.85, cfg.SimilarityThreshold)
}

func TestConfig_Validate_RejectsInvalidDim(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dim = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsOutOfRangeThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 1.5
	err := cfg.Validate()
	require.Error(t, err)
	code, ok := cerrors.CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, cerrors.CodeInvalidInput, code)
}

func TestConfig_Validate_FillsDefaults(t *testing.T) {
	cfg := Config{Dim: 128, SimilarityThreshold: 0.9}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100_000, cfg.MaxElements)
	assert.Equal(t, "1gb", cfg.MemoryLimit)
}

func TestConfig_Validate_RerankingRequiresThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableReranking = true
	cfg.RerankingThreshold = 0
	assert.Error(t, cfg.Validate())
}
