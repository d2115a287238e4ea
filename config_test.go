package kitoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigBytePair(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	require.Equal(t, 128, cfg.BytePair.fallbackThreshold())
	require.Equal(t, UnknownError, cfg.Fallback.Unknown)
}

func TestDefaultConfigWordPiece(t *testing.T) {
	cfg := DefaultConfig(ModeWordPiece)
	require.Equal(t, "##", cfg.WordPiece.ContinuingPrefix)
	require.Equal(t, 100, cfg.WordPiece.MaxWordLen)
}

func TestConfigValidateRejectsNegativeThreshold(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.FallbackThreshold = -1
	require.Error(t, cfg.Validate())
}

func TestConfigValidateRejectsNegativeMaxWordLen(t *testing.T) {
	cfg := DefaultConfig(ModeWordPiece)
	cfg.WordPiece.MaxWordLen = -1
	require.Error(t, cfg.Validate())
}

func TestBytePairFallbackThresholdDefaultsWhenUnset(t *testing.T) {
	cfg := BytePairConfig{}
	require.Equal(t, 128, cfg.fallbackThreshold())
}

func TestModeString(t *testing.T) {
	require.Equal(t, "BytePair", ModeBytePair.String())
	require.Equal(t, "CharPair", ModeCharPair.String())
	require.Equal(t, "Unigram", ModeUnigram.String())
	require.Equal(t, "WordPiece", ModeWordPiece.String())
}

func TestDefaultConfigCharPair(t *testing.T) {
	cfg := DefaultConfig(ModeCharPair)
	require.True(t, cfg.BytePair.CharMode)
	require.Equal(t, 128, cfg.BytePair.fallbackThreshold())
}

func TestConfigValidateRejectsNegativeThresholdForCharPair(t *testing.T) {
	cfg := DefaultConfig(ModeCharPair)
	cfg.BytePair.FallbackThreshold = -1
	require.Error(t, cfg.Validate())
}
