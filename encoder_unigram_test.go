package kitoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnigramPrefersHigherScoringSegmentation(t *testing.T) {
	// "ab" can be tokenized as ["a","b"] or ["ab"]; the single "ab" piece
	// carries the higher (less negative) score and should win.
	vocab := []VocabEntry{
		{Bytes: []byte("a"), ID: 0},
		{Bytes: []byte("b"), ID: 1},
		{Bytes: []byte("ab"), ID: 2},
	}
	scores := []float32{-1.0, -1.0, -0.1}
	cfg := DefaultConfig(ModeUnigram)
	k := newTestKitoken(t, vocab, nil, scores, cfg)

	ids, err := k.Encode("ab", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, ids)
}

func TestUnigramTieBreakPrefersLongerThenLowerID(t *testing.T) {
	vocab := []VocabEntry{
		{Bytes: []byte("a"), ID: 5},
		{Bytes: []byte("b"), ID: 6},
		{Bytes: []byte("ab"), ID: 1},
	}
	// Equal total score for both segmentations: "ab" alone should win for
	// being the longer single piece.
	scores := []float32{-1.0, -1.0, -2.0}
	cfg := DefaultConfig(ModeUnigram)
	k := newTestKitoken(t, vocab, nil, scores, cfg)

	ids, err := k.Encode("ab", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, ids)
}

func TestUnigramUnknownByteFallsBackToUnk(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	scores := []float32{-1.0}
	cfg := DefaultConfig(ModeUnigram)
	unk := uint32(99)
	cfg.Specials.Unk = &unk
	cfg.Fallback.Unknown = UnknownEmitUnk
	specials := []VocabEntry{{Bytes: []byte("<unk>"), ID: unk}}
	k := newTestKitoken(t, vocab, specials, scores, cfg)

	ids, err := k.Encode("z", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{unk}, ids)
}

func TestNewUnigramEngineRejectsScoreMismatch(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}, {Bytes: []byte("b"), ID: 1}}
	idx := buildVocabIndex(vocab)
	def := &Definition{Vocab: vocab, Scores: []float32{-1.0}, Config: DefaultConfig(ModeUnigram)}
	_, err := newUnigramEngine(def, idx)
	require.Error(t, err)
}
