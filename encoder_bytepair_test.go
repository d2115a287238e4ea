package kitoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func bytePairVocab() []VocabEntry {
	return []VocabEntry{
		{Bytes: []byte("l"), ID: 0},
		{Bytes: []byte("o"), ID: 1},
		{Bytes: []byte("w"), ID: 2},
		{Bytes: []byte("e"), ID: 3},
		{Bytes: []byte("r"), ID: 4},
		{Bytes: []byte("lo"), ID: 5},
		{Bytes: []byte("low"), ID: 6},
		{Bytes: []byte("er"), ID: 7},
		{Bytes: []byte("lower"), ID: 8},
	}
}

func newTestKitoken(t *testing.T, vocab, specials []VocabEntry, scores []float32, cfg Config) *Kitoken {
	t.Helper()
	def, err := NewDefinition(vocab, specials, scores, cfg)
	require.NoError(t, err)
	k, err := NewFromDefinition(def)
	require.NoError(t, err)
	return k
}

func TestBytePairEncodeMergesToLongestVocabMatch(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	k := newTestKitoken(t, bytePairVocab(), nil, nil, cfg)

	ids, err := k.Encode("lower", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{8}, ids)
}

func TestBytePairEncodeFallsBackWhenNoMergePossible(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	cfg.Fallback.Unknown = UnknownEmitUnk
	unk := uint32(99)
	vocab := bytePairVocab()
	specials := []VocabEntry{{Bytes: []byte("<unk>"), ID: unk}}
	cfg.Specials.Unk = &unk
	k := newTestKitoken(t, vocab, specials, nil, cfg)

	ids, err := k.Encode("z", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{unk}, ids)
}

func TestBytePairEncodeErrorsWithoutFallback(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	k := newTestKitoken(t, bytePairVocab(), nil, nil, cfg)

	_, err := k.Encode("z", false)
	require.Error(t, err)
	var unencodable *UnencodableError
	require.ErrorAs(t, err, &unencodable)
}

func TestCharPairModeEncodesLikeBytePairCharMode(t *testing.T) {
	cfg := DefaultConfig(ModeCharPair)
	k := newTestKitoken(t, bytePairVocab(), nil, nil, cfg)

	ids, err := k.Encode("lower", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{8}, ids)
}

func TestCharPairModeIgnoresStaleCharModeBoolOverride(t *testing.T) {
	cfg := DefaultConfig(ModeCharPair)
	cfg.BytePair.CharMode = false
	k := newTestKitoken(t, bytePairVocab(), nil, nil, cfg)

	// Mode == ModeCharPair alone must still select character merge units.
	ids, err := k.Encode("lower", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{8}, ids)
}

// A multi-byte rune with no whole-rune vocab entry only reaches
// resolveUnencodable in CharMode, since its single-byte constituents
// would otherwise be found directly by a plain byte-mode merge.
const multiByteUnknownRune = "é" // 0xC3 0xA9, two vocab-less bytes

func byteFallbackVocab() []VocabEntry {
	vocab := bytePairVocab()
	vocab = append(vocab,
		VocabEntry{Bytes: []byte{0xC3}, ID: 200},
		VocabEntry{Bytes: []byte{0xA9}, ID: 201},
	)
	return vocab
}

func TestUnknownBytesFallsBackToByteTokens(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	cfg.Fallback.Unknown = UnknownBytes
	k := newTestKitoken(t, byteFallbackVocab(), nil, nil, cfg)

	ids, err := k.Encode(multiByteUnknownRune, false)
	require.NoError(t, err)
	require.Equal(t, []uint32{200, 201}, ids)
}

func TestUnknownBytesErrorsWhenByteTokenMissing(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	cfg.Fallback.Unknown = UnknownBytes
	k := newTestKitoken(t, bytePairVocab(), nil, nil, cfg)

	_, err := k.Encode(multiByteUnknownRune, false)
	require.Error(t, err)
	var unencodable *UnencodableError
	require.ErrorAs(t, err, &unencodable)
}

func TestByteFallbackBoolWinsOverUnknownBytesPolicy(t *testing.T) {
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	cfg.Fallback.ByteFallback = true
	cfg.Fallback.Unknown = UnknownEmitUnk

	unk := uint32(99)
	vocab := byteFallbackVocab()
	specials := []VocabEntry{{Bytes: []byte("<unk>"), ID: unk}}
	cfg.Specials.Unk = &unk
	k := newTestKitoken(t, vocab, specials, nil, cfg)

	ids, err := k.Encode(multiByteUnknownRune, false)
	require.NoError(t, err)
	require.Equal(t, []uint32{200, 201}, ids)
}

func TestBytePairEncodeUsesHeapFallbackForLongSegments(t *testing.T) {
	// Force the heap-based fallback path by setting a tiny threshold.
	cfg := DefaultConfig(ModeBytePair)
	cfg.BytePair.CharMode = true
	cfg.BytePair.FallbackThreshold = 2
	k := newTestKitoken(t, bytePairVocab(), nil, nil, cfg)

	ids, err := k.Encode("lower", false)
	require.NoError(t, err)
	require.Equal(t, []uint32{8}, ids)
}
