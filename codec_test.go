package kitoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToBytesRoundTrip(t *testing.T) {
	vocab := []VocabEntry{
		{Bytes: []byte("a"), ID: 0},
		{Bytes: []byte("b"), ID: 1},
		{Bytes: []byte("ab"), ID: 2},
	}
	specials := []VocabEntry{{Bytes: []byte("<unk>"), ID: 3}}
	cfg := DefaultConfig(ModeBytePair)
	unk := uint32(3)
	cfg.Specials.Unk = &unk

	def, err := NewDefinition(vocab, specials, nil, cfg)
	require.NoError(t, err)

	data := def.ToBytes()
	require.True(t, len(data) > 5)
	require.Equal(t, "KTK1", string(data[:4]))

	back, err := DefinitionFromBytes(data)
	require.NoError(t, err)
	require.True(t, def.Equal(back))
}

func TestToBytesRoundTripWithScores(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}, {Bytes: []byte("b"), ID: 1}}
	cfg := DefaultConfig(ModeUnigram)
	def, err := NewDefinition(vocab, nil, []float32{-0.5, -1.25}, cfg)
	require.NoError(t, err)

	data := def.ToBytes()
	back, err := DefinitionFromBytes(data)
	require.NoError(t, err)
	require.Equal(t, def.Scores, back.Scores)
}

func TestDefinitionFromBytesRejectsBadMagic(t *testing.T) {
	_, err := DefinitionFromBytes([]byte("not a real definition blob"))
	require.Error(t, err)
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
}

func TestDefinitionFromBytesRejectsTruncated(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	def, err := NewDefinition(vocab, nil, nil, DefaultConfig(ModeBytePair))
	require.NoError(t, err)
	data := def.ToBytes()
	_, err = DefinitionFromBytes(data[:len(data)-2])
	require.Error(t, err)
}

func TestDetectAndParseNativeFormat(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	def, err := NewDefinition(vocab, nil, nil, DefaultConfig(ModeBytePair))
	require.NoError(t, err)

	back, err := DetectAndParse(def.ToBytes())
	require.NoError(t, err)
	require.True(t, def.Equal(back))
}

func TestDetectAndParseUnrecognized(t *testing.T) {
	_, err := DetectAndParse([]byte("\x00\x01garbage-not-any-known-format\x02\x03"))
	require.Error(t, err)
	var unrec *UnrecognizedFormatError
	require.ErrorAs(t, err, &unrec)
}
