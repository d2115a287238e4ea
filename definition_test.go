package kitoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func simpleBytePairConfig() Config {
	return DefaultConfig(ModeBytePair)
}

func TestNewDefinitionRejectsEmptyVocab(t *testing.T) {
	_, err := NewDefinition(nil, nil, nil, simpleBytePairConfig())
	require.Error(t, err)
	var invalid *InvalidDefinitionError
	require.ErrorAs(t, err, &invalid)
}

func TestNewDefinitionRejectsDuplicateID(t *testing.T) {
	vocab := []VocabEntry{
		{Bytes: []byte("a"), ID: 0},
		{Bytes: []byte("b"), ID: 0},
	}
	_, err := NewDefinition(vocab, nil, nil, simpleBytePairConfig())
	require.Error(t, err)
}

func TestNewDefinitionRejectsDuplicateBytes(t *testing.T) {
	vocab := []VocabEntry{
		{Bytes: []byte("a"), ID: 0},
		{Bytes: []byte("a"), ID: 1},
	}
	_, err := NewDefinition(vocab, nil, nil, simpleBytePairConfig())
	require.Error(t, err)
}

func TestNewDefinitionRejectsSpecialByteCollision(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	specials := []VocabEntry{{Bytes: []byte("a"), ID: 1}}
	_, err := NewDefinition(vocab, specials, nil, simpleBytePairConfig())
	require.Error(t, err)
}

func TestNewDefinitionRejectsDanglingSpecialsReference(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	cfg := simpleBytePairConfig()
	missing := uint32(99)
	cfg.Specials.Unk = &missing
	_, err := NewDefinition(vocab, nil, nil, cfg)
	require.Error(t, err)
}

func TestNewDefinitionRejectsUnigramScoreMismatch(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}, {Bytes: []byte("b"), ID: 1}}
	cfg := DefaultConfig(ModeUnigram)
	_, err := NewDefinition(vocab, nil, []float32{-1.0}, cfg)
	require.Error(t, err)
}

func TestNewDefinitionAcceptsValidUnigram(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}, {Bytes: []byte("b"), ID: 1}}
	cfg := DefaultConfig(ModeUnigram)
	def, err := NewDefinition(vocab, nil, []float32{-1.0, -2.0}, cfg)
	require.NoError(t, err)
	require.NotNil(t, def)
}

func TestDefinitionEqual(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	cfg := simpleBytePairConfig()
	d1, err := NewDefinition(vocab, nil, nil, cfg)
	require.NoError(t, err)
	d2, err := NewDefinition(append([]VocabEntry{}, vocab...), nil, nil, cfg)
	require.NoError(t, err)
	require.True(t, d1.Equal(d2))

	d3, err := NewDefinition([]VocabEntry{{Bytes: []byte("b"), ID: 0}}, nil, nil, cfg)
	require.NoError(t, err)
	require.False(t, d1.Equal(d3))
}

func TestDefinitionEqualIgnoresMetadata(t *testing.T) {
	vocab := []VocabEntry{{Bytes: []byte("a"), ID: 0}}
	cfg := simpleBytePairConfig()
	d1, err := NewDefinition(vocab, nil, nil, cfg)
	require.NoError(t, err)
	d2, err := NewDefinition(append([]VocabEntry{}, vocab...), nil, nil, cfg)
	require.NoError(t, err)

	d1.Metadata = Metadata{Source: "tokenizers", Warnings: []string{"dropped a step"}}
	d2.Metadata = Metadata{Source: "sentencepiece"}
	require.True(t, d1.Equal(d2))
}

func TestMetadataAddWarning(t *testing.T) {
	var m Metadata
	m.AddWarning("first")
	m.AddWarning("second")
	require.Equal(t, []string{"first", "second"}, m.Warnings)
}
