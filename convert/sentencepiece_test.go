package convert

import (
	"math"
	"testing"

	kitoken "github.com/Systemcluster/kitoken"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// appendPiece builds one ModelProto.SentencePiece submessage.
func appendPiece(buf []byte, piece string, score float32, typ sentencePieceType) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, fieldPiecePiece, protowire.BytesType)
	sub = protowire.AppendBytes(sub, []byte(piece))
	sub = protowire.AppendTag(sub, fieldPieceScore, protowire.Fixed32Type)
	sub = protowire.AppendFixed32(sub, math.Float32bits(score))
	if typ != spTypeNormal {
		sub = protowire.AppendTag(sub, fieldPieceType, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(typ))
	}
	buf = protowire.AppendTag(buf, fieldPieces, protowire.BytesType)
	buf = protowire.AppendBytes(buf, sub)
	return buf
}

func appendTrainerSpec(buf []byte, modelType int, byteFallback bool) []byte {
	var sub []byte
	sub = protowire.AppendTag(sub, fieldTrainerModelType, protowire.VarintType)
	sub = protowire.AppendVarint(sub, uint64(modelType))
	if byteFallback {
		sub = protowire.AppendTag(sub, fieldTrainerByteFallback, protowire.VarintType)
		sub = protowire.AppendVarint(sub, 1)
	}
	buf = protowire.AppendTag(buf, fieldTrainerSpec, protowire.BytesType)
	buf = protowire.AppendBytes(buf, sub)
	return buf
}

// appendNormalizerSpec builds one ModelProto.NormalizerSpec submessage.
// Pass -1 for addDummyPrefix/removeExtraWhitespace to omit the field
// entirely and exercise the proto3 default-true behavior.
func appendNormalizerSpec(buf []byte, name string, addDummyPrefix, removeExtraWhitespace int) []byte {
	var sub []byte
	if name != "" {
		sub = protowire.AppendTag(sub, 1, protowire.BytesType)
		sub = protowire.AppendBytes(sub, []byte(name))
	}
	if addDummyPrefix >= 0 {
		sub = protowire.AppendTag(sub, fieldNormalizerAddDummyPrefix, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(addDummyPrefix))
	}
	if removeExtraWhitespace >= 0 {
		sub = protowire.AppendTag(sub, fieldNormalizerRemoveExtraWhitespace, protowire.VarintType)
		sub = protowire.AppendVarint(sub, uint64(removeExtraWhitespace))
	}
	buf = protowire.AppendTag(buf, fieldNormalizerSpec, protowire.BytesType)
	buf = protowire.AppendBytes(buf, sub)
	return buf
}

func TestFromSentencePieceUnigram(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "<unk>", 0, spTypeUnknown)
	buf = appendPiece(buf, "a", -1.0, spTypeNormal)
	buf = appendPiece(buf, "b", -2.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerUnigram, false)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.Equal(t, kitoken.ModeUnigram, def.Config.Mode)
	require.Len(t, def.Vocab, 3)
	require.Len(t, def.Scores, 3)
	require.NotNil(t, def.Config.Specials.Unk)
	require.Equal(t, uint32(0), *def.Config.Specials.Unk)
}

func TestFromSentencePieceBPESortsByScore(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "a", -5.0, spTypeNormal)
	buf = appendPiece(buf, "b", -1.0, spTypeNormal)
	buf = appendPiece(buf, "ab", -3.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerBPE, false)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.Equal(t, kitoken.ModeBytePair, def.Config.Mode)
	require.Nil(t, def.Scores)
	// Highest score ("b", -1.0) must sort first (lowest merge rank).
	require.Equal(t, "b", string(def.Vocab[0].Bytes))
}

func TestFromSentencePieceByteFallback(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "a", -1.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerUnigram, true)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.True(t, def.Config.Fallback.ByteFallback)
}

func TestFromSentencePieceRejectsNoPieces(t *testing.T) {
	_, err := FromSentencePiece(appendTrainerSpec(nil, trainerUnigram, false))
	require.Error(t, err)
}

func TestFromSentencePieceNormalizerDefaultsWhenFieldsAbsent(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "a", -1.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerUnigram, false)
	buf = appendNormalizerSpec(buf, "identity", -1, -1)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.Equal(t, kitoken.PrependFirst, def.Config.Normalization.PrependScheme)
	require.True(t, def.Config.Normalization.CollapseWhitespace)
}

func TestFromSentencePieceNormalizerExplicitFieldsOverrideDefaults(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "a", -1.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerUnigram, false)
	buf = appendNormalizerSpec(buf, "identity", 0, 0)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.Equal(t, kitoken.PrependNever, def.Config.Normalization.PrependScheme)
	require.False(t, def.Config.Normalization.CollapseWhitespace)
}

func TestFromSentencePieceMetadataSource(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "a", -1.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerUnigram, false)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.Equal(t, "sentencepiece", def.Metadata.Source)
}

func TestFromSentencePieceUnknownNormalizerNameRecordsWarning(t *testing.T) {
	var buf []byte
	buf = appendPiece(buf, "a", -1.0, spTypeNormal)
	buf = appendTrainerSpec(buf, trainerUnigram, false)
	buf = appendNormalizerSpec(buf, "some_custom_normalizer", -1, -1)

	def, err := FromSentencePiece(buf)
	require.NoError(t, err)
	require.Len(t, def.Metadata.Warnings, 1)
	require.Contains(t, def.Metadata.Warnings[0], "some_custom_normalizer")
}
