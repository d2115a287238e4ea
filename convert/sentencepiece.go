package convert

import (
	"fmt"
	"math"
	"sort"

	kitoken "github.com/Systemcluster/kitoken"
	"github.com/Systemcluster/kitoken/internal/logutil"
	"google.golang.org/protobuf/encoding/protowire"
)

func init() {
	kitoken.RegisterFormat("sentencepiece", FromSentencePiece)
}

// SentencePiece ModelProto field numbers (sentencepiece_model.proto).
const (
	fieldPieces         = 1
	fieldTrainerSpec    = 2
	fieldNormalizerSpec = 3

	fieldPiecePiece = 1
	fieldPieceScore = 2
	fieldPieceType  = 3

	fieldTrainerModelType    = 3
	fieldTrainerByteFallback = 26

	fieldNormalizerCharsMap              = 2
	fieldNormalizerAddDummyPrefix        = 3
	fieldNormalizerRemoveExtraWhitespace = 4
)

// sentencePieceType mirrors ModelProto.SentencePiece.Type.
type sentencePieceType int32

const (
	spTypeNormal      sentencePieceType = 1
	spTypeUnknown     sentencePieceType = 2
	spTypeControl     sentencePieceType = 3
	spTypeUserDefined sentencePieceType = 4
	spTypeUnused      sentencePieceType = 5
	spTypeByte        sentencePieceType = 6
)

// trainerModelType mirrors TrainerSpec.ModelType.
const (
	trainerUnigram = 1
	trainerBPE     = 2
)

// protoField is one decoded top-level (number, wiretype, raw) tuple; we
// walk messages generically rather than generating a schema, since the
// handful of fields this converter needs are simple scalar/
// length-delimited values and don't warrant a full generated package.
type protoField struct {
	num  protowire.Number
	typ  protowire.Type
	data []byte // length-delimited payload, or raw varint/fixed bytes
}

func parseFields(data []byte) ([]protoField, error) {
	var fields []protoField
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("malformed tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		var payload []byte
		switch typ {
		case protowire.VarintType:
			_, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("malformed varint: %w", protowire.ParseError(n))
			}
			payload = data[:n]
			data = data[n:]
		case protowire.Fixed32Type:
			if len(data) < 4 {
				return nil, fmt.Errorf("truncated fixed32")
			}
			payload = data[:4]
			data = data[4:]
		case protowire.Fixed64Type:
			if len(data) < 8 {
				return nil, fmt.Errorf("truncated fixed64")
			}
			payload = data[:8]
			data = data[8:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("malformed bytes field: %w", protowire.ParseError(n))
			}
			payload = v
			data = data[n:]
		default:
			return nil, fmt.Errorf("unsupported wire type %d", typ)
		}
		fields = append(fields, protoField{num: num, typ: typ, data: payload})
	}
	return fields, nil
}

func fieldsByNumber(fields []protoField, num protowire.Number) []protoField {
	var out []protoField
	for _, f := range fields {
		if f.num == num {
			out = append(out, f)
		}
	}
	return out
}

func varintValue(f protoField) uint64 {
	v, _ := protowire.ConsumeVarint(f.data)
	return v
}

func fixed32Float(f protoField) float32 {
	v, _ := protowire.ConsumeFixed32(f.data)
	return math.Float32frombits(v)
}

// FromSentencePiece parses a protobuf-encoded SentencePiece ModelProto,
// hand-decoded via protowire rather than a generated schema.
func FromSentencePiece(data []byte) (*kitoken.Definition, error) {
	top, err := parseFields(data)
	if err != nil {
		return nil, &kitoken.ConversionError{SourceFormat: "sentencepiece", Reason: err.Error()}
	}

	pieceFields := fieldsByNumber(top, fieldPieces)
	if len(pieceFields) == 0 {
		return nil, &kitoken.ConversionError{SourceFormat: "sentencepiece", Reason: "no pieces found"}
	}

	type piece struct {
		bytes []byte
		score float32
		typ   sentencePieceType
	}
	pieces := make([]piece, 0, len(pieceFields))
	for _, pf := range pieceFields {
		sub, err := parseFields(pf.data)
		if err != nil {
			return nil, &kitoken.ConversionError{SourceFormat: "sentencepiece", Reason: "malformed piece: " + err.Error()}
		}
		p := piece{typ: spTypeNormal}
		for _, f := range sub {
			switch f.num {
			case fieldPiecePiece:
				p.bytes = f.data
			case fieldPieceScore:
				p.score = fixed32Float(f)
			case fieldPieceType:
				p.typ = sentencePieceType(varintValue(f))
			}
		}
		pieces = append(pieces, piece{bytes: p.bytes, score: p.score, typ: p.typ})
	}

	modelType := trainerUnigram
	byteFallback := false
	if trainer := fieldsByNumber(top, fieldTrainerSpec); len(trainer) > 0 {
		sub, err := parseFields(trainer[0].data)
		if err == nil {
			for _, f := range sub {
				switch f.num {
				case fieldTrainerModelType:
					modelType = int(varintValue(f))
				case fieldTrainerByteFallback:
					byteFallback = varintValue(f) != 0
				}
			}
		}
	}

	var charsMap []byte
	var normalizerName string
	addDummyPrefix := true        // proto3 default for NormalizerSpec.add_dummy_prefix
	removeExtraWhitespace := true // proto3 default for NormalizerSpec.remove_extra_whitespaces
	if normalizer := fieldsByNumber(top, fieldNormalizerSpec); len(normalizer) > 0 {
		sub, err := parseFields(normalizer[0].data)
		if err == nil {
			for _, f := range sub {
				switch f.num {
				case 1:
					normalizerName = string(f.data)
				case fieldNormalizerCharsMap:
					charsMap = f.data
				case fieldNormalizerAddDummyPrefix:
					addDummyPrefix = varintValue(f) != 0
				case fieldNormalizerRemoveExtraWhitespace:
					removeExtraWhitespace = varintValue(f) != 0
				}
			}
		}
	}

	var mode kitoken.Mode
	if modelType == trainerBPE {
		mode = kitoken.ModeBytePair
	} else {
		mode = kitoken.ModeUnigram
	}

	entries := make([]kitoken.VocabEntry, len(pieces))
	scores := make([]float32, len(pieces))
	for i, p := range pieces {
		entries[i] = kitoken.VocabEntry{Bytes: p.bytes, ID: uint32(i)}
		scores[i] = p.score
	}

	if mode == kitoken.ModeBytePair {
		// BPE: generate merge priority by sorting pieces by descending
		// score, ties broken by id, then re-sort the vocabulary to match,
		// since SentencePiece BPE carries no separate merge list.
		order := make([]int, len(pieces))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ia, ib := order[a], order[b]
			if pieces[ia].score != pieces[ib].score {
				return pieces[ia].score > pieces[ib].score
			}
			return ia < ib
		})
		sorted := make([]kitoken.VocabEntry, len(order))
		for newIdx, oldIdx := range order {
			sorted[newIdx] = kitoken.VocabEntry{Bytes: pieces[oldIdx].bytes, ID: uint32(oldIdx)}
		}
		entries = sorted
		scores = nil
	}

	cfg := kitoken.DefaultConfig(mode)
	cfg.BytePair.CharMode = mode == kitoken.ModeBytePair
	cfg.Normalization.EscapeWhitespace = "▁" // ▁, preserved literally in piece bytes
	cfg.Decoding.EscapeWhitespace = "▁"
	cfg.Fallback.ByteFallback = byteFallback
	if len(charsMap) > 0 {
		cfg.Normalization.CharsMap = charsMap
	}
	if addDummyPrefix {
		cfg.Normalization.PrependScheme = kitoken.PrependFirst
	}
	cfg.Normalization.CollapseWhitespace = removeExtraWhitespace
	applySentencePieceNormalizerName(normalizerName, &cfg)

	var specials []kitoken.VocabEntry
	for i, p := range pieces {
		switch p.typ {
		case spTypeUnknown:
			id := uint32(i)
			cfg.Specials.Unk = &id
		case spTypeControl, spTypeUserDefined:
			specials = append(specials, kitoken.VocabEntry{Bytes: p.bytes, ID: uint32(i)})
		}
	}

	def, err := kitoken.NewDefinition(entries, specials, scores, cfg)
	if err != nil {
		return nil, err
	}
	def.Metadata.Source = "sentencepiece"
	if normalizerName != "" {
		if _, known := sentencePieceNormalizerNames[normalizerName]; !known {
			warning := fmt.Sprintf("normalizer_spec name %q has no equivalent and was dropped", normalizerName)
			logutil.Trace("dropping unsupported sentencepiece normalizer", "name", normalizerName)
			def.Metadata.AddWarning(warning)
		}
	}
	return def, nil
}

var sentencePieceNormalizerNames = map[string]struct{}{
	"nmt_nfkc": {}, "nfkc": {}, "nmt_nfkc_cf": {}, "nfkc_cf": {}, "identity": {}, "": {},
}

// applySentencePieceNormalizerName translates the normalizer_spec name
// (e.g. "nmt_nfkc", "identity") to the flat normalization config. The
// nmt_nfkc deviation around fullwidth tilde normalization is preserved by
// using NFKC as-is rather than a patched table.
func applySentencePieceNormalizerName(name string, cfg *kitoken.Config) {
	switch name {
	case "nmt_nfkc", "nfkc":
		cfg.Normalization.Scheme = kitoken.UnicodeNFKC
	case "nmt_nfkc_cf", "nfkc_cf":
		cfg.Normalization.Scheme = kitoken.UnicodeNFKC
		cfg.Normalization.CaseFold = kitoken.CaseLower
	case "identity", "":
		// no-op
	}
}
