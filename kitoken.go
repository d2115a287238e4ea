package kitoken

import (
	"unicode/utf8"

	"github.com/Systemcluster/kitoken/internal/logutil"
)

// Kitoken is the tokenizer facade: it owns a Definition and the derived
// indexes built from it (vocabulary index, normalizer, splitter, encoding
// engine, decoder), rebuilt wholesale on SetDefinition/SetConfig. A
// constructed Kitoken is safe for concurrent encode/decode calls; only
// SetDefinition/SetConfig require exclusive access.
type Kitoken struct {
	def *Definition

	vocab    *vocabIndex
	specials *vocabIndex
	norm     *normalizer
	split    *splitter
	engine   engine
	decode   *decoder
}

// New constructs a Kitoken from raw bytes via auto-detection.
func New(data []byte) (*Kitoken, error) {
	def, err := DetectAndParse(data)
	if err != nil {
		return nil, err
	}
	return NewFromDefinition(def)
}

// FromSentencePiece, FromTokenizers, FromTiktoken and FromTekken bypass
// auto-detect and parse one named foreign format directly. They reuse the
// same hooks convert registers into this package for DetectAndParse, so
// the root package never imports convert (which itself imports kitoken
// for Definition/VocabEntry) and an import cycle is avoided.
func FromSentencePiece(data []byte) (*Kitoken, error) { return fromHook(parseSentencePieceHook, data) }
func FromTokenizers(data []byte) (*Kitoken, error)    { return fromHook(parseTokenizersHook, data) }
func FromTiktoken(data []byte) (*Kitoken, error)      { return fromHook(parseTiktokenHook, data) }
func FromTekken(data []byte) (*Kitoken, error)        { return fromHook(parseTekkenHook, data) }

func fromHook(fn func([]byte) (*Definition, error), data []byte) (*Kitoken, error) {
	if fn == nil {
		return nil, &ConversionError{SourceFormat: "unknown", Reason: "converter not registered; import the convert package"}
	}
	def, err := fn(data)
	if err != nil {
		return nil, err
	}
	return NewFromDefinition(def)
}

// NewFromDefinition builds a Kitoken directly from an already-parsed
// Definition, validating and deriving indexes as New does.
func NewFromDefinition(def *Definition) (*Kitoken, error) {
	k := &Kitoken{}
	if err := k.SetDefinition(def); err != nil {
		return nil, err
	}
	return k, nil
}

// SetDefinition atomically replaces the definition and rebuilds every
// derived index; on validation failure the prior state (if any) is left
// untouched.
func (k *Kitoken) SetDefinition(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	norm, err := newNormalizer(def.Config.Normalization)
	if err != nil {
		return err
	}
	split, err := newSplitter(def.Config.Split, def.Specials)
	if err != nil {
		return err
	}
	vocab := buildVocabIndex(def.Vocab)
	eng, err := newEngine(def, vocab)
	if err != nil {
		return err
	}

	k.def = def
	k.vocab = vocab
	k.specials = buildVocabIndex(def.Specials)
	k.norm = norm
	k.split = split
	k.engine = eng
	k.decode = newDecoder(def.Config.Decoding)
	return nil
}

// SetConfig validates and installs a new Config, rebuilding every derived
// index; the Definition's vocabulary/specials/scores are unchanged.
func (k *Kitoken) SetConfig(cfg Config) error {
	next := &Definition{Vocab: k.def.Vocab, Specials: k.def.Specials, Scores: k.def.Scores, Config: cfg}
	return k.SetDefinition(next)
}

func (k *Kitoken) Definition() *Definition { return k.def }
func (k *Kitoken) Config() Config          { return k.def.Config }

// ToBytes serializes the current definition.
func (k *Kitoken) ToBytes() []byte { return k.def.ToBytes() }

// Encode tokenizes text: normalize, split into segments (extracting
// special spans first when encodeSpecials is set), encode each
// non-special segment with the configured mode, and apply bos/eos
// templates.
func (k *Kitoken) Encode(text string, encodeSpecials bool) ([]uint32, error) {
	normalized, err := k.norm.Normalize(text)
	if err != nil {
		return nil, err
	}

	segments, err := k.split.Split(normalized, encodeSpecials)
	if err != nil {
		return nil, err
	}

	var ids []uint32
	if encodeSpecials && k.def.Config.Template.BOS && k.def.Config.Specials.Bos != nil {
		ids = append(ids, *k.def.Config.Specials.Bos)
	}

	for _, seg := range segments {
		if seg.IsSpecial {
			ids = append(ids, seg.SpecialID)
			continue
		}
		segIDs, err := k.encodeNonSpecial(seg.Bytes)
		if err != nil {
			return nil, err
		}
		ids = append(ids, segIDs...)
	}

	if encodeSpecials && k.def.Config.Template.EOS && k.def.Config.Specials.Eos != nil {
		ids = append(ids, *k.def.Config.Specials.Eos)
	}

	logutil.Trace("encoded", "text", text, "ids", ids)
	return ids, nil
}

func (k *Kitoken) encodeNonSpecial(seg []byte) ([]uint32, error) {
	if k.def.Config.Mode != ModeWordPiece {
		return k.engine.encodeSegment(seg)
	}

	var ids []uint32
	for _, word := range splitWords(string(seg)) {
		wordIDs, err := k.engine.encodeSegment([]byte(word))
		if err != nil {
			return nil, err
		}
		ids = append(ids, wordIDs...)
	}
	return ids, nil
}

// Decode maps token ids back to bytes.
func (k *Kitoken) Decode(ids []uint32, decodeSpecials bool) ([]byte, error) {
	pieces := make([][]byte, 0, len(ids))
	for _, id := range ids {
		if b, ok := k.vocab.bytes(id); ok {
			pieces = append(pieces, b)
			continue
		}
		if b, ok := k.specials.bytes(id); ok {
			if decodeSpecials {
				pieces = append(pieces, b)
			}
			continue
		}
		if k.def.Config.Fallback.Unknown == UnknownSkip {
			continue
		}
		return nil, &UnknownTokenIDError{ID: id}
	}

	out := k.decode.Decode(pieces)
	logutil.Trace("decoded", "ids", ids, "text", string(out))
	return out, nil
}

// EncodeAll maps Encode over texts, stopping at the first error. It keeps
// no working state beyond each Encode call, so it is as safe for
// concurrent use as Encode.
func (k *Kitoken) EncodeAll(texts []string, encodeSpecials bool) ([][]uint32, error) {
	out := make([][]uint32, len(texts))
	for i, t := range texts {
		ids, err := k.Encode(t, encodeSpecials)
		if err != nil {
			return nil, err
		}
		out[i] = ids
	}
	return out, nil
}

// DecodeAll maps Decode over id sequences.
func (k *Kitoken) DecodeAll(idss [][]uint32, decodeSpecials bool) ([][]byte, error) {
	out := make([][]byte, len(idss))
	for i, ids := range idss {
		b, err := k.Decode(ids, decodeSpecials)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// DecodeString is a convenience wrapper validating the decoded bytes as
// UTF-8, returning *InvalidUTF8Error if they are not.
func (k *Kitoken) DecodeString(ids []uint32, decodeSpecials bool) (string, error) {
	b, err := k.Decode(ids, decodeSpecials)
	if err != nil {
		return "", err
	}
	if offset, ok := firstInvalidUTF8Offset(b); ok {
		return "", &InvalidUTF8Error{ByteOffset: offset}
	}
	return string(b), nil
}

// firstInvalidUTF8Offset reports the byte offset of the first malformed
// UTF-8 sequence in b, if any.
func firstInvalidUTF8Offset(b []byte) (int, bool) {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i, true
		}
		i += size
	}
	return 0, false
}
