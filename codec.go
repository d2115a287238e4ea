package kitoken

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var magic = [4]byte{'K', 'T', 'K', '1'}

const formatVersion = 1

// ToBytes serializes the definition as a 4-byte magic, a one-byte version,
// a config blob, then varint-length-delimited vocab and specials entries,
// and optional fixed-width f32 scores.
func (d *Definition) ToBytes() []byte {
	var buf []byte
	buf = append(buf, magic[:]...)
	buf = append(buf, byte(formatVersion))

	configBlob := encodeConfig(d.Config)
	buf = protowire.AppendVarint(buf, uint64(len(configBlob)))
	buf = append(buf, configBlob...)

	buf = protowire.AppendVarint(buf, uint64(len(d.Vocab)))
	for _, e := range d.Vocab {
		buf = appendEntry(buf, e)
	}

	buf = protowire.AppendVarint(buf, uint64(len(d.Specials)))
	for _, e := range d.Specials {
		buf = appendEntry(buf, e)
	}

	if len(d.Scores) > 0 {
		buf = append(buf, 1)
		for _, s := range d.Scores {
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(s))
			buf = append(buf, tmp[:]...)
		}
	} else {
		buf = append(buf, 0)
	}

	return buf
}

func appendEntry(buf []byte, e VocabEntry) []byte {
	buf = protowire.AppendVarint(buf, uint64(e.ID))
	buf = protowire.AppendVarint(buf, uint64(len(e.Bytes)))
	buf = append(buf, e.Bytes...)
	return buf
}

// DefinitionFromBytes deserializes a Definition written by ToBytes,
// running the result through the same construction-time validation as any
// other source.
func DefinitionFromBytes(data []byte) (*Definition, error) {
	if len(data) < 5 || !bytes.Equal(data[:4], magic[:]) {
		return nil, &ConversionError{SourceFormat: "native", Reason: "magic mismatch"}
	}
	version := data[4]
	if version != formatVersion {
		return nil, &ConversionError{SourceFormat: "native", Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	rest := data[5:]

	configLen, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return nil, &ConversionError{SourceFormat: "native", Reason: "truncated config length"}
	}
	rest = rest[n:]
	if uint64(len(rest)) < configLen {
		return nil, &ConversionError{SourceFormat: "native", Reason: "truncated config blob"}
	}
	config, err := decodeConfig(rest[:configLen])
	if err != nil {
		return nil, err
	}
	rest = rest[configLen:]

	vocabCount, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return nil, &ConversionError{SourceFormat: "native", Reason: "truncated vocab count"}
	}
	rest = rest[n:]
	vocab, rest, err := consumeEntries(rest, vocabCount)
	if err != nil {
		return nil, err
	}

	specialsCount, n := protowire.ConsumeVarint(rest)
	if n < 0 {
		return nil, &ConversionError{SourceFormat: "native", Reason: "truncated specials count"}
	}
	rest = rest[n:]
	specials, rest, err := consumeEntries(rest, specialsCount)
	if err != nil {
		return nil, err
	}

	if len(rest) < 1 {
		return nil, &ConversionError{SourceFormat: "native", Reason: "truncated has-scores flag"}
	}
	hasScores := rest[0]
	rest = rest[1:]

	var scores []float32
	if hasScores == 1 {
		if uint64(len(rest)) < vocabCount*4 {
			return nil, &ConversionError{SourceFormat: "native", Reason: "truncated scores"}
		}
		scores = make([]float32, vocabCount)
		for i := range scores {
			scores[i] = math.Float32frombits(binary.LittleEndian.Uint32(rest[i*4 : i*4+4]))
		}
	}

	return NewDefinition(vocab, specials, scores, config)
}

func consumeEntries(data []byte, count uint64) ([]VocabEntry, []byte, error) {
	entries := make([]VocabEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		id, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, nil, &ConversionError{SourceFormat: "native", Reason: "truncated entry id"}
		}
		data = data[n:]
		length, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, nil, &ConversionError{SourceFormat: "native", Reason: "truncated entry length"}
		}
		data = data[n:]
		if uint64(len(data)) < length {
			return nil, nil, &ConversionError{SourceFormat: "native", Reason: "truncated entry bytes"}
		}
		b := make([]byte, length)
		copy(b, data[:length])
		data = data[length:]
		entries = append(entries, VocabEntry{Bytes: b, ID: uint32(id)})
	}
	return entries, data, nil
}

// DetectAndParse tries native magic first, then SentencePiece, Tokenizers,
// Tiktoken, and Tekken in that order. First success wins; intermediate
// errors are discarded and only the last attempted format's error is
// surfaced.
func DetectAndParse(data []byte) (*Definition, error) {
	if len(data) >= 4 && bytes.Equal(data[:4], magic[:]) {
		return DefinitionFromBytes(data)
	}

	type attempt struct {
		name string
		fn   func([]byte) (*Definition, error)
	}
	attempts := []attempt{
		{"sentencepiece", parseSentencePieceHook},
		{"tokenizers", parseTokenizersHook},
		{"tiktoken", parseTiktokenHook},
		{"tekken", parseTekkenHook},
	}

	var lastErr error
	for _, a := range attempts {
		if a.fn == nil {
			continue
		}
		def, err := a.fn(data)
		if err == nil {
			return def, nil
		}
		lastErr = err
	}
	return nil, &UnrecognizedFormatError{Cause: lastErr}
}

// The convert package registers its parsers here at init time so this
// package never imports convert directly (convert imports kitoken for
// Definition/VocabEntry, so the reverse would cycle).
var (
	parseSentencePieceHook func([]byte) (*Definition, error)
	parseTokenizersHook    func([]byte) (*Definition, error)
	parseTiktokenHook      func([]byte) (*Definition, error)
	parseTekkenHook        func([]byte) (*Definition, error)
)

// RegisterFormat installs a converter's parse function under name, used by
// convert's init() to wire itself into DetectAndParse without an import
// cycle.
func RegisterFormat(name string, fn func([]byte) (*Definition, error)) {
	switch name {
	case "sentencepiece":
		parseSentencePieceHook = fn
	case "tokenizers":
		parseTokenizersHook = fn
	case "tiktoken":
		parseTiktokenHook = fn
	case "tekken":
		parseTekkenHook = fn
	}
}
