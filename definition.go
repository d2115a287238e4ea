package kitoken

import (
	"reflect"
	"unicode/utf8"
)

// VocabEntry is one (bytes, id) pair of the vocabulary or specials list.
// Order within the owning slice carries merge/split priority: lower index
// is higher priority.
type VocabEntry struct {
	Bytes []byte
	ID    uint32
}

// Metadata records provenance and lossy-conversion warnings for a
// Definition produced by a format converter. It is informational only:
// nothing in the encoding or decoding path reads it.
type Metadata struct {
	// Source names the converter that produced the Definition, e.g.
	// "sentencepiece" or "tokenizers". Empty for a Definition built by
	// hand or round-tripped through ToBytes/DefinitionFromBytes.
	Source string
	// Warnings lists features present in the source model that could not
	// be faithfully represented and were dropped during conversion.
	Warnings []string
}

// AddWarning appends a dropped-feature note to m.Warnings.
func (m *Metadata) AddWarning(warning string) {
	m.Warnings = append(m.Warnings, warning)
}

// Definition is the persistent model: vocabulary, specials, optional
// per-piece scores, and the configuration governing the pipeline. It
// carries no derived indexes — those are owned by Kitoken, rebuilt
// wholesale whenever a Definition is installed.
type Definition struct {
	Vocab    []VocabEntry
	Specials []VocabEntry
	Scores   []float32 // one per vocab entry; required for ModeUnigram, optional otherwise
	Config   Config
	Metadata Metadata
}

// NewDefinition validates the vocabulary, specials, scores and config
// invariants and returns an *InvalidDefinitionError describing the first
// violation found.
func NewDefinition(vocab, specials []VocabEntry, scores []float32, config Config) (*Definition, error) {
	d := &Definition{Vocab: vocab, Specials: specials, Scores: scores, Config: config}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate re-checks every invariant NewDefinition enforces; Kitoken calls
// this again after Config replacement so a failed SetConfig cannot leave a
// partially-applied state.
func (d *Definition) Validate() error {
	if len(d.Vocab) == 0 {
		return &InvalidDefinitionError{Reason: "vocabulary is empty"}
	}
	if d.Config.Mode == ModeUnigram && len(d.Scores) != len(d.Vocab) {
		return &InvalidDefinitionError{Reason: "scores length does not match vocabulary length"}
	}
	if d.Config.Mode != ModeUnigram && d.Scores != nil && len(d.Scores) != len(d.Vocab) {
		return &InvalidDefinitionError{Reason: "scores length does not match vocabulary length"}
	}

	seenIDs := make(map[uint32]struct{}, len(d.Vocab)+len(d.Specials))
	seenBytes := make(map[string]struct{}, len(d.Vocab)+len(d.Specials))
	for _, e := range d.Vocab {
		if _, ok := seenIDs[e.ID]; ok {
			return &InvalidDefinitionError{Reason: "duplicate vocabulary id"}
		}
		seenIDs[e.ID] = struct{}{}
		key := string(e.Bytes)
		if _, ok := seenBytes[key]; ok {
			return &InvalidDefinitionError{Reason: "duplicate vocabulary bytes"}
		}
		seenBytes[key] = struct{}{}
	}
	for _, e := range d.Specials {
		if !utf8.Valid(e.Bytes) {
			return &InvalidDefinitionError{Reason: "special token bytes are not valid utf-8"}
		}
		key := string(e.Bytes)
		if _, ok := seenBytes[key]; ok {
			return &InvalidDefinitionError{Reason: "special token bytes collide with vocabulary or another special"}
		}
		seenBytes[key] = struct{}{}
	}

	allIDs := make(map[uint32]struct{}, len(d.Vocab)+len(d.Specials))
	for _, e := range d.Vocab {
		allIDs[e.ID] = struct{}{}
	}
	for _, e := range d.Specials {
		allIDs[e.ID] = struct{}{}
	}
	for _, ref := range []*uint32{
		d.Config.Specials.Unk, d.Config.Specials.Pad, d.Config.Specials.Bos,
		d.Config.Specials.Eos, d.Config.Specials.Sep, d.Config.Specials.Mask,
	} {
		if ref == nil {
			continue
		}
		if _, ok := allIDs[*ref]; !ok {
			return &InvalidDefinitionError{Reason: "config references a special id absent from vocabulary and specials"}
		}
	}
	return d.Config.Validate()
}

// Equal compares two definitions by content, not pointer identity.
func (d *Definition) Equal(other *Definition) bool {
	if d == nil || other == nil {
		return d == other
	}
	if len(d.Vocab) != len(other.Vocab) || len(d.Specials) != len(other.Specials) || len(d.Scores) != len(other.Scores) {
		return false
	}
	for i := range d.Vocab {
		if d.Vocab[i].ID != other.Vocab[i].ID || string(d.Vocab[i].Bytes) != string(other.Vocab[i].Bytes) {
			return false
		}
	}
	for i := range d.Specials {
		if d.Specials[i].ID != other.Specials[i].ID || string(d.Specials[i].Bytes) != string(other.Specials[i].Bytes) {
			return false
		}
	}
	for i := range d.Scores {
		if d.Scores[i] != other.Scores[i] {
			return false
		}
	}
	return reflect.DeepEqual(d.Config, other.Config)
}
