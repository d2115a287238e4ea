// Package convert reads foreign tokenizer representations — HuggingFace
// tokenizer.json, SentencePiece model protobufs, tiktoken rank files, and
// Mistral's tekken format — and produces a portable *kitoken.Definition
// for each.
package convert

import (
	"encoding/json"
	"fmt"
	"sort"

	kitoken "github.com/Systemcluster/kitoken"
	"github.com/Systemcluster/kitoken/internal/logutil"
)

func init() {
	kitoken.RegisterFormat("tokenizers", FromTokenizers)
}

type hfTokenizer struct {
	Model struct {
		Type       string          `json:"type"`
		Vocab      map[string]int  `json:"vocab"`
		Merges     json.RawMessage `json:"merges"`
		UnkToken   *string         `json:"unk_token"`
		ContinuingSubwordPrefix *string `json:"continuing_subword_prefix"`
		MaxInputCharsPerWord    *int    `json:"max_input_chars_per_word"`
	} `json:"model"`
	Normalizer   json.RawMessage `json:"normalizer"`
	PreTokenizer json.RawMessage `json:"pre_tokenizer"`
	Decoder      json.RawMessage `json:"decoder"`
	AddedTokens  []struct {
		ID      uint32 `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

type namedStep struct {
	Type string `json:"type"`
}

// FromTokenizers parses a HuggingFace tokenizer.json document.
func FromTokenizers(data []byte) (*kitoken.Definition, error) {
	var doc hfTokenizer
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &kitoken.ConversionError{SourceFormat: "tokenizers", Reason: "malformed json: " + err.Error()}
	}
	if doc.Model.Vocab == nil {
		return nil, &kitoken.ConversionError{SourceFormat: "tokenizers", Reason: "missing model.vocab"}
	}

	var mode kitoken.Mode
	switch doc.Model.Type {
	case "BPE":
		mode = kitoken.ModeBytePair
	case "Unigram":
		mode = kitoken.ModeUnigram
	case "WordPiece":
		mode = kitoken.ModeWordPiece
	default:
		return nil, &kitoken.ConversionError{SourceFormat: "tokenizers", Reason: fmt.Sprintf("unsupported model type %q", doc.Model.Type)}
	}

	entries := make([]kitoken.VocabEntry, 0, len(doc.Model.Vocab))
	for piece, id := range doc.Model.Vocab {
		entries = append(entries, kitoken.VocabEntry{Bytes: []byte(piece), ID: uint32(id)})
	}

	byteLevel := detectByteLevel(doc.PreTokenizer) || detectByteLevel(doc.Decoder)
	if byteLevel {
		entries = applyByteLevelInverse(entries)
	}

	if mode == kitoken.ModeBytePair {
		merges, err := parseMerges(doc.Model.Merges)
		if err != nil {
			return nil, err
		}
		entries = sortByMergeList(entries, merges)
	} else {
		sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	}

	cfg := kitoken.DefaultConfig(mode)
	if mode == kitoken.ModeWordPiece {
		if doc.Model.ContinuingSubwordPrefix != nil {
			cfg.WordPiece.ContinuingPrefix = *doc.Model.ContinuingSubwordPrefix
		}
		if doc.Model.MaxInputCharsPerWord != nil {
			cfg.WordPiece.MaxWordLen = *doc.Model.MaxInputCharsPerWord
		}
	}
	cfg.Decoding.ByteLevel = byteLevel
	if doc.Model.UnkToken != nil {
		for _, e := range entries {
			if string(e.Bytes) == *doc.Model.UnkToken {
				id := e.ID
				cfg.Specials.Unk = &id
				break
			}
		}
	}
	var warnings []string
	applyNormalizerConfig(doc.Normalizer, &cfg, &warnings)
	applySplitConfig(doc.PreTokenizer, &cfg, &warnings)

	specials := make([]kitoken.VocabEntry, 0, len(doc.AddedTokens))
	for _, a := range doc.AddedTokens {
		if a.Special {
			specials = append(specials, kitoken.VocabEntry{Bytes: []byte(a.Content), ID: a.ID})
			assignRoleSpecial(a.Content, a.ID, &cfg.Specials)
		}
	}

	def, err := kitoken.NewDefinition(entries, specials, nil, cfg)
	if err != nil {
		return nil, err
	}
	def.Metadata.Source = "tokenizers"
	def.Metadata.Warnings = warnings
	return def, nil
}

// parseMerges normalizes the two shapes tokenizer.json's model.merges
// takes across format versions: a "left right" string per entry, or a
// [left, right] string pair.
func parseMerges(raw json.RawMessage) ([][2]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		merges := make([][2]string, 0, len(asStrings))
		for _, m := range asStrings {
			for i := 0; i < len(m); i++ {
				if m[i] == ' ' {
					merges = append(merges, [2]string{m[:i], m[i+1:]})
					break
				}
			}
		}
		return merges, nil
	}
	var asPairs [][2]string
	if err := json.Unmarshal(raw, &asPairs); err == nil {
		return asPairs, nil
	}
	return nil, &kitoken.ConversionError{SourceFormat: "tokenizers", Reason: "unrecognized merges shape"}
}

func sortByMergeList(entries []kitoken.VocabEntry, merges [][2]string) []kitoken.VocabEntry {
	priority := make(map[string]int, len(merges))
	for i, m := range merges {
		priority[m[0]+m[1]] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		pi, oki := priority[string(entries[i].Bytes)]
		pj, okj := priority[string(entries[j].Bytes)]
		switch {
		case oki && okj:
			return pi < pj
		case oki:
			return true
		case okj:
			return false
		default:
			return entries[i].ID < entries[j].ID
		}
	})
	return entries
}

// assignRoleSpecial maps a tokenizer.json added_tokens entry's conventional
// name to one of Specials' named roles, per the BERT/RoBERTa/GPT-2 naming
// conventions the HuggingFace ecosystem standardized on.
func assignRoleSpecial(content string, id uint32, s *kitoken.Specials) {
	switch content {
	case "[PAD]", "<pad>":
		s.Pad = idPtr(id)
	case "[SEP]", "</s>":
		s.Sep = idPtr(id)
	case "[MASK]", "<mask>":
		s.Mask = idPtr(id)
	case "[CLS]", "<s>", "<bos>":
		s.Bos = idPtr(id)
	case "[UNK]", "<unk>":
		s.Unk = idPtr(id)
	case "<eos>":
		s.Eos = idPtr(id)
	}
}

func idPtr(id uint32) *uint32 { return &id }

func detectByteLevel(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var single namedStep
	if json.Unmarshal(raw, &single) == nil && single.Type == "ByteLevel" {
		return true
	}
	var seq struct {
		Type      string      `json:"type"`
		PreTokenizers []namedStep `json:"pretokenizers"`
	}
	if json.Unmarshal(raw, &seq) == nil {
		for _, s := range seq.PreTokenizers {
			if s.Type == "ByteLevel" {
				return true
			}
		}
	}
	return false
}

func applyByteLevelInverse(entries []kitoken.VocabEntry) []kitoken.VocabEntry {
	out := make([]kitoken.VocabEntry, len(entries))
	for i, e := range entries {
		out[i] = kitoken.VocabEntry{ID: e.ID, Bytes: kitoken.DecodeByteLevel(string(e.Bytes))}
	}
	return out
}

// applyNormalizerConfig translates a tokenizer.json normalizer (a single
// named step or a Sequence of them) onto the flat normalization config.
// A step type with no equivalent is dropped rather than failing the whole
// conversion: it is logged at trace level and recorded in *warnings so
// callers can surface it via the returned Definition's Metadata.
func applyNormalizerConfig(raw json.RawMessage, cfg *kitoken.Config, warnings *[]string) {
	if len(raw) == 0 {
		return
	}
	var steps []namedStep
	var single namedStep
	if json.Unmarshal(raw, &single) == nil && single.Type != "" {
		steps = []namedStep{single}
	} else {
		var seq struct {
			Normalizers []namedStep `json:"normalizers"`
		}
		if json.Unmarshal(raw, &seq) == nil {
			steps = seq.Normalizers
		}
	}
	for _, s := range steps {
		switch s.Type {
		case "NFC":
			cfg.Normalization.Scheme = kitoken.UnicodeNFC
		case "NFD":
			cfg.Normalization.Scheme = kitoken.UnicodeNFD
		case "NFKC":
			cfg.Normalization.Scheme = kitoken.UnicodeNFKC
		case "NFKD":
			cfg.Normalization.Scheme = kitoken.UnicodeNFKD
		case "Lowercase":
			cfg.Normalization.CaseFold = kitoken.CaseLower
		case "StripAccents":
			cfg.Normalization.StripAccents = true
		default:
			warning := fmt.Sprintf("normalizer step %q has no equivalent and was dropped", s.Type)
			logutil.Trace("dropping unsupported normalizer step", "type", s.Type)
			*warnings = append(*warnings, warning)
		}
	}
}

// applySplitConfig translates a tokenizer.json pre_tokenizer (a single
// named step or a Sequence of them) onto cfg.Split. Step types without a
// case below, UnicodeScripts among them, are dropped with a warning the
// same way applyNormalizerConfig drops unsupported normalizer steps.
func applySplitConfig(raw json.RawMessage, cfg *kitoken.Config, warnings *[]string) {
	if len(raw) == 0 {
		return
	}
	var single struct {
		Type    string `json:"type"`
		Pattern struct {
			String string `json:"String"`
			Regex  string `json:"Regex"`
		} `json:"pattern"`
	}
	if json.Unmarshal(raw, &single) == nil && single.Type != "" {
		switch single.Type {
		case "Split":
			if single.Pattern.Regex != "" {
				cfg.Split.Pattern = single.Pattern.Regex
			}
		case "Whitespace":
			cfg.Split.Kinds = append(cfg.Split.Kinds, kitoken.SplitWhitespace)
		case "WhitespaceSplit":
			cfg.Split.Kinds = append(cfg.Split.Kinds, kitoken.SplitWhitespace)
		case "Digits":
			cfg.Split.Kinds = append(cfg.Split.Kinds, kitoken.SplitDigit)
		case "Punctuation":
			cfg.Split.Kinds = append(cfg.Split.Kinds, kitoken.SplitPunctuation)
		case "ByteLevel", "Sequence":
			// handled elsewhere (byte-level detection) or recursed into below
		default:
			warning := fmt.Sprintf("pre-tokenizer %q has no equivalent and was dropped", single.Type)
			logutil.Trace("dropping unsupported pre-tokenizer", "type", single.Type)
			*warnings = append(*warnings, warning)
		}
		if single.Type != "Sequence" {
			return
		}
	}
	var seq struct {
		PreTokenizers []json.RawMessage `json:"pretokenizers"`
	}
	if json.Unmarshal(raw, &seq) == nil {
		for _, step := range seq.PreTokenizers {
			applySplitConfig(step, cfg, warnings)
		}
	}
}
