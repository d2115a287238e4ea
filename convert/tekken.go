package convert

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	kitoken "github.com/Systemcluster/kitoken"
)

func init() {
	kitoken.RegisterFormat("tekken", FromTekken)
}

// tekkenSpecial names one of the fixed Mistral/NeMo "v3" special tokens;
// unlike Tiktoken's catalog these aren't inferred from vocab size, they're
// a fixed list the tekken format itself assumes.
type tekkenSpecial struct {
	bytes string
	unk   bool
}

var tekkenBaseSpecials = []tekkenSpecial{
	{bytes: "<unk>", unk: true},
	{bytes: "<s>"},
	{bytes: "</s>"},
	{bytes: "[INST]"},
	{bytes: "[/INST]"},
	{bytes: "[AVAILABLE_TOOLS]"},
	{bytes: "[/AVAILABLE_TOOLS]"},
	{bytes: "[TOOL_RESULTS]"},
	{bytes: "[/TOOL_RESULTS]"},
	{bytes: "[TOOL_CALLS]"},
	{bytes: "<pad>"},
	{bytes: "[PREFIX]"},
	{bytes: "[MIDDLE]"},
	{bytes: "[SUFFIX]"},
}

type tekkenDoc struct {
	Config struct {
		Pattern                 string `json:"pattern"`
		DefaultVocabSize        *int   `json:"default_vocab_size"`
		DefaultNumSpecialTokens *int   `json:"default_num_special_tokens"`
		Version                 string `json:"version"`
	} `json:"config"`
	Vocab []struct {
		Rank      int    `json:"rank"`
		TokenB64  string `json:"token_bytes"`
		TokenStr  string `json:"token_str"`
	} `json:"vocab"`
}

// FromTekken parses a tekken.json document: like Tiktoken, but the split
// regex is read from the file's config.pattern rather than inferred. The
// specials are the fixed tekkenBaseSpecials list, cut or padded with
// <SPECIAL_n> placeholders to config.default_num_special_tokens; a
// special_tokens array in the file is not read.
func FromTekken(data []byte) (*kitoken.Definition, error) {
	var doc tekkenDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &kitoken.ConversionError{SourceFormat: "tekken", Reason: "malformed json: " + err.Error()}
	}
	if doc.Config.Version != "" && doc.Config.Version != "v3" {
		return nil, &kitoken.ConversionError{SourceFormat: "tekken", Reason: fmt.Sprintf("unsupported version %q", doc.Config.Version)}
	}
	if doc.Config.Pattern == "" || len(doc.Vocab) == 0 {
		return nil, &kitoken.ConversionError{SourceFormat: "tekken", Reason: "missing config.pattern or vocab"}
	}

	specialsLen := len(tekkenBaseSpecials)
	if doc.Config.DefaultNumSpecialTokens != nil {
		specialsLen = *doc.Config.DefaultNumSpecialTokens
	}
	vocabLen := len(doc.Vocab)
	if doc.Config.DefaultVocabSize != nil {
		vocabLen = *doc.Config.DefaultVocabSize
	}
	if vocabLen > len(doc.Vocab)+specialsLen {
		return nil, &kitoken.ConversionError{SourceFormat: "tekken", Reason: "too many tokens declared for vocab+specials"}
	}

	specials := make([]kitoken.VocabEntry, 0, specialsLen)
	var unkID uint32
	for i, s := range tekkenBaseSpecials {
		if i >= specialsLen {
			break
		}
		specials = append(specials, kitoken.VocabEntry{Bytes: []byte(s.bytes), ID: uint32(i)})
		if s.unk {
			unkID = uint32(i)
		}
	}
	for i := len(specials); i < specialsLen; i++ {
		specials = append(specials, kitoken.VocabEntry{Bytes: []byte(fmt.Sprintf("<SPECIAL_%d>", i)), ID: uint32(i)})
	}

	// Tokens beyond the declared vocab size are discarded, matching
	// tekken's own loader behavior.
	vocabTokenCount := vocabLen - len(specials)
	if vocabTokenCount > len(doc.Vocab) {
		vocabTokenCount = len(doc.Vocab)
	}
	if vocabTokenCount < 0 {
		vocabTokenCount = 0
	}
	entries := make([]kitoken.VocabEntry, 0, vocabTokenCount)
	for _, t := range doc.Vocab[:vocabTokenCount] {
		raw, err := base64.StdEncoding.DecodeString(t.TokenB64)
		if err != nil {
			return nil, &kitoken.ConversionError{SourceFormat: "tekken", Reason: "invalid base64 token: " + err.Error()}
		}
		entries = append(entries, kitoken.VocabEntry{Bytes: raw, ID: uint32(t.Rank) + uint32(len(specials))})
	}

	cfg := kitoken.DefaultConfig(kitoken.ModeBytePair)
	cfg.BytePair.CharMode = false
	cfg.Split.Pattern = doc.Config.Pattern
	cfg.Fallback.Unknown = kitoken.UnknownEmitUnk
	cfg.Specials.Unk = &unkID
	bos, eos := uint32(1), uint32(2)
	if len(specials) > 2 {
		cfg.Specials.Bos = &bos
		cfg.Specials.Eos = &eos
	}
	cfg.Template = kitoken.Template{BOS: true, EOS: true}

	def, err := kitoken.NewDefinition(entries, specials, nil, cfg)
	if err != nil {
		return nil, err
	}
	def.Metadata.Source = "tekken"
	return def, nil
}
