package convert

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"sort"
	"strconv"

	kitoken "github.com/Systemcluster/kitoken"
)

func init() {
	kitoken.RegisterFormat("tiktoken", FromTiktoken)
}

// FromTiktoken parses a tiktoken vocabulary file: one entry per line as
// `<base64-of-bytes> <decimal-id>`. The real BPE rank merge happens in
// kitoken's encoder; this converter only builds the vocabulary and infers
// the split pattern and special tokens from the catalog.
func FromTiktoken(data []byte) (*kitoken.Definition, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []kitoken.VocabEntry
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		sp := indexSpace(line)
		if sp < 0 {
			return nil, &kitoken.ConversionError{SourceFormat: "tiktoken", Reason: "malformed line: " + line}
		}
		raw, err := base64.StdEncoding.DecodeString(line[:sp])
		if err != nil {
			return nil, &kitoken.ConversionError{SourceFormat: "tiktoken", Reason: "invalid base64: " + err.Error()}
		}
		id, err := strconv.ParseUint(line[sp+1:], 10, 32)
		if err != nil {
			return nil, &kitoken.ConversionError{SourceFormat: "tiktoken", Reason: "invalid id: " + err.Error()}
		}
		entries = append(entries, kitoken.VocabEntry{Bytes: raw, ID: uint32(id)})
	}
	if err := scanner.Err(); err != nil {
		return nil, &kitoken.ConversionError{SourceFormat: "tiktoken", Reason: err.Error()}
	}
	if len(entries) == 0 {
		return nil, &kitoken.ConversionError{SourceFormat: "tiktoken", Reason: "empty vocabulary"}
	}

	// Sort by id: the resulting order is already the merge priority.
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	cfg := kitoken.DefaultConfig(kitoken.ModeBytePair)
	cfg.BytePair.CharMode = false
	cat := lookupTiktokenCatalog(len(entries))
	cfg.Split.Pattern = cat.pattern
	cfg.Decoding.ByteLevel = false

	var specials []kitoken.VocabEntry
	nextID := uint32(len(entries))
	for _, name := range cat.specials {
		specials = append(specials, kitoken.VocabEntry{Bytes: []byte(name), ID: nextID})
		nextID++
	}

	def, err := kitoken.NewDefinition(entries, specials, nil, cfg)
	if err != nil {
		return nil, err
	}
	def.Metadata.Source = "tiktoken"
	return def, nil
}

func indexSpace(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ' ' {
			return i
		}
	}
	return -1
}
