package convert

// tiktokenCatalogEntry names the split pattern and special tokens for one
// of the small, fixed family of tiktoken vocabularies in public use,
// matched on vocabulary size since tiktoken files carry no metadata of
// their own.
type tiktokenCatalogEntry struct {
	pattern  string
	specials []string
}

const (
	gpt2Pattern  = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`
	gpt4Pattern  = `(?i:'s|'t|'re|'ve|'m|'ll|'d)|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`
	gpt4oPattern = `[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n/]*|\s*[\r\n]+|\s+(?!\S)|\s+`
)

var tiktokenCatalog = map[int]tiktokenCatalogEntry{
	50257:  {pattern: gpt2Pattern, specials: []string{"<|endoftext|>"}},
	50258:  {pattern: gpt2Pattern, specials: []string{"<|endoftext|>", "<|startoftext|>"}},
	100256: {pattern: gpt4Pattern, specials: []string{"<|endoftext|>"}},
	100261: {
		pattern: gpt4Pattern,
		specials: []string{
			"<|endoftext|>", "<|fim_prefix|>", "<|fim_middle|>", "<|fim_suffix|>", "<|endofprompt|>",
		},
	},
	199998: {pattern: gpt4oPattern, specials: []string{"<|endoftext|>"}},
	200000: {
		pattern: gpt4oPattern,
		specials: []string{
			"<|endoftext|>", "<|endofprompt|>",
		},
	},
}

var defaultTiktokenEntry = tiktokenCatalogEntry{
	pattern:  gpt2Pattern,
	specials: []string{"<|endoftext|>"},
}

// lookupTiktokenCatalog returns the family whose listed size equals
// vocabSize (the count of non-special entries actually parsed); failing
// that, a family whose listed size is at most 16 below vocabSize — real
// files often carry a handful of reserved ids past the listed sizes —
// and otherwise the permissive default.
func lookupTiktokenCatalog(vocabSize int) tiktokenCatalogEntry {
	if e, ok := tiktokenCatalog[vocabSize]; ok {
		return e
	}
	for size, e := range tiktokenCatalog {
		if vocabSize >= size && vocabSize <= size+16 {
			return e
		}
	}
	return defaultTiktokenEntry
}
