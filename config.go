package kitoken

// Mode selects the encoding algorithm a Definition's vocabulary is
// interpreted under.
type Mode int

const (
	ModeBytePair Mode = iota
	ModeCharPair
	ModeUnigram
	ModeWordPiece
)

func (m Mode) String() string {
	switch m {
	case ModeBytePair:
		return "BytePair"
	case ModeCharPair:
		return "CharPair"
	case ModeUnigram:
		return "Unigram"
	case ModeWordPiece:
		return "WordPiece"
	default:
		return "Unknown"
	}
}

// UnicodeScheme selects a normalization form applied during stage 2 of the
// normalizer pipeline.
type UnicodeScheme int

const (
	UnicodeNone UnicodeScheme = iota
	UnicodeNFC
	UnicodeNFD
	UnicodeNFKC
	UnicodeNFKD
)

// CaseFold selects the case-folding behavior applied during stage 3.
type CaseFold int

const (
	CaseNone CaseFold = iota
	CaseLower
	CaseUpper
)

// PrependScheme governs when the escape-whitespace byte is injected ahead
// of input during whitespace normalization.
type PrependScheme int

const (
	PrependNever PrependScheme = iota
	PrependFirst
	PrependAlways
)

// UnknownPolicy governs what the encoder does when a piece cannot be
// covered by the vocabulary and byte-fallback (if enabled) does not apply.
type UnknownPolicy int

const (
	UnknownError UnknownPolicy = iota
	UnknownEmitUnk
	UnknownSkip
	// UnknownBytes merges the unencodable piece starting from individual
	// bytes via the vocabulary's byte tokens, independently of
	// FallbackConfig.ByteFallback (which applies the same mechanism
	// unconditionally ahead of this policy check).
	UnknownBytes
)

// ReplacementRule is one entry of an ordered find/replace pass.
type ReplacementRule struct {
	From string
	To   string
}

// BytePairConfig parameterizes ModeBytePair.
type BytePairConfig struct {
	// CharMode treats merge boundaries as UTF-8 character starts rather
	// than raw bytes; set by the SentencePiece BPE converter. The
	// Tokenizers, Tiktoken and Tekken converters leave it false.
	CharMode bool
	// FallbackThreshold is the segment length above which the heap-based
	// fallback merge path is used instead of the linear-scan fast path.
	// Zero means use the default (128).
	FallbackThreshold int
}

// WordPieceConfig parameterizes ModeWordPiece.
type WordPieceConfig struct {
	ContinuingPrefix string
	MaxWordLen       int
}

// SplitKind enumerates the non-regex splitting criteria applicable to
// non-special segments when no split regex is configured, or layered
// after it when both are present.
type SplitKind int

const (
	SplitScript SplitKind = iota
	SplitWhitespace
	SplitDigit
	SplitPunctuation
)

// SplitConfig governs pre-tokenization segmentation of non-special runs.
type SplitConfig struct {
	// Pattern, if non-empty, is a regex applied before any of Kinds.
	Pattern string
	// Kinds lists additional boundary splits applied, each refining the
	// spans produced by the previous one, in slice order. Used both when
	// Pattern is empty and layered after it when both are present.
	Kinds []SplitKind
}

// NormalizationConfig governs the 6-stage normalizer pipeline.
type NormalizationConfig struct {
	Scheme             UnicodeScheme
	CaseFold           CaseFold
	StripAccents       bool
	StripControls      bool
	CollapseWhitespace bool
	EscapeWhitespace   string
	PrependScheme      PrependScheme
	CharsMap           []byte // precompiled charsmap, SentencePiece format
	Replacements       []ReplacementRule
}

// DecodingConfig governs the decoder's inverse transforms.
type DecodingConfig struct {
	StripPrefix      string
	Replacements     []ReplacementRule
	ByteLevel        bool
	EscapeWhitespace string
}

// Template names fixed tokens prepended/appended around the final token
// list when encode_specials is requested.
type Template struct {
	BOS bool
	EOS bool
}

// Specials names the six role tokens a Definition's specials list may
// reference by id.
type Specials struct {
	Unk  *uint32
	Pad  *uint32
	Bos  *uint32
	Eos  *uint32
	Sep  *uint32
	Mask *uint32
}

// FallbackConfig governs recovery when a piece cannot be tokenized.
type FallbackConfig struct {
	ByteFallback bool
	Unknown      UnknownPolicy
}

// Config is the full, flat configuration object governing the pipeline.
// It is always replaced wholesale (never partially mutated) and
// revalidated on every replacement.
type Config struct {
	Mode Mode

	BytePair  BytePairConfig
	WordPiece WordPieceConfig

	Split         SplitConfig
	Normalization NormalizationConfig
	Decoding      DecodingConfig
	Template      Template
	Specials      Specials
	Fallback      FallbackConfig
}

// DefaultConfig returns a Config with conservative defaults for the given
// mode; callers typically override fields afterward rather than building a
// Config from a zero value directly.
func DefaultConfig(mode Mode) Config {
	cfg := Config{Mode: mode}
	switch mode {
	case ModeBytePair:
		cfg.BytePair = BytePairConfig{CharMode: false, FallbackThreshold: 128}
	case ModeCharPair:
		cfg.BytePair = BytePairConfig{CharMode: true, FallbackThreshold: 128}
	case ModeWordPiece:
		cfg.WordPiece = WordPieceConfig{ContinuingPrefix: "##", MaxWordLen: 100}
	}
	cfg.Fallback = FallbackConfig{ByteFallback: false, Unknown: UnknownError}
	return cfg
}

// Validate re-checks config-level invariants not expressible in the type
// system: a WordPiece MaxWordLen must not be negative (zero selects the
// encoder's default of 100), a BytePair fallback threshold must not be
// negative (zero selects the default of 128), and Specials ids (checked
// against a Definition) are cross-validated by Definition.Validate instead.
func (c *Config) Validate() error {
	if (c.Mode == ModeBytePair || c.Mode == ModeCharPair) && c.BytePair.FallbackThreshold < 0 {
		return &InvalidDefinitionError{Reason: "negative byte-pair fallback threshold"}
	}
	if c.Mode == ModeWordPiece && c.WordPiece.MaxWordLen < 0 {
		return &InvalidDefinitionError{Reason: "negative word-piece max word length"}
	}
	return nil
}

func (c BytePairConfig) fallbackThreshold() int {
	if c.FallbackThreshold <= 0 {
		return 128
	}
	return c.FallbackThreshold
}
