package kitoken

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizer runs a fixed multi-stage pipeline over raw input text:
// charsmap replacement, Unicode normalization, case folding, accent and
// control stripping, find/replace, and whitespace handling. It is built
// once per Kitoken (from Config.Normalization) and is safe for concurrent
// use, holding no mutable state of its own.
type normalizer struct {
	cfg      NormalizationConfig
	charsMap *charsMap
	caser    cases.Caser
}

func newNormalizer(cfg NormalizationConfig) (*normalizer, error) {
	n := &normalizer{cfg: cfg}
	if len(cfg.CharsMap) > 0 {
		cm, err := parseCharsMap(cfg.CharsMap)
		if err != nil {
			return nil, &ConversionError{SourceFormat: "charsmap", Reason: err.Error()}
		}
		n.charsMap = cm
	}
	switch cfg.CaseFold {
	case CaseLower:
		n.caser = cases.Lower(language.Und)
	case CaseUpper:
		n.caser = cases.Upper(language.Und)
	}
	return n, nil
}

// Normalize applies every enabled stage in order and returns the
// transformed text. No byte-offset map back to the original input is
// produced: no caller in this core requests it.
func (n *normalizer) Normalize(input string) (string, error) {
	s := input

	if n.charsMap != nil {
		s = n.applyCharsMap(s)
	}

	switch n.cfg.Scheme {
	case UnicodeNFC:
		s = norm.NFC.String(s)
	case UnicodeNFD:
		s = norm.NFD.String(s)
	case UnicodeNFKC:
		s = norm.NFKC.String(s)
	case UnicodeNFKD:
		s = norm.NFKD.String(s)
	}

	if n.cfg.CaseFold != CaseNone {
		s = n.caser.String(s)
	}

	if n.cfg.StripAccents {
		s = stripAccents(s)
	}
	if n.cfg.StripControls {
		s = stripControls(s)
	}

	for _, r := range n.cfg.Replacements {
		s = strings.ReplaceAll(s, r.From, r.To)
	}

	s = n.applyWhitespacePolicy(s)

	return s, nil
}

func (n *normalizer) applyCharsMap(input string) string {
	var out strings.Builder
	out.Grow(len(input))
	for len(input) > 0 {
		matched, replacement, err := n.charsMap.longestPrefixReplacement(input)
		if err != nil || matched == 0 {
			r, size := decodeRuneOrByte(input)
			out.WriteString(r)
			input = input[size:]
			continue
		}
		out.WriteString(replacement)
		input = input[matched:]
	}
	return out.String()
}

func decodeRuneOrByte(s string) (string, int) {
	if s == "" {
		return "", 0
	}
	for i := 1; i <= len(s) && i <= 4; i++ {
		if isValidUTF8Prefix(s[:i]) {
			return s[:i], i
		}
	}
	return s[:1], 1
}

func isValidUTF8Prefix(s string) bool {
	r := []rune(s)
	return len(r) == 1 && r[0] != unicode.ReplacementChar
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func stripControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (n *normalizer) applyWhitespacePolicy(s string) string {
	if n.cfg.CollapseWhitespace {
		s = collapseWhitespace(s)
	}

	if n.cfg.EscapeWhitespace == "" {
		return s
	}

	switch n.cfg.PrependScheme {
	case PrependAlways:
		s = n.cfg.EscapeWhitespace + s
	case PrependFirst:
		if !strings.HasPrefix(s, " ") && !strings.HasPrefix(s, n.cfg.EscapeWhitespace) {
			s = n.cfg.EscapeWhitespace + s
		}
	}
	s = strings.ReplaceAll(s, " ", n.cfg.EscapeWhitespace)
	return s
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}
