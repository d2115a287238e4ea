package kitoken

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
	"github.com/rivo/uniseg"
)

// Segment is a maximal pre-tokenized run handed to the encoding engine as
// one unit; IsSpecial marks a span that matched a special token verbatim.
type Segment struct {
	Bytes     []byte
	IsSpecial bool
	SpecialID uint32
}

// splitter performs special-token extraction first, then regex and/or
// boundary-kind splitting of the remaining runs.
type splitter struct {
	cfg SplitConfig

	specialIDs map[string]uint32
	automaton  *ahocorasick.AhoCorasick

	pattern *regexp2.Regexp
}

func newSplitter(cfg SplitConfig, specials []VocabEntry) (*splitter, error) {
	s := &splitter{cfg: cfg, specialIDs: make(map[string]uint32, len(specials))}

	patterns := make([]string, 0, len(specials))
	for _, e := range specials {
		key := string(e.Bytes)
		if _, ok := s.specialIDs[key]; ok {
			continue
		}
		s.specialIDs[key] = e.ID
		patterns = append(patterns, key)
	}
	// Longer specials win on a tied start position; LeftMostLongestMatch
	// already prefers the longest overlapping match, but sorting keeps
	// the automaton's internal state construction deterministic.
	sort.Slice(patterns, func(i, j int) bool { return len(patterns[i]) > len(patterns[j]) })
	if len(patterns) > 0 {
		builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
			AsciiCaseInsensitive: false,
			MatchOnlyWholeWords: false,
			MatchKind:           ahocorasick.LeftMostLongestMatch,
			DFA:                 true,
		})
		ac := builder.Build(patterns)
		s.automaton = &ac
	}

	if cfg.Pattern != "" {
		re, err := regexp2.Compile(cfg.Pattern, regexp2.Unicode)
		if err != nil {
			return nil, &InvalidDefinitionError{Reason: "invalid split pattern: " + err.Error()}
		}
		re.MatchTimeout = 0
		s.pattern = re
	}

	return s, nil
}

// Split produces the ordered Segment list for one normalized input. When
// encodeSpecials is false, special bytes are left embedded in ordinary
// segments and tokenized like any other text.
func (s *splitter) Split(input string, encodeSpecials bool) ([]Segment, error) {
	var segments []Segment

	if encodeSpecials && s.automaton != nil {
		data := []byte(input)
		matches := s.automaton.FindAll(input)
		last := 0
		for _, m := range matches {
			start, end := m.Start(), m.End()
			if start < last {
				continue // overlapping match already covered
			}
			if start > last {
				segments = append(segments, s.splitPlain(data[last:start])...)
			}
			id := s.specialIDs[string(data[start:end])]
			segments = append(segments, Segment{Bytes: data[start:end], IsSpecial: true, SpecialID: id})
			last = end
		}
		if last < len(data) {
			segments = append(segments, s.splitPlain(data[last:])...)
		}
		return segments, nil
	}

	return s.splitPlain([]byte(input)), nil
}

func (s *splitter) splitPlain(data []byte) []Segment {
	if len(data) == 0 {
		return nil
	}

	var spans [][2]int
	if s.pattern != nil {
		spans = s.regexSpans(string(data))
	} else {
		spans = [][2]int{{0, len(data)}}
	}

	for _, kind := range s.cfg.Kinds {
		spans = refineSpans(data, spans, kind)
	}

	segments := make([]Segment, 0, len(spans))
	for _, sp := range spans {
		if sp[0] >= sp[1] {
			continue
		}
		segments = append(segments, Segment{Bytes: data[sp[0]:sp[1]]})
	}
	return segments
}

func (s *splitter) regexSpans(text string) [][2]int {
	var spans [][2]int
	m, _ := s.pattern.FindStringMatch(text)
	last := 0
	for m != nil {
		start, length := m.Index, m.Length
		if start > last {
			spans = append(spans, [2]int{last, start})
		}
		spans = append(spans, [2]int{start, start + length})
		last = start + length
		m, _ = s.pattern.FindNextMatch(m)
	}
	if last < len(text) {
		spans = append(spans, [2]int{last, len(text)})
	}
	return spans
}

// refineSpans further splits each span on the given boundary kind: each
// pass refines the previous pass's spans rather than operating on the
// whole input independently.
func refineSpans(data []byte, spans [][2]int, kind SplitKind) [][2]int {
	var out [][2]int
	for _, sp := range spans {
		out = append(out, splitSpan(data, sp[0], sp[1], kind)...)
	}
	return out
}

// splitSpan walks [start,end) one grapheme cluster at a time — via
// rivo/uniseg, so combining marks stay attached to their base rune rather
// than each being classified independently — and cuts a boundary wherever
// the classification changes.
func splitSpan(data []byte, start, end int, kind SplitKind) [][2]int {
	var spans [][2]int
	segStart := start
	prevClass := -1
	prevScript := ""

	text := string(data[start:end])
	state := -1
	i := start
	for len(text) > 0 {
		var cluster string
		cluster, text, _, state = uniseg.FirstGraphemeClusterInString(text, state)
		r, _ := utf8.DecodeRuneInString(cluster)

		var class int
		var script string
		switch kind {
		case SplitWhitespace:
			class = boolClass(unicode.IsSpace(r))
		case SplitDigit:
			class = boolClass(unicode.IsDigit(r))
		case SplitPunctuation:
			class = boolClass(unicode.IsPunct(r) || unicode.IsSymbol(r))
		case SplitScript:
			script = runeScriptName(r)
		}

		if kind == SplitScript {
			if prevScript != "" && script != prevScript && script != "Common" && script != "Inherited" {
				if i > segStart {
					spans = append(spans, [2]int{segStart, i})
				}
				segStart = i
			}
			if script != "Common" && script != "Inherited" {
				prevScript = script
			} else if prevScript == "" {
				prevScript = script
			}
		} else {
			if prevClass != -1 && class != prevClass {
				if i > segStart {
					spans = append(spans, [2]int{segStart, i})
				}
				segStart = i
			}
			prevClass = class
		}
		i += len(cluster)
	}
	if segStart < end {
		spans = append(spans, [2]int{segStart, end})
	}

	if kind == SplitWhitespace {
		return dropWhitespaceOnlySpans(data, spans)
	}
	return spans
}

func dropWhitespaceOnlySpans(data []byte, spans [][2]int) [][2]int {
	out := spans[:0:0]
	for _, sp := range spans {
		allSpace := true
		for i := sp[0]; i < sp[1]; i++ {
			if data[i] != ' ' && data[i] != '\t' && data[i] != '\n' && data[i] != '\r' {
				allSpace = false
				break
			}
		}
		if !allSpace {
			out = append(out, sp)
		}
	}
	return out
}

func boolClass(b bool) int {
	if b {
		return 1
	}
	return 0
}

func runeScriptName(r rune) string {
	for name, table := range unicode.Scripts {
		if unicode.Is(table, r) {
			return name
		}
	}
	return "Common"
}
