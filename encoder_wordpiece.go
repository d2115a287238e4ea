package kitoken

import "strings"

// wordPieceEngine implements WordPiece mode encoding: greedy
// longest-prefix-in-vocabulary per word, continuing with a configurable
// continuing-prefix byte sequence on the remainder.
type wordPieceEngine struct {
	def   *Definition
	vocab *vocabIndex
}

func newWordPieceEngine(def *Definition, vocab *vocabIndex) *wordPieceEngine {
	return &wordPieceEngine{def: def, vocab: vocab}
}

func (e *wordPieceEngine) encodeSegment(word []byte) ([]uint32, error) {
	maxLen := e.def.Config.WordPiece.MaxWordLen
	if maxLen <= 0 {
		maxLen = 100
	}
	if len(word) > maxLen {
		return e.unknown(word, 0)
	}

	prefix := e.def.Config.WordPiece.ContinuingPrefix
	var ids []uint32
	start := 0
	first := true

	for start < len(word) {
		end := len(word)
		var found bool
		var id uint32

		for start < end {
			candidate := word[start:end]
			var key []byte
			if first {
				key = candidate
			} else {
				key = append([]byte(prefix), candidate...)
			}
			if got, ok := e.vocab.id(key); ok {
				id, found = got, true
				break
			}
			end--
		}

		if !found {
			return e.unknown(word, 0)
		}
		ids = append(ids, id)
		start = end
		first = false
	}

	return ids, nil
}

func (e *wordPieceEngine) unknown(word []byte, offset int) ([]uint32, error) {
	return resolveUnencodable(e.def, e.vocab, word, offset)
}

// splitWords segments a WordPiece segment into whitespace-bounded words,
// independent of the splitter's configurable SplitWhitespace boundary
// (WordPiece always words its input, regardless of Config.Split).
func splitWords(s string) []string {
	return strings.Fields(s)
}
