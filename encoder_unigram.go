package kitoken

import (
	"math"
	"slices"
)

const unigramUnknownPenalty = 10.0

// unigramTrie is a byte-keyed trie over vocabulary entries, carrying a
// score alongside each terminal id.
type unigramTrie struct {
	children map[byte]*unigramTrie
	hasValue bool
	id       uint32
	score    float32
}

func (t *unigramTrie) insert(key []byte, id uint32, score float32) {
	if len(key) == 0 {
		t.hasValue = true
		t.id = id
		t.score = score
		return
	}
	if t.children == nil {
		t.children = make(map[byte]*unigramTrie)
	}
	child, ok := t.children[key[0]]
	if !ok {
		child = &unigramTrie{}
		t.children[key[0]] = child
	}
	child.insert(key[1:], id, score)
}

func (t *unigramTrie) traverse(b byte) *unigramTrie {
	if t.children == nil {
		return nil
	}
	return t.children[b]
}

// unigramEngine implements Unigram mode encoding: a byte-trie Viterbi
// search over per-piece log-probabilities, finding the highest-scoring
// segmentation of each input piece.
type unigramEngine struct {
	def      *Definition
	vocab    *vocabIndex
	trie     unigramTrie
	minScore float32
}

func newUnigramEngine(def *Definition, vocab *vocabIndex) (*unigramEngine, error) {
	if len(def.Scores) != len(def.Vocab) {
		return nil, &InvalidDefinitionError{Reason: "unigram mode requires scores parallel to vocabulary"}
	}
	e := &unigramEngine{def: def, vocab: vocab, minScore: math.MaxFloat32}
	for i, entry := range def.Vocab {
		score := def.Scores[i]
		if score < e.minScore {
			e.minScore = score
		}
		e.trie.insert(entry.Bytes, entry.ID, score)
	}
	return e, nil
}

type unigramCell struct {
	from     int
	id       uint32
	isUnk    bool
	scoreSum float64
	length   int
}

func (e *unigramEngine) encodeSegment(piece []byte) ([]uint32, error) {
	n := len(piece)
	if n == 0 {
		return nil, nil
	}

	unknownScore := e.minScore - unigramUnknownPenalty
	cells := make([]unigramCell, n+1)
	for i := 1; i <= n; i++ {
		cells[i].scoreSum = -math.MaxFloat64
	}

	for i := 0; i < n; i++ {
		if cells[i].scoreSum == -math.MaxFloat64 && i > 0 {
			continue
		}

		node := &e.trie
		matchedAny := false
		for j := i; j < n && node != nil; j++ {
			node = node.traverse(piece[j])
			if node == nil {
				break
			}
			if node.hasValue {
				matchedAny = true
				candidate := cells[i].scoreSum + float64(node.score)
				end := j + 1
				// Tie-break: equal scores prefer longer piece, then
				// lower id.
				if candidate > cells[end].scoreSum ||
					(candidate == cells[end].scoreSum && shouldPreferCandidate(cells[end], end-i, node.id)) {
					cells[end] = unigramCell{from: i, id: node.id, scoreSum: candidate, length: end - i}
				}
			}
		}

		if !matchedAny {
			end := i + 1
			candidate := cells[i].scoreSum + float64(unknownScore)
			if candidate > cells[end].scoreSum {
				cells[end] = unigramCell{from: i, isUnk: true, scoreSum: candidate, length: 1}
			}
		}
	}

	var ids []uint32
	pos := n
	prevUnk := false
	for pos > 0 {
		c := cells[pos]
		if c.isUnk {
			fallback, err := resolveUnencodable(e.def, e.vocab, piece[c.from:pos], c.from)
			if err != nil {
				return nil, err
			}
			// Consecutive unknown bytes that resolve to the unk id collapse
			// into a single unk token; byte-fallback tokens are all kept.
			unk := e.def.Config.Specials.Unk
			collapse := prevUnk && unk != nil && len(fallback) == 1 && fallback[0] == *unk &&
				len(ids) > 0 && ids[len(ids)-1] == *unk
			if !collapse {
				ids = append(ids, fallback...)
			}
			prevUnk = true
		} else {
			ids = append(ids, c.id)
			prevUnk = false
		}
		pos = c.from
	}
	slices.Reverse(ids)
	return ids, nil
}

func shouldPreferCandidate(existing unigramCell, newLength int, newID uint32) bool {
	if newLength != existing.length {
		return newLength > existing.length
	}
	return newID < existing.id
}
