package kitoken

import (
	"cmp"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

// bytePairEngine implements BytePair and CharPair mode encoding: an
// arena-indexed doubly linked list of pieces merged by ascending
// vocabulary rank, with a fast linear-rescan path for short segments and a
// heap-based fallback for long ones.
type bytePairEngine struct {
	def   *Definition
	vocab *vocabIndex
}

func newBytePairEngine(def *Definition, vocab *vocabIndex) *bytePairEngine {
	return &bytePairEngine{def: def, vocab: vocab}
}

// pieceUnits splits piece into its initial merge units: UTF-8 characters if
// CharMode is set, otherwise individual bytes.
func pieceUnits(piece []byte, charMode bool) [][]byte {
	if !charMode {
		units := make([][]byte, len(piece))
		for i, b := range piece {
			units[i] = []byte{b}
		}
		return units
	}
	var units [][]byte
	for i := 0; i < len(piece); {
		_, size := decodeRuneOrByte(string(piece[i:]))
		units = append(units, piece[i:i+size])
		i += size
	}
	return units
}

type bpeNode struct {
	prev, next int
	bytes      []byte
	live       bool
}

func (e *bytePairEngine) encodeSegment(piece []byte) ([]uint32, error) {
	if len(piece) == 0 {
		return nil, nil
	}

	charMode := e.def.Config.Mode == ModeCharPair || e.def.Config.BytePair.CharMode
	units := pieceUnits(piece, charMode)
	nodes := make([]bpeNode, len(units))
	for i, u := range units {
		nodes[i] = bpeNode{prev: i - 1, next: i + 1, bytes: u, live: true}
	}
	if nodes[len(nodes)-1].next >= len(nodes) {
		nodes[len(nodes)-1].next = -1
	}

	threshold := e.def.Config.BytePair.fallbackThreshold()
	if len(nodes) > threshold {
		e.mergeHeap(nodes)
	} else {
		e.mergeLinear(nodes)
	}

	return e.emit(nodes, piece)
}

func concatBytes(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// mergeLinear is the fast path: each iteration rescans for the globally
// lowest-rank adjacent pair, ties broken by leftmost position.
func (e *bytePairEngine) mergeLinear(nodes []bpeNode) {
	for {
		bestRank := -1
		bestIdx := -1
		for i := range nodes {
			if !nodes[i].live || nodes[i].next < 0 {
				continue
			}
			j := nodes[i].next
			rank := e.vocab.rank(concatBytes(nodes[i].bytes, nodes[j].bytes))
			if rank < 0 {
				continue
			}
			if bestIdx < 0 || rank < bestRank {
				bestRank = rank
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			return
		}
		e.applyMerge(nodes, bestIdx)
	}
}

type bpPair struct {
	left, right int
	rank        int
	merged      []byte
}

// mergeHeap is the fallback path for long segments: a binary heap keyed on
// rank, with stale-entry detection on pop (neighbor identity recheck).
func (e *bytePairEngine) mergeHeap(nodes []bpeNode) {
	pairs := heap.NewWith(func(a, b *bpPair) int {
		if c := cmp.Compare(a.rank, b.rank); c != 0 {
			return c
		}
		return cmp.Compare(a.left, b.left)
	})

	tryPush := func(i int) {
		if i < 0 || i >= len(nodes) || !nodes[i].live || nodes[i].next < 0 {
			return
		}
		j := nodes[i].next
		merged := concatBytes(nodes[i].bytes, nodes[j].bytes)
		rank := e.vocab.rank(merged)
		if rank < 0 {
			return
		}
		pairs.Push(&bpPair{left: i, right: j, rank: rank, merged: merged})
	}

	for i := range nodes {
		tryPush(i)
	}

	for !pairs.Empty() {
		p, _ := pairs.Pop()
		if !nodes[p.left].live || !nodes[p.right].live || nodes[p.left].next != p.right {
			continue
		}
		if string(concatBytes(nodes[p.left].bytes, nodes[p.right].bytes)) != string(p.merged) {
			continue
		}
		e.applyMergePair(nodes, p.left, p.right)
		tryPush(nodes[p.left].prev)
		tryPush(p.left)
	}
}

func (e *bytePairEngine) applyMerge(nodes []bpeNode, left int) {
	e.applyMergePair(nodes, left, nodes[left].next)
}

func (e *bytePairEngine) applyMergePair(nodes []bpeNode, left, right int) {
	nodes[left].bytes = concatBytes(nodes[left].bytes, nodes[right].bytes)
	nodes[left].next = nodes[right].next
	if nodes[right].next >= 0 {
		nodes[nodes[right].next].prev = left
	}
	nodes[right].live = false
}

func (e *bytePairEngine) emit(nodes []bpeNode, original []byte) ([]uint32, error) {
	var ids []uint32
	offset := 0
	for i := range nodes {
		if !nodes[i].live {
			continue
		}
		if id, ok := e.vocab.id(nodes[i].bytes); ok {
			ids = append(ids, id)
		} else {
			fallback, err := resolveUnencodable(e.def, e.vocab, nodes[i].bytes, offset)
			if err != nil {
				return nil, err
			}
			ids = append(ids, fallback...)
		}
		offset += len(nodes[i].bytes)
	}
	return ids, nil
}
