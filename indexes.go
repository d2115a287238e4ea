package kitoken

// vocabIndex is the derived lookup structure the facade builds once from a
// Definition's vocabulary: byte-sequence to rank/id, and id back to bytes.
// Rank is the entry's position in Definition.Vocab, which doubles as BPE
// merge priority (lower index wins).
type vocabIndex struct {
	entries    []VocabEntry
	rankByKey  map[string]int
	idByKey    map[string]uint32
	bytesByID  map[uint32][]byte
	byteTokens [256]int32 // id of the single-byte token for each value, -1 if absent
}

func buildVocabIndex(entries []VocabEntry) *vocabIndex {
	idx := &vocabIndex{
		entries:   entries,
		rankByKey: make(map[string]int, len(entries)),
		idByKey:   make(map[string]uint32, len(entries)),
		bytesByID: make(map[uint32][]byte, len(entries)),
	}
	for i := range idx.byteTokens {
		idx.byteTokens[i] = -1
	}
	for rank, e := range entries {
		key := string(e.Bytes)
		idx.rankByKey[key] = rank
		idx.idByKey[key] = e.ID
		idx.bytesByID[e.ID] = e.Bytes
		if len(e.Bytes) == 1 {
			idx.byteTokens[e.Bytes[0]] = int32(e.ID)
		}
	}
	return idx
}

// rank returns the merge priority of the given byte sequence, or -1 if it
// is not present in the vocabulary.
func (v *vocabIndex) rank(b []byte) int {
	if r, ok := v.rankByKey[string(b)]; ok {
		return r
	}
	return -1
}

func (v *vocabIndex) id(b []byte) (uint32, bool) {
	id, ok := v.idByKey[string(b)]
	return id, ok
}

func (v *vocabIndex) bytes(id uint32) ([]byte, bool) {
	b, ok := v.bytesByID[id]
	return b, ok
}
