package kitoken

// engine is the tagged-variant dispatch point for the four encoding
// algorithms: each holds its own precomputed tables and the facade
// dispatches to it once per segment.
type engine interface {
	encodeSegment(piece []byte) ([]uint32, error)
}

func newEngine(def *Definition, vocab *vocabIndex) (engine, error) {
	switch def.Config.Mode {
	case ModeBytePair, ModeCharPair:
		return newBytePairEngine(def, vocab), nil
	case ModeUnigram:
		return newUnigramEngine(def, vocab)
	case ModeWordPiece:
		return newWordPieceEngine(def, vocab), nil
	default:
		return nil, &InvalidDefinitionError{Reason: "unknown encoding mode"}
	}
}

// byteMergeFallback re-tokenizes piece as individual bytes via the
// vocabulary's byte tokens, succeeding only if every byte has a token.
func byteMergeFallback(vocab *vocabIndex, piece []byte) ([]uint32, bool) {
	ids := make([]uint32, 0, len(piece))
	for _, b := range piece {
		id := vocab.byteTokens[b]
		if id < 0 {
			return nil, false
		}
		ids = append(ids, uint32(id))
	}
	return ids, true
}

// resolveUnencodable implements the pinned fallback order: byte fallback
// wins if enabled, else the same byte-merge recovery if UnknownBytes is
// selected, else unk_id, else skip, else error.
func resolveUnencodable(def *Definition, vocab *vocabIndex, piece []byte, offset int) ([]uint32, error) {
	if def.Config.Fallback.ByteFallback {
		if ids, ok := byteMergeFallback(vocab, piece); ok {
			return ids, nil
		}
	}
	if def.Config.Fallback.Unknown == UnknownBytes {
		if ids, ok := byteMergeFallback(vocab, piece); ok {
			return ids, nil
		}
	}
	if def.Config.Fallback.Unknown == UnknownEmitUnk && def.Config.Specials.Unk != nil {
		return []uint32{*def.Config.Specials.Unk}, nil
	}
	if def.Config.Fallback.Unknown == UnknownSkip {
		return nil, nil
	}
	return nil, &UnencodableError{ByteOffset: offset, Piece: string(piece)}
}
