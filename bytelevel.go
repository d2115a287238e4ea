package kitoken

// byteToRune and runeToByte implement the GPT-2 byte-level mapping: every
// raw byte is represented as one of a fixed set of printable runes so that
// byte-level BPE vocabularies (which are built from Unicode text, not raw
// bytes) can represent arbitrary binary input losslessly.
var byteToRune [256]rune
var runeToByte map[rune]byte

func init() {
	for b := 0; b < 256; b++ {
		r := rune(b)
		switch {
		case r == 0x00ad:
			r = 0x0143
		case r <= 0x0020:
			r += 0x0100
		case r >= 0x007f && r <= 0x00a0:
			r += 0x00a2
		}
		byteToRune[b] = r
	}
	runeToByte = make(map[rune]byte, 256)
	for b, r := range byteToRune {
		runeToByte[r] = byte(b)
	}
}

// EncodeByteLevel maps each byte of s to its byte-level rune and returns
// the resulting string, the representation byte-level BPE vocabularies are
// stored in. Exported for use by the convert package's Tokenizers/Tiktoken
// loaders, which must pre-apply it to catalog patterns and vocab entries.
func EncodeByteLevel(s string) string {
	return encodeByteLevel(s)
}

func encodeByteLevel(s string) string {
	runes := make([]rune, len(s))
	for i := 0; i < len(s); i++ {
		runes[i] = byteToRune[s[i]]
	}
	return string(runes)
}

// DecodeByteLevel inverts EncodeByteLevel, writing raw bytes (not the
// UTF-8 encoding of each rune). Exported for convert's ByteLevel-aware
// converters, which must invert the mapping the "bytes" pre-tokenizer
// baked into a foreign vocabulary's stored tokens.
func DecodeByteLevel(s string) []byte {
	return decodeByteLevel(s)
}

func decodeByteLevel(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := runeToByte[r]; ok {
			out = append(out, b)
		}
	}
	return out
}
