package kitoken

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecoderByteLevel(t *testing.T) {
	d := newDecoder(DecodingConfig{ByteLevel: true})
	encoded := encodeByteLevel("hello world")
	out := d.Decode([][]byte{[]byte(encoded)})
	require.Equal(t, "hello world", string(out))
}

func TestDecoderEscapeWhitespace(t *testing.T) {
	d := newDecoder(DecodingConfig{EscapeWhitespace: "▁"})
	out := d.Decode([][]byte{[]byte("▁hello▁world")})
	require.Equal(t, "hello world", string(out))
}

func TestDecoderStripPrefix(t *testing.T) {
	d := newDecoder(DecodingConfig{StripPrefix: " "})
	out := d.Decode([][]byte{[]byte(" hello")})
	require.Equal(t, "hello", string(out))
}

func TestDecoderReplacements(t *testing.T) {
	d := newDecoder(DecodingConfig{Replacements: []ReplacementRule{{From: "bar", To: "foo"}}})
	out := d.Decode([][]byte{[]byte("barbaz")})
	require.Equal(t, "foobaz", string(out))
}

func TestByteLevelRoundTrip(t *testing.T) {
	raw := []byte{0x00, 0x20, 0x7f, 0xff, 'a', 'z'}
	encoded := EncodeByteLevel(string(raw))
	decoded := DecodeByteLevel(encoded)
	require.Equal(t, raw, decoded)
}
