package kitoken

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// charsMap is the precompiled-charsmap double-array trie (XCDA) shared by
// the normalizer's stage-1 char-map application and the SentencePiece
// converter, which populates it straight from a ModelProto's
// precompiled_charsmap field. Layout: a 4-byte little-endian blob size,
// that many bytes of packed uint32 trie nodes, then a NUL-delimited table
// of replacement strings addressed by byte offset.
type charsMap struct {
	nodes        []uint32
	replacements []byte
}

func parseCharsMap(data []byte) (*charsMap, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("charsmap: too short (%d bytes)", len(data))
	}
	blobSize := int(binary.LittleEndian.Uint32(data[:4]))
	offset := 4
	if blobSize < 0 || offset+blobSize > len(data) || blobSize%4 != 0 {
		return nil, fmt.Errorf("charsmap: blob size %d out of bounds (data len %d)", blobSize, len(data))
	}
	nodes := make([]uint32, blobSize/4)
	for i := range nodes {
		nodes[i] = binary.LittleEndian.Uint32(data[offset+i*4 : offset+i*4+4])
	}
	return &charsMap{
		nodes:        nodes,
		replacements: data[offset+blobSize:],
	}, nil
}

func (c *charsMap) node(index uint32) (uint32, error) {
	if int(index) >= len(c.nodes) {
		return 0, fmt.Errorf("charsmap: index %d out of bounds (len %d)", index, len(c.nodes))
	}
	return c.nodes[index], nil
}

func (c *charsMap) base(index uint32) (uint32, error) {
	n, err := c.node(index)
	if err != nil {
		return 0, err
	}
	shift := (n & (1 << 9)) >> 6
	return (n >> 10) << shift, nil
}

func (c *charsMap) lcheck(index uint32) (uint32, error) {
	n, err := c.node(index)
	if err != nil {
		return 0, err
	}
	return n & ((1 << 31) | 0xff), nil
}

func (c *charsMap) leaf(index uint32) (bool, error) {
	n, err := c.node(index)
	if err != nil {
		return false, err
	}
	return ((n >> 8) & 1) == 1, nil
}

func (c *charsMap) value(index uint32) (uint32, error) {
	n, err := c.node(index)
	if err != nil {
		return 0, err
	}
	return n & ((1 << 31) - 1), nil
}

func (c *charsMap) replacementAt(offset uint32) (string, error) {
	if int(offset) >= len(c.replacements) {
		return "", fmt.Errorf("charsmap: replacement offset %d out of bounds", offset)
	}
	rest := c.replacements[offset:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", fmt.Errorf("charsmap: unterminated replacement string")
	}
	return string(rest[:end]), nil
}

// longestPrefixReplacement walks the trie from the root, following the
// XOR-indexed traversal used by SentencePiece's double-array
// implementation, and returns the byte length of the longest matched
// input prefix and its replacement string. A zero length means no match.
func (c *charsMap) longestPrefixReplacement(input string) (matchedLen int, replacement string, err error) {
	if len(c.nodes) == 0 {
		return 0, "", nil
	}
	nodeIndex, err := c.base(0)
	if err != nil {
		return 0, "", err
	}
	var bestLen int
	var bestOffset uint32
	for i := 0; i < len(input); i++ {
		ch := uint32(input[i])
		if ch == 0 {
			break
		}
		nodeIndex ^= ch
		lc, err := c.lcheck(nodeIndex)
		if err != nil {
			return 0, "", err
		}
		if lc != ch {
			break
		}
		isLeaf, err := c.leaf(nodeIndex)
		if err != nil {
			return 0, "", err
		}
		base, err := c.base(nodeIndex)
		if err != nil {
			return 0, "", err
		}
		nodeIndex ^= base
		if isLeaf {
			bestLen = i + 1
			bestOffset, err = c.value(nodeIndex)
			if err != nil {
				return 0, "", err
			}
		}
	}
	if bestLen == 0 {
		return 0, "", nil
	}
	replacement, err = c.replacementAt(bestOffset)
	if err != nil {
		return 0, "", err
	}
	return bestLen, replacement, nil
}
