package kitoken

import "fmt"

// InvalidDefinitionError reports a violated invariant in a Definition: an
// empty vocabulary, a scores/vocab length mismatch, non-UTF-8 special bytes,
// or a byte collision between entries.
type InvalidDefinitionError struct {
	Reason string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid definition: %s", e.Reason)
}

// UnrecognizedFormatError is returned when DetectAndParse exhausts every
// known foreign format without one succeeding.
type UnrecognizedFormatError struct {
	// Cause is the error from the last format attempted, kept for context;
	// earlier attempts' errors are intentionally discarded.
	Cause error
}

func (e *UnrecognizedFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("unrecognized format: %s", e.Cause)
	}
	return "unrecognized format"
}

func (e *UnrecognizedFormatError) Unwrap() error { return e.Cause }

// ConversionError reports a malformed foreign definition, or one using a
// feature the converter cannot faithfully represent.
type ConversionError struct {
	SourceFormat string
	Reason       string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion error from %s: %s", e.SourceFormat, e.Reason)
}

// UnencodableError reports a piece of input, at ByteOffset, that no token
// covers and for which no fallback policy applies.
type UnencodableError struct {
	ByteOffset int
	Piece      string
}

func (e *UnencodableError) Error() string {
	return fmt.Sprintf("unencodable piece %q at byte offset %d", e.Piece, e.ByteOffset)
}

// UnknownTokenIDError reports a token id with no corresponding vocabulary or
// specials entry encountered during decode.
type UnknownTokenIDError struct {
	ID uint32
}

func (e *UnknownTokenIDError) Error() string {
	return fmt.Sprintf("unknown token id %d", e.ID)
}

// InvalidUTF8Error is returned only by callers that request UTF-8 decoding
// of decoded output.
type InvalidUTF8Error struct {
	ByteOffset int
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("invalid utf-8 at byte offset %d", e.ByteOffset)
}
