package listparse

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrDecodingExhausted is returned once every encoding in the fallback
// chain has failed to decode a name; it aborts the current walk.
var ErrDecodingExhausted = errors.New("listparse: all encodings exhausted")

// fallbackChain is the ordered preference list: UTF-8 first, then Latin-9
// (ISO 8859-15), matching servers that emit legacy 8-bit filenames.
var fallbackChain = []encoding.Encoding{
	unicode.UTF8,
	charmap.ISO8859_15,
}

// Decoder is a per-walk state machine over fallbackChain. On a decoding
// failure it advances to the next encoding and retries; having exhausted
// the chain it returns ErrDecodingExhausted on every subsequent call. State
// is per-walk, not per-entry: once a walk settles on latin-9 (by failing to
// decode as UTF-8 even once), it stays on latin-9 for the rest of the walk.
type Decoder struct {
	index int
}

// NewDecoder returns a fresh decoder starting at the head of the chain.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode attempts to decode raw bytes as text, advancing the chain on
// failure. Returns ErrDecodingExhausted once the chain is exhausted.
func (d *Decoder) Decode(raw []byte) (string, error) {
	for d.index < len(fallbackChain) {
		// UTF-8 is a pass-through transform in x/text/encoding/unicode, so it
		// never itself errors on invalid bytes; validity must be checked
		// explicitly to trigger the fallback to the next encoding.
		if d.index == 0 {
			if utf8.Valid(raw) {
				return string(raw), nil
			}
			d.index++
			continue
		}

		decoded, err := fallbackChain[d.index].NewDecoder().Bytes(raw)
		if err == nil {
			return string(decoded), nil
		}
		d.index++
	}
	return "", ErrDecodingExhausted
}

// Exhausted reports whether the decoder has fallen off the end of the
// chain, i.e. every Decode call will now fail.
func (d *Decoder) Exhausted() bool {
	return d.index >= len(fallbackChain)
}
