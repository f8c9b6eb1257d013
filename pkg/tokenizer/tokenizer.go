// Package tokenizer provides token counting for memory bodies, backed by
// tiktoken with a deterministic byte-length heuristic as fallback for
// environments where the encoding data cannot be loaded.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the BPE encoding used for accurate counts.
const encodingName = "cl100k_base"

// Tokenizer counts tokens with a loaded tiktoken encoding.
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
}

// New initializes the tiktoken encoding. It can fail when the encoding data
// is unavailable (e.g. offline with a cold cache); callers should fall back
// to Estimate in that case.
func New() (*Tokenizer, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: load %s encoding: %w", encodingName, err)
	}
	return &Tokenizer{encoding: encoding}, nil
}

// CountTokens returns the exact token count of text under the loaded
// encoding.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(t.encoding.Encode(text, nil, nil))
}

// Estimate approximates a token count as one token per four bytes, with a
// floor of one token for non-empty text. It is deterministic and requires no
// encoding data.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	if n := len(text) / 4; n > 0 {
		return n
	}
	return 1
}
