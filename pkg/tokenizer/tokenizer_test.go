package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"Hi", 1},
		{"Hello", 1},
		{"Hello world", 2},
		{"four", 1},
		{"exactly8", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Estimate(tt.text), "%q", tt.text)
	}
}

func TestCountTokens(t *testing.T) {
	tok, err := New()
	if err != nil {
		t.Skipf("encoding data unavailable: %v", err)
	}

	assert.Equal(t, 0, tok.CountTokens(""))
	assert.Equal(t, 1, tok.CountTokens("Hello"))
	assert.Equal(t, 2, tok.CountTokens("Hello world"))
}
