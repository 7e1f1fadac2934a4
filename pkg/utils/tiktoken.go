// Package utils provides tiktoken-based token counting for prompt budgeting and usage metrics.
package utils

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter counts tokens with a GPT-4 (cl100k) encoding. Chinese-tuned models
// such as GLM and Qwen tokenize differently; counts are an approximation.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // shared codec; loading the BPE tables is expensive
var (
	defaultCounter     *TokenCounter
	defaultCounterOnce sync.Once
)

// NewTokenCounter creates a token counter. All models use the GPT-4 encoding.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// DefaultCounter returns the process-wide counter. It never returns nil; when the
// codec cannot be loaded the counter falls back to a character estimate.
func DefaultCounter() *TokenCounter {
	defaultCounterOnce.Do(func() {
		c, err := NewTokenCounter()
		if err != nil {
			c = &TokenCounter{}
		}
		defaultCounter = c
	})
	return defaultCounter
}

// CountTokens returns the number of tokens in text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.codec == nil {
		return estimate(text)
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return estimate(text)
	}
	return count
}

// TruncateToTokenLimit returns text cut to at most limit tokens.
func (tc *TokenCounter) TruncateToTokenLimit(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if tc.codec == nil {
		runes := []rune(text)
		if len(runes) <= limit*4 {
			return text
		}
		return string(runes[:limit*4])
	}

	ids, _, err := tc.codec.Encode(text)
	if err != nil || len(ids) <= limit {
		return text
	}
	out, err := tc.codec.Decode(ids[:limit])
	if err != nil {
		return text
	}
	return out
}

// CountTokensSimple counts tokens with the default counter.
func CountTokensSimple(text string) int {
	return DefaultCounter().CountTokens(text)
}

// estimate approximates 4 characters per token.
func estimate(text string) int {
	return (len([]rune(text)) + 3) / 4
}
