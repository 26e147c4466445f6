package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/prometheus/client_golang/prometheus"
)

// fallbackEncoding is used for models tiktoken has no mapping for, which
// includes every Bedrock model id.
const fallbackEncoding = "cl100k_base"

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// TokenCounter estimates prompt sizes with tiktoken. Counts are approximate
// for non-OpenAI models.
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter picks the encoding for model, falling back to cl100k_base.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(fallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %w", model, err)
		}
	}
	return NewTokenCounterWith(encoding), nil
}

// NewTokenCounterWith wraps an existing tokenizer.
func NewTokenCounterWith(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountTokens returns the number of tokens in text.
func (tc *TokenCounter) CountTokens(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// PromptObserver records prompt token counts into a histogram.
type PromptObserver struct {
	counter *TokenCounter
	hist    prometheus.Observer
}

// NewPromptObserver returns an observer feeding hist.
func NewPromptObserver(counter *TokenCounter, hist prometheus.Observer) *PromptObserver {
	return &PromptObserver{counter: counter, hist: hist}
}

// Observe counts the tokens in prompt and records them.
func (o *PromptObserver) Observe(prompt string) {
	o.hist.Observe(float64(o.counter.CountTokens(prompt)))
}
