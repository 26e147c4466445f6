// Package provider implements the inference client: a configured handle to
// the hosted model that turns a prompt into generated text.
package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/parley/config"
	"go.uber.org/zap"
)

// Provider sends a single prompt to a model and returns its reply.
// Implementations hold no per-request state and are safe for concurrent use.
type Provider interface {
	Generate(ctx context.Context, prompt string) (*Completion, error)
	Name() string
}

// Completion is the provider's reply. HasText is false when the reply
// carried no text at all, which callers treat differently from an error.
type Completion struct {
	Text       string
	HasText    bool
	StopReason string
	Usage      Usage
}

// Usage holds token counts as reported by the provider. Zero means the
// provider did not report them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// New builds the provider selected by cfg.Provider. Construction is the only
// point where credentials are checked; an error here must abort start-up.
func New(ctx context.Context, cfg config.InferenceConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderBedrock:
		return NewBedrock(ctx, cfg, logger)
	case config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderOllama:
		return NewGollm(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported inference provider: %q", cfg.Provider)
	}
}
