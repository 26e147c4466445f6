package provider

import (
	"context"
	"fmt"

	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"github.com/teilomillet/parley/config"
	"go.uber.org/zap"
)

// generator is the part of gollm.LLM this package calls.
type generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// Gollm serves the openai, anthropic and ollama providers through gollm.
type Gollm struct {
	llm    generator
	name   string
	logger *zap.Logger
}

// NewGollm creates the gollm client. Retries are disabled so a failed
// request reaches the caller after exactly one upstream call.
//
// The Ollama endpoint has to be passed as a construction option: gollm keeps
// a second provider instance behind the returned LLM, and only the one built
// inside NewLLM is used to send requests.
func NewGollm(cfg config.InferenceConfig, logger *zap.Logger) (*Gollm, error) {
	opts, err := gollmOptions(cfg)
	if err != nil {
		return nil, err
	}

	client, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	logger.Info("gollm client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model_id", cfg.ModelID),
	)

	return newGollmWithGenerator(client, cfg.Provider, logger), nil
}

func gollmOptions(cfg config.InferenceConfig) ([]gollm.ConfigOption, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.ModelID),
		gollm.SetAPIKey(cfg.APIKey),
		gollm.SetMaxTokens(cfg.MaxTokens),
		gollm.SetTemperature(cfg.Temperature),
		gollm.SetMaxRetries(0),
		gollm.SetRetryDelay(0),
	}
	if cfg.Endpoint != "" {
		if cfg.Provider != config.ProviderOllama {
			return nil, fmt.Errorf("endpoint override is not supported by the %s provider", cfg.Provider)
		}
		opts = append(opts, gollm.SetOllamaEndpoint(cfg.Endpoint))
	}
	return opts, nil
}

func newGollmWithGenerator(g generator, name string, logger *zap.Logger) *Gollm {
	return &Gollm{llm: g, name: name, logger: logger}
}

// Name implements Provider.
func (g *Gollm) Name() string {
	return g.name
}

// Generate implements Provider. gollm returns a bare string, so an empty
// reply is reported as a completion without text.
func (g *Gollm) Generate(ctx context.Context, prompt string) (*Completion, error) {
	resp, err := g.llm.Generate(ctx, gollm.NewPrompt(prompt))
	if err != nil {
		return nil, classifyGollmError(ctx, err)
	}
	return &Completion{Text: resp, HasText: resp != ""}, nil
}

// classifyGollmError maps a failed gollm call onto the provider sentinels.
// gollm replaces every upstream failure with "failed to generate after N
// attempts", dropping the status code and the transport error, so the
// request context is the only signal left. Everything else stays a plain
// provider error.
func classifyGollmError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w: %w", ErrUnavailable, ctxErr, err)
	}
	return err
}
