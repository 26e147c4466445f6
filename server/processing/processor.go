package processing

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/teilomillet/parley/server/provider"
	"go.uber.org/zap"
)

// NoResponsePlaceholder is returned when the model reply carries no text.
const NoResponsePlaceholder = "No response generated."

// promptTemplate is the fixed chatbot instruction. Values are inserted
// verbatim; text/template performs no escaping.
var promptTemplate = template.Must(template.New("chat").Parse(
	"You are a chatbot. You respond in {{.Language}}.\n\n{{.FreeformText}}\n\n",
))

// FormatPrompt fills the chatbot template with language and text.
func FormatPrompt(language, text string) string {
	var buf bytes.Buffer
	// Execute cannot fail: the template only reads two string fields.
	_ = promptTemplate.Execute(&buf, ChatRequest{Language: language, FreeformText: text})
	return buf.String()
}

// ChatError reports a failed provider call. Its message is what clients see
// in the error body.
type ChatError struct {
	Err error
}

func (e *ChatError) Error() string {
	return "Chatbot processing failed: " + e.Err.Error()
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// TokenObserver receives the estimated token count of each formatted prompt.
type TokenObserver interface {
	Observe(prompt string)
}

// Processor runs the chat pipeline against a single provider. It keeps no
// per-request state and is safe for concurrent use.
type Processor struct {
	provider provider.Provider
	tokens   TokenObserver
	empty    prometheus.Counter
	logger   *zap.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithTokenObserver records prompt sizes through o.
func WithTokenObserver(o TokenObserver) Option {
	return func(p *Processor) {
		p.tokens = o
	}
}

// WithEmptyCounter counts replies answered with the placeholder.
func WithEmptyCounter(c prometheus.Counter) Option {
	return func(p *Processor) {
		p.empty = c
	}
}

// NewProcessor creates a processor bound to p.
func NewProcessor(p provider.Provider, logger *zap.Logger, opts ...Option) (*Processor, error) {
	if p == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	proc := &Processor{provider: p, logger: logger}
	for _, opt := range opts {
		opt(proc)
	}
	return proc, nil
}

// Chat formats the prompt, calls the provider once and returns the reply.
// A reply without text yields NoResponsePlaceholder. Provider failures are
// returned as *ChatError.
func (p *Processor) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	prompt := FormatPrompt(req.Language, req.FreeformText)
	if p.tokens != nil {
		p.tokens.Observe(prompt)
	}

	completion, err := p.provider.Generate(ctx, prompt)
	if err != nil {
		return nil, &ChatError{Err: err}
	}

	if completion == nil || !completion.HasText {
		p.logger.Debug("model returned no text, using placeholder",
			zap.String("provider", p.provider.Name()),
		)
		if p.empty != nil {
			p.empty.Inc()
		}
		return &ChatResponse{Response: NoResponsePlaceholder}, nil
	}

	return &ChatResponse{Response: completion.Text}, nil
}
