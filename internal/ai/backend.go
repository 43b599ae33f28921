package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/zyrian-nova/todo-app/internal/config"
)

// BackendName identifies a supported model backend.
type BackendName string

const (
	BackendOllama BackendName = "ollama"
	BackendOpenAI BackendName = "openai"
)

// localToken is sent to OpenAI-compatible servers that ignore authentication.
const localToken = "unused"

// Backend sends a single prompt to a language model and returns its raw reply.
// Implementations satisfy decompose.Generator.
type Backend interface {
	Name() BackendName
	DisplayName() string
	Model() string
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// ErrUnknownBackend is returned when the configured backend is unsupported.
var ErrUnknownBackend = errors.New("unknown AI backend")

// ErrMissingAPIKey is returned when the OpenAI backend targets api.openai.com without a key.
var ErrMissingAPIKey = errors.New("openai backend requires an API key")

// NewFromConfig builds a Backend from configuration.
func NewFromConfig(cfg *config.Config) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing config")
	}

	client := &http.Client{Timeout: cfg.AI.RequestTimeout()}

	switch strings.ToLower(cfg.AI.Backend) {
	case string(BackendOllama), "":
		return NewOllamaBackend(cfg.AI.Ollama, client)
	case string(BackendOpenAI):
		return NewOpenAIBackend(cfg.AI.OpenAI, client)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.AI.Backend)
	}
}

// llmBackend adapts a langchaingo model to Backend.
type llmBackend struct {
	name        BackendName
	displayName string
	model       string
	llm         llms.Model
}

func (b *llmBackend) Name() BackendName { return b.name }

func (b *llmBackend) DisplayName() string { return b.displayName }

func (b *llmBackend) Model() string { return b.model }

// Generate performs exactly one completion call. Errors wrap the underlying
// transport or API failure so callers can classify them.
func (b *llmBackend) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	reply, err := llms.GenerateFromSinglePrompt(ctx, b.llm, prompt, llms.WithTemperature(temperature))
	if err != nil {
		return "", fmt.Errorf("%s generate (model %s): %w", b.name, b.model, err)
	}
	return reply, nil
}

// NewOllamaBackend creates an Ollama backend. A nil client uses http.DefaultClient.
func NewOllamaBackend(cfg config.OllamaConfig, client *http.Client) (Backend, error) {
	host := cfg.Host
	if host == "" {
		host = config.Default().AI.Ollama.Host
	}
	model := cfg.Model
	if model == "" {
		model = config.Default().AI.Ollama.Model
	}

	opts := []ollama.Option{
		ollama.WithServerURL(host),
		ollama.WithModel(model),
	}
	if client != nil {
		opts = append(opts, ollama.WithHTTPClient(client))
	}

	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	return &llmBackend{
		name:        BackendOllama,
		displayName: "Ollama",
		model:       model,
		llm:         llm,
	}, nil
}

// NewOpenAIBackend creates a backend for OpenAI or any compatible chat
// completions server. A key is required only when BaseURL is unset.
func NewOpenAIBackend(cfg config.OpenAIConfig, client *http.Client) (Backend, error) {
	token := cfg.APIKey
	if token == "" {
		if cfg.BaseURL == "" {
			return nil, ErrMissingAPIKey
		}
		token = localToken
	}
	model := cfg.Model
	if model == "" {
		model = config.Default().AI.OpenAI.Model
	}

	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if client != nil {
		opts = append(opts, openai.WithHTTPClient(client))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	return &llmBackend{
		name:        BackendOpenAI,
		displayName: "OpenAI",
		model:       model,
		llm:         llm,
	}, nil
}
