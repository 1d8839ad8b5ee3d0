package models

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"github.com/easeaico/eve/internal/types"
)

// Credentials are the process-level provider settings.
type Credentials struct {
	OllamaBaseURL    string
	OpenAIBaseURL    string
	GoogleAPIKey     string
	XAIAPIKey        string
	OpenRouterAPIKey string
}

// Provider resolves the Completer for a runtime configuration snapshot and
// caches constructed models per mode, model name and key.
type Provider struct {
	creds Credentials

	mu    sync.Mutex
	cache map[string]Completer
}

// NewProvider creates a Provider.
func NewProvider(creds Credentials) *Provider {
	return &Provider{creds: creds, cache: make(map[string]Completer)}
}

// Completer returns the Completer for cfg. Unknown modes, unsupported model
// families and missing credentials are reported as types.ErrConfig.
func (p *Provider) Completer(ctx context.Context, cfg types.RuntimeConfig) (Completer, error) {
	key := fmt.Sprintf("%s|%s|%s", cfg.Mode, cfg.ModelName, cfg.OpenAIAPIKey)

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.cache[key]; ok {
		return c, nil
	}
	llm, err := p.newModel(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c := NewCompleter(llm)
	p.cache[key] = c
	return c, nil
}

func (p *Provider) newModel(ctx context.Context, cfg types.RuntimeConfig) (model.LLM, error) {
	name := strings.TrimSpace(cfg.ModelName)
	if name == "" {
		return nil, fmt.Errorf("%w: model name is empty", types.ErrConfig)
	}

	var (
		llm model.LLM
		err error
	)
	switch cfg.Mode {
	case types.ModeLocal:
		llm, err = NewOllamaModel(ctx, name, p.creds.OllamaBaseURL)
	case types.ModeRemote:
		llm, err = p.newRemoteModel(ctx, name, cfg)
	default:
		return nil, fmt.Errorf("%w: invalid AI mode %q", types.ErrConfig, cfg.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create model %s: %w", types.ErrConfig, name, err)
	}
	return llm, nil
}

func (p *Provider) newRemoteModel(ctx context.Context, name string, cfg types.RuntimeConfig) (model.LLM, error) {
	switch {
	case strings.HasPrefix(name, "gemini-"):
		if p.creds.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is required for %s", name)
		}
		return gemini.NewModel(ctx, name, &genai.ClientConfig{
			APIKey:  p.creds.GoogleAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
	case strings.HasPrefix(name, "grok-"):
		if p.creds.XAIAPIKey == "" {
			return nil, fmt.Errorf("XAI_API_KEY is required for %s", name)
		}
		return NewGrokModel(ctx, name, &genai.ClientConfig{APIKey: p.creds.XAIAPIKey})
	case strings.HasPrefix(name, openRouterPrefix):
		if p.creds.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY is required for %s", name)
		}
		return NewOpenRouterModel(ctx, name, &genai.ClientConfig{APIKey: p.creds.OpenRouterAPIKey})
	case strings.HasPrefix(name, "claude-"):
		// TODO: add an Anthropic provider; anthropic_api_key is stored but unused until then.
		return nil, fmt.Errorf("remote model family of %s is not implemented", name)
	default:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai_api_key is required for %s", name)
		}
		return NewOpenAIModel(ctx, name, p.creds.OpenAIBaseURL, &genai.ClientConfig{APIKey: cfg.OpenAIAPIKey})
	}
}
