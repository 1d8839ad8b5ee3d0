package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/eve/internal/types"
	"github.com/easeaico/eve/internal/utils"
)

// Instruction is one role-tagged entry of the request sent to the model.
type Instruction struct {
	Role    string
	Content string
}

// Options tune a single completion.
type Options struct {
	Temperature float64
	MaxTokens   int
	// GPULayers is the GPU offload count for local models. Remote providers
	// ignore it.
	GPULayers int
	// Schema, when set, requests a JSON reply matching it.
	Schema *jsonschema.Schema
}

// Completion is the model's raw reply.
type Completion struct {
	Text string
	// TokenCount is nil when the provider reports no usage.
	TokenCount *int
}

// Completer turns an ordered instruction sequence into model text.
type Completer interface {
	Complete(ctx context.Context, instructions []Instruction, opts Options) (Completion, error)
}

// LLMCompleter adapts an adk model.LLM to Completer.
type LLMCompleter struct {
	llm model.LLM
}

// NewCompleter wraps llm.
func NewCompleter(llm model.LLM) *LLMCompleter {
	return &LLMCompleter{llm: llm}
}

// Complete sends the instructions in one non-streaming request. System
// instructions become the request's system instruction; assistant turns are
// sent with the model role.
func (c *LLMCompleter) Complete(ctx context.Context, instructions []Instruction, opts Options) (Completion, error) {
	req := buildRequest(c.llm.Name(), instructions, opts)
	ctx = withGPULayers(ctx, opts.GPULayers)

	var text strings.Builder
	var tokens *int
	for resp, err := range c.llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return Completion{}, fmt.Errorf("%w: %w", types.ErrUpstream, err)
		}
		if resp == nil {
			continue
		}
		if resp.ErrorCode != "" {
			return Completion{}, fmt.Errorf("%w: model %s returned %s: %s", types.ErrUpstream, c.llm.Name(), resp.ErrorCode, resp.ErrorMessage)
		}
		text.WriteString(utils.ExtractContentText(resp.Content))
		if resp.UsageMetadata != nil && resp.UsageMetadata.CandidatesTokenCount > 0 {
			n := int(resp.UsageMetadata.CandidatesTokenCount)
			tokens = &n
		}
	}
	return Completion{Text: text.String(), TokenCount: tokens}, nil
}

func buildRequest(name string, instructions []Instruction, opts Options) *model.LLMRequest {
	temperature := float32(opts.Temperature)
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if opts.Schema != nil {
		cfg.ResponseMIMEType = jsonMIMEType
		cfg.ResponseJsonSchema = opts.Schema
	}

	var system []string
	contents := make([]*genai.Content, 0, len(instructions))
	for _, ins := range instructions {
		switch ins.Role {
		case types.RoleSystem:
			system = append(system, ins.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(ins.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(ins.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}

	return &model.LLMRequest{
		Model:    name,
		Contents: contents,
		Config:   cfg,
	}
}

type gpuLayersKey struct{}

// withGPULayers scopes the GPU offload count to one request. Only ollamaModel
// reads it.
func withGPULayers(ctx context.Context, layers int) context.Context {
	return context.WithValue(ctx, gpuLayersKey{}, layers)
}

func gpuLayersFrom(ctx context.Context) (int, bool) {
	layers, ok := ctx.Value(gpuLayersKey{}).(int)
	return layers, ok
}
