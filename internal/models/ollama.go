package models

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/eve/internal/utils"
)

// ollamaModel talks to Ollama's native /api/chat endpoint. The OpenAI
// compatible endpoint ignores runner options such as num_gpu.
type ollamaModel struct {
	client             *openai.Client
	name               string
	versionHeaderValue string
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   any             `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model           string        `json:"model"`
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
}

// NewOllamaModel creates a model served by a local Ollama instance. baseURL
// is the server root; a trailing /v1 left over from OpenAI-style settings is
// dropped.
func NewOllamaModel(ctx context.Context, modelName, baseURL string) (model.LLM, error) {
	root := ollamaRoot(baseURL)
	if root == "" {
		return nil, fmt.Errorf("ollama base url is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name cannot be empty")
	}
	client := openai.NewClient(
		option.WithAPIKey("ollama"),
		option.WithBaseURL(root+"/"),
	)
	return &ollamaModel{
		client: &client,
		name:   modelName,
		versionHeaderValue: fmt.Sprintf("eve-ollama/%s go/%s",
			"1.0.0", strings.TrimPrefix(runtime.Version(), "go")),
	}, nil
}

func ollamaRoot(baseURL string) string {
	root := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return strings.TrimRight(strings.TrimSuffix(root, "/v1"), "/")
}

func (m *ollamaModel) Name() string {
	return m.name
}

func (m *ollamaModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if stream {
			yield(nil, fmt.Errorf("streaming is not supported by %s", m.name))
			return
		}
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *ollamaModel) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	body := buildOllamaRequest(ctx, req, m.name)

	var resp ollamaChatResponse
	err := m.client.Post(ctx, "api/chat", body, &resp, option.WithHeader("User-Agent", m.versionHeaderValue))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		slog.Error("failed to call ollama", "model", m.name, "error", err.Error())
		return nil, fmt.Errorf("failed to call %s: %w", m.name, err)
	}

	content := &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{}}
	if resp.Message.Content != "" {
		content.Parts = append(content.Parts, &genai.Part{Text: resp.Message.Content})
	}
	llmResp := &model.LLMResponse{
		Content:      content,
		TurnComplete: resp.Done,
	}
	if resp.EvalCount > 0 {
		llmResp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(resp.PromptEvalCount),
			CandidatesTokenCount: int32(resp.EvalCount),
			TotalTokenCount:      int32(resp.PromptEvalCount + resp.EvalCount),
		}
	}
	return llmResp, nil
}

// buildOllamaRequest converts an adk request to an /api/chat body. The GPU
// offload count comes from ctx, see withGPULayers.
func buildOllamaRequest(ctx context.Context, req *model.LLMRequest, name string) ollamaChatRequest {
	body := ollamaChatRequest{Model: req.Model, Stream: false}
	if body.Model == "" {
		body.Model = name
	}

	options := map[string]any{}
	if req.Config != nil {
		if req.Config.SystemInstruction != nil {
			if text := utils.ExtractContentText(req.Config.SystemInstruction); text != "" {
				body.Messages = append(body.Messages, ollamaMessage{Role: "system", Content: text})
			}
		}
		if req.Config.Temperature != nil {
			options["temperature"] = *req.Config.Temperature
		}
		if req.Config.MaxOutputTokens > 0 {
			options["num_predict"] = req.Config.MaxOutputTokens
		}
		if req.Config.TopP != nil {
			options["top_p"] = *req.Config.TopP
		}
		if req.Config.ResponseMIMEType == jsonMIMEType {
			if s, ok := req.Config.ResponseJsonSchema.(*jsonschema.Schema); ok && s != nil {
				body.Format = convertSchemaToJSONSchema(s)
			} else {
				body.Format = "json"
			}
		}
	}
	if layers, ok := gpuLayersFrom(ctx); ok {
		options["num_gpu"] = layers
	}
	if len(options) > 0 {
		body.Options = options
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		role := "user"
		switch content.Role {
		case genai.RoleModel:
			role = "assistant"
		case "system":
			role = "system"
		}
		body.Messages = append(body.Messages, ollamaMessage{Role: role, Content: utils.ExtractContentText(content)})
	}
	return body
}
