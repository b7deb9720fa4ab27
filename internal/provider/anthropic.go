package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicProvider serves Claude models via the official SDK. It always
// supports tools.
type anthropicProvider struct {
	client       anthropic.Client
	models       []Model
	defaultModel string
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

var anthropicModels = []Model{
	{ID: "claude-sonnet-4-20250514", ContextSize: 200000},
	{ID: "claude-opus-4-20250514", ContextSize: 200000},
	{ID: "claude-3-5-sonnet-20241022", ContextSize: 200000},
	{ID: "claude-3-haiku-20240307", ContextSize: 200000},
}

// NewAnthropic constructs the Anthropic Provider.
func NewAnthropic(cfg AnthropicConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = anthropicModels[0].ID
	}
	return &anthropicProvider{
		client:       anthropic.NewClient(opts...),
		models:       anthropicModels,
		defaultModel: defaultModel,
	}, nil
}

func (p *anthropicProvider) Name() string         { return "anthropic" }
func (p *anthropicProvider) Models() []Model      { return p.models }
func (p *anthropicProvider) DefaultModel() string { return p.defaultModel }
func (p *anthropicProvider) SupportsTools() bool  { return true }

func (p *anthropicProvider) Ping(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	return err
}

func (p *anthropicProvider) buildParams(req Request) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = 4096
	}

	var system string
	var messages []anthropic.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}
	params.Messages = messages
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, t := range req.Tools {
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(t.Schema, &schema)
		params.Tools = append(params.Tools, anthropic.ToolUnionParamOfTool(schema, t.Name))
	}
	return params
}

func (p *anthropicProvider) CompleteChat(ctx context.Context, req Request) (CompletionResult, error) {
	resp, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return CompletionResult{}, ClassifyError(err, 0)
	}
	var result CompletionResult
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			result.Content += b.Text
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(b.Input),
			})
		}
	}
	return result, nil
}

// StreamChat consumes the Anthropic SSE stream, accumulating tool-use
// input deltas by content-block index the way the teacher's
// processStream does, and emits only text chunks since the streaming
// path (§4.E) never needs tool calls mid-stream.
func (p *anthropicProvider) StreamChat(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream := p.client.Messages.NewStreaming(ctx, p.buildParams(req))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for stream.Next() {
			event := stream.Current()
			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if text := e.Delta.Text; text != "" {
					out <- Chunk{Text: text}
				}
			case anthropic.MessageStopEvent:
				out <- Chunk{Done: true}
				return
			}
		}
		if err := stream.Err(); err != nil {
			out <- Chunk{Error: ClassifyError(err, 0)}
			return
		}
		out <- Chunk{Done: true}
	}()
	return out, nil
}
