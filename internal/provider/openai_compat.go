package provider

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// openaiCompatProvider serves any backend that speaks the OpenAI
// chat-completions wire format: OpenAI itself, Groq, Mistral,
// OpenRouter, and Together all expose this protocol, differing only in
// base URL and model catalog.
type openaiCompatProvider struct {
	name         string
	client       *openai.Client
	models       []Model
	defaultModel string
	toolsEnabled bool
}

// OpenAICompatConfig configures one OpenAI-wire-format backend.
type OpenAICompatConfig struct {
	Name         string
	APIKey       string
	BaseURL      string // empty uses the official OpenAI endpoint
	Models       []Model
	DefaultModel string
	// ToolsEnabled is false for Groq, per spec §4.B.
	ToolsEnabled bool
}

// NewOpenAICompat constructs a Provider for any OpenAI-wire-format
// backend.
func NewOpenAICompat(cfg OpenAICompatConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", cfg.Name)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openaiCompatProvider{
		name:         cfg.Name,
		client:       openai.NewClientWithConfig(clientCfg),
		models:       cfg.Models,
		defaultModel: cfg.DefaultModel,
		toolsEnabled: cfg.ToolsEnabled,
	}, nil
}

func (p *openaiCompatProvider) Name() string         { return p.name }
func (p *openaiCompatProvider) Models() []Model      { return p.models }
func (p *openaiCompatProvider) DefaultModel() string { return p.defaultModel }
func (p *openaiCompatProvider) SupportsTools() bool  { return p.toolsEnabled }

func (p *openaiCompatProvider) Ping(ctx context.Context) error {
	_, err := p.client.ListModels(ctx)
	return err
}

func (p *openaiCompatProvider) StreamChat(ctx context.Context, req Request) (<-chan Chunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, toOpenAIRequest(req, true))
	if err != nil {
		return nil, ClassifyError(err, 0)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- Chunk{Done: true}
				return
			}
			if err != nil {
				out <- Chunk{Error: ClassifyError(err, 0)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if text := resp.Choices[0].Delta.Content; text != "" {
				out <- Chunk{Text: text}
			}
		}
	}()
	return out, nil
}

func (p *openaiCompatProvider) CompleteChat(ctx context.Context, req Request) (CompletionResult, error) {
	resp, err := p.client.CreateChatCompletion(ctx, toOpenAIRequest(req, false))
	if err != nil {
		return CompletionResult{}, ClassifyError(err, 0)
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("%s: empty response", p.name)
	}
	msg := resp.Choices[0].Message
	result := CompletionResult{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return result, nil
}

func toOpenAIRequest(req Request, stream bool) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:     req.Model,
		Stream:    stream,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		out.Temperature = float32(*req.Temperature)
	}
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out.Messages = append(out.Messages, msg)
	}
	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Schema,
			},
		})
	}
	return out
}
