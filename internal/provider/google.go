package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"
)

// googleProvider serves Gemini models via the Google Gen AI SDK.
type googleProvider struct {
	client       *genai.Client
	models       []Model
	defaultModel string
}

// GoogleConfig configures the Google provider.
type GoogleConfig struct {
	APIKey       string
	DefaultModel string
}

var googleModels = []Model{
	{ID: "gemini-2.0-flash", ContextSize: 1000000},
	{ID: "gemini-1.5-pro", ContextSize: 2000000},
	{ID: "gemini-1.5-flash", ContextSize: 1000000},
}

// NewGoogle constructs the Google Provider.
func NewGoogle(ctx context.Context, cfg GoogleConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = googleModels[0].ID
	}
	return &googleProvider{client: client, models: googleModels, defaultModel: defaultModel}, nil
}

func (p *googleProvider) Name() string         { return "google" }
func (p *googleProvider) Models() []Model      { return p.models }
func (p *googleProvider) DefaultModel() string { return p.defaultModel }
func (p *googleProvider) SupportsTools() bool  { return true }

func (p *googleProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.GenerateContent(ctx, p.model(""), genai.Text("ping"), nil)
	return err
}

func (p *googleProvider) model(req string) string {
	if req == "" {
		return p.defaultModel
	}
	return req
}

// convertMessages splits system messages into a separate instruction, the
// way the teacher's provider does, since Gemini has no "system" role.
func (p *googleProvider) convertMessages(messages []Message) (contents []*genai.Content, system string) {
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case RoleUser, RoleTool:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		case RoleAssistant:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return contents, system
}

func (p *googleProvider) buildConfig(req Request, system string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	for _, t := range req.Tools {
		var schema genai.Schema
		_ = json.Unmarshal(t.Schema, &schema)
		cfg.Tools = append(cfg.Tools, &genai.Tool{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  &schema,
			}},
		})
	}
	return cfg
}

func (p *googleProvider) CompleteChat(ctx context.Context, req Request) (CompletionResult, error) {
	contents, system := p.convertMessages(req.Messages)
	resp, err := p.client.Models.GenerateContent(ctx, p.model(req.Model), contents, p.buildConfig(req, system))
	if err != nil {
		return CompletionResult{}, ClassifyError(err, 0)
	}
	var result CompletionResult
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				result.Content += part.Text
			}
			if part.FunctionCall != nil {
				args, _ := json.Marshal(part.FunctionCall.Args)
				result.ToolCalls = append(result.ToolCalls, ToolCall{
					ID:        fmt.Sprintf("call_%s", part.FunctionCall.Name),
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				})
			}
		}
	}
	return result, nil
}

// StreamChat consumes the Gemini streaming iterator, forwarding text parts
// only; tool calls are driven through CompleteChat in the orchestrator's
// non-streaming tool-loop path.
func (p *googleProvider) StreamChat(ctx context.Context, req Request) (<-chan Chunk, error) {
	contents, system := p.convertMessages(req.Messages)
	iterSeq := p.client.Models.GenerateContentStream(ctx, p.model(req.Model), contents, p.buildConfig(req, system))

	out := make(chan Chunk)
	go func() {
		defer close(out)
		for resp, err := range iterSeq {
			select {
			case <-ctx.Done():
				out <- Chunk{Error: ctx.Err()}
				return
			default:
			}
			if err != nil {
				out <- Chunk{Error: ClassifyError(err, 0)}
				return
			}
			if resp == nil {
				continue
			}
			for _, cand := range resp.Candidates {
				if cand.Content == nil {
					continue
				}
				for _, part := range cand.Content.Parts {
					if part.Text != "" {
						out <- Chunk{Text: part.Text}
					}
				}
			}
		}
		out <- Chunk{Done: true}
	}()
	return out, nil
}
