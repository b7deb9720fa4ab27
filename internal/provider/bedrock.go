package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// bedrockProvider serves foundation models hosted on AWS Bedrock (Claude,
// Titan, Llama, ...) through the Converse/ConverseStream API. Supplemental
// to the spec's named providers: offered as an alternate Anthropic/Llama
// route for deployments that already run inside AWS.
type bedrockProvider struct {
	client       *bedrockruntime.Client
	defaultModel string
}

// BedrockConfig configures the Bedrock provider. Credentials are resolved
// through the default AWS SDK chain (env, shared config, IAM role).
type BedrockConfig struct {
	Region       string
	DefaultModel string
}

var bedrockModels = []Model{
	{ID: "anthropic.claude-3-sonnet-20240229-v1:0", ContextSize: 200000},
	{ID: "anthropic.claude-3-haiku-20240307-v1:0", ContextSize: 200000},
	{ID: "meta.llama3-70b-instruct-v1:0", ContextSize: 8192},
}

// NewBedrock constructs the Bedrock Provider.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (Provider, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}
	defaultModel := cfg.DefaultModel
	if defaultModel == "" {
		defaultModel = bedrockModels[0].ID
	}
	return &bedrockProvider{
		client:       bedrockruntime.NewFromConfig(awsCfg),
		defaultModel: defaultModel,
	}, nil
}

func (p *bedrockProvider) Name() string         { return "bedrock" }
func (p *bedrockProvider) Models() []Model      { return bedrockModels }
func (p *bedrockProvider) DefaultModel() string { return p.defaultModel }
func (p *bedrockProvider) SupportsTools() bool  { return true }

func (p *bedrockProvider) Ping(ctx context.Context) error {
	_, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(p.defaultModel),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ping"}},
		}},
	})
	return err
}

func (p *bedrockProvider) model(req string) string {
	if req == "" {
		return p.defaultModel
	}
	return req
}

func (p *bedrockProvider) convertMessages(messages []Message) (converted []types.Message, system []types.SystemContentBlock) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		converted = append(converted, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	return converted, system
}

func (p *bedrockProvider) CompleteChat(ctx context.Context, req Request) (CompletionResult, error) {
	messages, system := p.convertMessages(req.Messages)
	resp, err := p.client.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId:  aws.String(p.model(req.Model)),
		Messages: messages,
		System:   system,
	})
	if err != nil {
		return CompletionResult{}, ClassifyError(err, 0)
	}
	var result CompletionResult
	if out, ok := resp.Output.(*types.ConverseOutputMemberMessage); ok {
		for _, block := range out.Value.Content {
			if text, ok := block.(*types.ContentBlockMemberText); ok {
				result.Content += text.Value
			}
		}
	}
	return result, nil
}

// StreamChat consumes the ConverseStream event channel, forwarding text
// deltas the way the teacher's processStream switches on content-block
// event variants.
func (p *bedrockProvider) StreamChat(ctx context.Context, req Request) (<-chan Chunk, error) {
	messages, system := p.convertMessages(req.Messages)
	resp, err := p.client.ConverseStream(ctx, &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(p.model(req.Model)),
		Messages: messages,
		System:   system,
	})
	if err != nil {
		return nil, ClassifyError(err, 0)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		stream := resp.GetStream()
		defer stream.Close()
		for event := range stream.Events() {
			select {
			case <-ctx.Done():
				out <- Chunk{Error: ctx.Err()}
				return
			default:
			}
			switch e := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockDelta:
				if delta, ok := e.Value.Delta.(*types.ContentBlockDeltaMemberText); ok {
					out <- Chunk{Text: delta.Value}
				}
			case *types.ConverseStreamOutputMemberMessageStop:
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
