// Package orchestrator drives one chat turn: conversation resolution,
// prompt assembly, the tool loop or direct streaming, output sanitization,
// and persistence of the exchange.
package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hiveagent/hive/internal/prompt"
	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/resilience"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/internal/tracing"
	"github.com/hiveagent/hive/pkg/models"
)

const (
	maxHistoryMessages   = 80
	maxToolLoopRounds    = 4
	firstTokenTimeout    = 30 * time.Second
	legacyEpisodeMaxChar = 2000
	toolRetryAttempts    = 2
	toolRetryBackoff     = 2 * time.Second
)

// Options configures one chat() call.
type Options struct {
	ConversationID            string
	Model                     string
	Temperature               *float64
	MaxTokens                 int
	SystemAddition            string
	ContextSystemPrompt       string
	ModePrompt                string
	DisableLegacyEpisodeStore bool
}

// Event is one item of the chat() event stream.
type Event struct {
	Token     string
	Done      bool
	MessageID string
	Err       error
}

// Orchestrator ties the store, provider registry, prompt assembler, and
// web fetcher together to answer one chat turn at a time.
type Orchestrator struct {
	store      *store.Store
	registry   *provider.Registry
	assembler  *prompt.Assembler
	fetcher    WebFetcher
	onExchange func(conversationID, userText, assistantText string, episodeWritten bool)
	logger     *slog.Logger
	tracer     *tracing.Tracer
}

// New constructs an Orchestrator. onExchange, if non-nil, is invoked after
// every successful exchange to schedule passive memory (§4.F); it must not
// block. episodeWritten tells the passive memory pipeline whether this
// call already wrote the legacy episode, so it isn't duplicated. logger
// may be nil, in which case slog.Default() is used. tracer may be nil, in
// which case a no-op tracer is used (no OTLP endpoint configured).
func New(st *store.Store, registry *provider.Registry, assembler *prompt.Assembler, fetcher WebFetcher, onExchange func(conversationID, userText, assistantText string, episodeWritten bool), logger *slog.Logger, tracer *tracing.Tracer) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer, _ = tracing.New(tracing.Config{ServiceName: "hived-orchestrator"})
	}
	return &Orchestrator{store: st, registry: registry, assembler: assembler, fetcher: fetcher, onExchange: onExchange, logger: logger.With("component", "orchestrator"), tracer: tracer}
}

// Chat runs one turn and returns a channel of Events. The channel is
// closed after the Done event or an error event.
func (o *Orchestrator) Chat(ctx context.Context, userMessage string, opts Options) (<-chan Event, error) {
	trimmed := strings.TrimSpace(userMessage)
	if trimmed == "" {
		return nil, models.New(models.KindInvalidInput, "message is empty")
	}

	agent, err := o.store.PrimaryAgent(ctx)
	if err != nil {
		return nil, err
	}

	conv, err := o.resolveConversation(ctx, *agent, opts.ConversationID)
	if err != nil {
		return nil, err
	}

	effectiveMessage := preprocessMessage(ctx, o.fetcher, userMessage, agent.Location)
	if _, err := o.store.AppendMessage(ctx, conv.ID, models.RoleUser, effectiveMessage); err != nil {
		return nil, err
	}

	history, err := o.store.ListMessages(ctx, conv.ID, maxHistoryMessages)
	if err != nil {
		return nil, err
	}

	systemPrompt, episodesDropped, err := o.buildSystemPrompt(ctx, *agent, opts, effectiveMessage)
	if err != nil {
		return nil, err
	}
	_ = episodesDropped

	p, err := o.registry.Get("")
	if err != nil {
		return nil, err
	}

	req := provider.Request{
		Model:       coalesce(opts.Model, p.DefaultModel()),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages:    buildProviderMessages(systemPrompt, history),
	}

	events := make(chan Event)
	go o.run(ctx, p, conv, userMessage, effectiveMessage, req, opts, events)
	return events, nil
}

func (o *Orchestrator) resolveConversation(ctx context.Context, agent models.Agent, conversationID string) (*models.Conversation, error) {
	if conversationID == "" {
		return o.store.CreateConversation(ctx, agent.ID, "")
	}
	conv, err := o.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.AgentID != agent.ID {
		return nil, models.New(models.KindAuthMismatch, "conversation does not belong to the primary agent")
	}
	return conv, nil
}

func (o *Orchestrator) buildSystemPrompt(ctx context.Context, agent models.Agent, opts Options, userMessage string) (string, int, error) {
	if opts.ContextSystemPrompt != "" {
		text := opts.ContextSystemPrompt
		if opts.SystemAddition != "" {
			text += "\n\n" + opts.SystemAddition
		}
		return text, 0, nil
	}
	result, err := o.assembler.Build(ctx, agent, userMessage, opts.ModePrompt)
	if err != nil {
		return "", 0, err
	}
	text := result.Prompt
	if opts.SystemAddition != "" {
		text += "\n\n" + opts.SystemAddition
	}
	return text, result.EpisodesDropped, nil
}

func buildProviderMessages(systemPrompt string, history []*models.Message) []provider.Message {
	messages := []provider.Message{{Role: provider.RoleSystem, Content: runtimeGuardrails}}
	if systemPrompt != "" {
		messages = append(messages, provider.Message{Role: provider.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		messages = append(messages, provider.Message{Role: provider.Role(m.Role), Content: m.Content})
	}
	return messages
}

func (o *Orchestrator) run(ctx context.Context, p provider.Provider, conv *models.Conversation, originalUserMessage, effectiveUserMessage string, req provider.Request, opts Options, events chan<- Event) {
	defer close(events)

	var finalText string
	var err error
	if p.SupportsTools() {
		req.Tools = []provider.Tool{webSearchTool}
		finalText, err = o.toolLoop(ctx, p, conv.ID, req, events)
	} else {
		finalText, err = o.streamDirect(ctx, p, req, events)
	}

	if err != nil {
		if finalText != "" {
			o.persistInterrupted(ctx, conv.ID, finalText)
		}
		events <- Event{Err: err}
		return
	}

	sanitized := sanitizeOutput(originalUserMessage, finalText)
	msg, err := o.store.AppendMessage(ctx, conv.ID, models.RoleAssistant, sanitized)
	if err != nil {
		events <- Event{Err: err}
		return
	}

	episodeWritten := false
	if !opts.DisableLegacyEpisodeStore {
		summary := truncate(effectiveUserMessage+"\n"+sanitized, legacyEpisodeMaxChar)
		_, _ = o.store.InsertEpisode(ctx, summary)
		episodeWritten = true
	}

	if o.onExchange != nil {
		o.onExchange(conv.ID, effectiveUserMessage, sanitized, episodeWritten)
	}

	events <- Event{Done: true, MessageID: msg.ID}
}

func (o *Orchestrator) persistInterrupted(ctx context.Context, conversationID, partial string) {
	_, _ = o.store.AppendMessage(ctx, conversationID, models.RoleAssistant, partial+" [response interrupted]")
}

// toolLoop drives complete_chat through up to maxToolLoopRounds rounds,
// executing web_search tool calls between rounds. Every tool invocation is
// recorded as a ToolCallLog row via store.RecordToolCall, a best-effort
// audit trail: a logging failure never interrupts the loop.
func (o *Orchestrator) toolLoop(ctx context.Context, p provider.Provider, conversationID string, req provider.Request, events chan<- Event) (string, error) {
	messages := append([]provider.Message(nil), req.Messages...)

	for round := 0; round < maxToolLoopRounds; round++ {
		req.Messages = messages
		llmCtx, llmSpan := o.tracer.TraceLLMRequest(ctx, p.Name(), req.Model)
		result, err := resilience.RetryTransient(llmCtx, toolRetryAttempts, toolRetryBackoff, func(ctx context.Context) (provider.CompletionResult, error) {
			return p.CompleteChat(ctx, req)
		})
		o.tracer.RecordError(llmSpan, err)
		llmSpan.End()
		if err != nil {
			return "", err
		}

		if len(result.ToolCalls) == 0 {
			if result.Content != "" {
				events <- Event{Token: result.Content}
			}
			return result.Content, nil
		}

		messages = append(messages, provider.Message{Role: provider.RoleAssistant, Content: result.Content, ToolCalls: result.ToolCalls})
		for _, call := range result.ToolCalls {
			toolCtx, toolSpan := o.tracer.TraceToolExecution(ctx, call.Name)
			output, isError := executeToolCall(toolCtx, o.fetcher, call)
			toolSpan.End()
			if err := o.store.RecordToolCall(ctx, conversationID, call.Name, call.Arguments, output, isError); err != nil {
				o.logger.Warn("record tool call", "tool", call.Name, "error", err)
			}
			messages = append(messages, provider.Message{Role: provider.RoleTool, ToolCallID: call.ID, Content: output})
		}
	}

	return "I could not complete all required tool calls. Please try again.", nil
}

// streamDirect streams a provider response through the first-token
// timeout, retrying once if zero tokens were observed before a transient
// failure.
func (o *Orchestrator) streamDirect(ctx context.Context, p provider.Provider, req provider.Request, events chan<- Event) (string, error) {
	var builder strings.Builder
	tokensSeen := false
	retried := false

	for {
		llmCtx, llmSpan := o.tracer.TraceLLMRequest(ctx, p.Name(), req.Model)
		stream, err := p.StreamChat(llmCtx, req)
		if err != nil {
			o.tracer.RecordError(llmSpan, err)
			llmSpan.End()
			if !retried && resilience.IsTransient(err) && !tokensSeen {
				retried = true
				continue
			}
			return builder.String(), err
		}

		wrapped := resilience.WithFirstTokenTimeout(ctx, firstTokenTimeout, stream)
		streamFailed := error(nil)
		for chunk := range wrapped {
			if chunk.Error != nil {
				streamFailed = chunk.Error
				break
			}
			if chunk.Text != "" {
				tokensSeen = true
				builder.WriteString(chunk.Text)
				events <- Event{Token: chunk.Text}
			}
			if chunk.Done {
				break
			}
		}
		o.tracer.RecordError(llmSpan, streamFailed)
		llmSpan.End()

		if streamFailed == nil {
			return builder.String(), nil
		}
		if !retried && resilience.IsTransient(streamFailed) && !tokensSeen {
			retried = true
			continue
		}
		return builder.String(), streamFailed
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
