// Package platform implements the per-platform inbound-to-agent-to-outbound
// bridge shared by every channel adapter: auth gating, rate limiting,
// transcript stitching, and handing the turn to the orchestrator.
package platform

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hiveagent/hive/internal/export"
	"github.com/hiveagent/hive/internal/integrations"
	"github.com/hiveagent/hive/internal/memory"
	"github.com/hiveagent/hive/internal/orchestrator"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

// exportHistoryLimit is a large-enough ListMessages limit to fetch a
// whole conversation's transcript for export in one call.
const exportHistoryLimit = 1 << 20

// defaultRateLimitWindow matches spec.md §4.H's literal "< 3s" minimum
// gap between allowed messages from the same (platform, from) pair.
const defaultRateLimitWindow = 3 * time.Second

// InboundMessage is the platform-agnostic shape every adapter shell
// translates its SDK's event into.
type InboundMessage struct {
	Platform  string
	From      string
	Text      string
	MessageID string
	Timestamp time.Time
}

// OutboundMessage is the platform-agnostic reply every adapter shell
// translates back into an SDK send call.
type OutboundMessage struct {
	Platform string
	To       string
	ReplyTo  string
	Text     string
}

// LongTermMemory is the optional collaborator that builds a richer
// context system prompt from long-term memory instead of the
// orchestrator's own default assembly. When present, the legacy episode
// store is disabled for the turn (the collaborator owns episode writes).
type LongTermMemory interface {
	Build(ctx context.Context, text string) (string, error)
}

// Handler drives the eight steps of the platform message handler.
type Handler struct {
	store        *store.Store
	integrations *integrations.Store
	memoryPipe   *memory.Pipeline
	longTerm     LongTermMemory
	exporter     *export.Exporter
	limiter      *senderRateLimiter
	logger       *slog.Logger
	homeDir      string

	mu           sync.RWMutex
	orchestrator *orchestrator.Orchestrator
}

// New constructs a Handler. longTerm may be nil, in which case the
// orchestrator's own prompt assembly and legacy episode store are used.
// exporter may be nil, in which case turns are never mirrored to
// <homeDir>/exports. rateLimitWindow <= 0 falls back to
// defaultRateLimitWindow.
func New(st *store.Store, integrationsStore *integrations.Store, orch *orchestrator.Orchestrator, memoryPipe *memory.Pipeline, longTerm LongTermMemory, exporter *export.Exporter, homeDir string, rateLimitWindow time.Duration, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if rateLimitWindow <= 0 {
		rateLimitWindow = defaultRateLimitWindow
	}
	return &Handler{
		store:        st,
		integrations: integrationsStore,
		orchestrator: orch,
		memoryPipe:   memoryPipe,
		longTerm:     longTerm,
		exporter:     exporter,
		limiter:      newSenderRateLimiter(rateLimitWindow),
		logger:       logger.With("component", "platform"),
		homeDir:      homeDir,
	}
}

// SetOrchestrator rebinds the orchestrator the handler dispatches chat
// turns to. The daemon calls this when the provider is lazily
// (re)initialized after a boot-time construction failure, so already-running
// adapters pick up the newly available agent without restarting.
func (h *Handler) SetOrchestrator(o *orchestrator.Orchestrator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orchestrator = o
}

func (h *Handler) getOrchestrator() *orchestrator.Orchestrator {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.orchestrator
}

// Handle runs the eight-step inbound message flow and always returns an
// OutboundMessage — orchestrator failures are folded into a literal
// error-reply text rather than surfaced to the caller, per spec.
func (h *Handler) Handle(ctx context.Context, msg InboundMessage) OutboundMessage {
	reply := func(text string) OutboundMessage {
		return OutboundMessage{Platform: msg.Platform, To: msg.From, ReplyTo: msg.MessageID, Text: text}
	}

	authorized, err := h.integrations.IsAuthorized(msg.Platform, msg.From)
	if err != nil {
		h.logger.Error("check authorization", "error", err)
		return reply("Error generating response. Check " + h.homeDir + "/daemon.log.")
	}
	if !authorized {
		if _, err := h.integrations.UpsertPending(msg.Platform, msg.From, msg.Timestamp, msg.Text); err != nil {
			h.logger.Error("upsert pending", "error", err)
		}
		return reply("Not authorized. An operator must approve your access before I can reply.")
	}

	if !h.limiter.Allow(rateLimitKey(msg.Platform, msg.From), msg.Timestamp) {
		return reply("Rate limited. Please wait a moment before sending another message.")
	}

	if h.getOrchestrator() == nil {
		return reply("daemon running but agent not initialized")
	}

	pc, err := h.store.GetPlatformConversation(ctx, msg.Platform, msg.From)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("load platform conversation", "error", err)
		return reply("Error generating response. Check " + h.homeDir + "/daemon.log.")
	}
	var turns []Turn
	if pc != nil {
		turns = decodeTranscript(pc.Messages)
	}
	turns = append(turns, Turn{Role: string(models.RoleUser), Text: msg.Text, Timestamp: msg.Timestamp})

	conversationID, err := h.ensureConversationID(ctx, msg.Platform, msg.From)
	if err != nil {
		h.logger.Error("resolve conversation for platform sender", "error", err)
		return reply("Error generating response. Check " + h.homeDir + "/daemon.log.")
	}

	opts := orchestrator.Options{
		ConversationID: conversationID,
		SystemAddition: historySystemAddition(turns, historyWindow),
	}
	if h.longTerm != nil {
		contextPrompt, err := h.longTerm.Build(ctx, msg.Text)
		if err != nil {
			h.logger.Warn("long-term memory build failed, falling back to default prompt", "error", err)
		} else {
			opts.ContextSystemPrompt = contextPrompt
			opts.DisableLegacyEpisodeStore = true
		}
	}

	assistantText, err := h.runChat(ctx, msg.Text, opts)
	if err != nil {
		h.logger.Error("orchestrator chat failed", "error", err)
		return reply("Error generating response. Check " + h.homeDir + "/daemon.log.")
	}

	turns = append(turns, Turn{Role: string(models.RoleAssistant), Text: assistantText, Timestamp: msg.Timestamp})
	encoded, err := encodeTranscript(turns)
	if err != nil {
		h.logger.Error("encode transcript", "error", err)
	} else if _, err := h.store.UpsertPlatformConversation(ctx, msg.Platform, msg.From, encoded); err != nil {
		h.logger.Error("persist platform conversation", "error", err)
	}

	if h.exporter != nil {
		h.exportConversation(ctx, conversationID)
	}

	return reply(assistantText)
}

// exportConversation mirrors a conversation's full transcript to
// <homeDir>/exports after a turn completes. Failure is logged, never
// surfaced to the sender — the export is a convenience, not part of the
// chat contract.
func (h *Handler) exportConversation(ctx context.Context, conversationID string) {
	messages, err := h.store.ListMessages(ctx, conversationID, exportHistoryLimit)
	if err != nil {
		h.logger.Error("load conversation for export", "error", err)
		return
	}
	if err := h.exporter.Export(ctx, conversationID, messages); err != nil {
		h.logger.Error("export conversation", "error", err)
	}
}

// ensureConversationID maps (platform, from) to a stable store
// Conversation, so repeated messages accumulate in one history instead of
// minting a fresh conversation every turn. The mapping itself lives in
// Meta, keyed by platform and sender.
func (h *Handler) ensureConversationID(ctx context.Context, platform, from string) (string, error) {
	key := "platform_conversation_id:" + platform + ":" + from
	if id, ok, err := h.store.GetMeta(ctx, key); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	agent, err := h.store.PrimaryAgent(ctx)
	if err != nil {
		return "", err
	}
	conv, err := h.store.CreateConversation(ctx, agent.ID, platform+":"+from)
	if err != nil {
		return "", err
	}
	if err := h.store.SetMeta(ctx, key, conv.ID); err != nil {
		return "", err
	}
	return conv.ID, nil
}

// runChat drains the orchestrator's event stream into one string. Passive
// memory scheduling for the resulting exchange happens inside the
// orchestrator itself (its onExchange hook), so the handler does not
// schedule it again here.
func (h *Handler) runChat(ctx context.Context, text string, opts orchestrator.Options) (string, error) {
	events, err := h.getOrchestrator().Chat(ctx, text, opts)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for ev := range events {
		if ev.Err != nil {
			return b.String(), ev.Err
		}
		b.WriteString(ev.Token)
		if ev.Done {
			break
		}
	}
	return b.String(), nil
}
