// Package memory runs the fire-and-forget passive memory pipeline: episode
// capture, fact extraction with token-overlap dedup, one-phrase emotional
// state capture, and periodic crystallization of recent episodes into
// pinned knowledge.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hiveagent/hive/internal/provider"
	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

const (
	legacyEpisodeMaxChars = 2000
	factExtractionTokens  = 200
	moodCaptureTokens     = 50
	crystallizationCount  = 10
)

// Config tunes the crystallization cadence (Open Question 1 in spec.md
// §9): how many episodes make up one crystallization window, and how
// recently the prior exchange must have happened for the window to
// count as continuous conversation.
type Config struct {
	CrystallizationEpisodeWindow int           `yaml:"crystallization_episode_window"`
	CrystallizationRecencyWindow time.Duration `yaml:"crystallization_recency_window"`
}

func (c Config) withDefaults() Config {
	if c.CrystallizationEpisodeWindow <= 0 {
		c.CrystallizationEpisodeWindow = crystallizationCount
	}
	if c.CrystallizationRecencyWindow <= 0 {
		c.CrystallizationRecencyWindow = 7 * 24 * time.Hour
	}
	return c
}

// Exchange is one completed turn handed to the pipeline.
type Exchange struct {
	ConversationID string
	UserText       string
	AssistantText  string
	EpisodeWritten bool
}

// MoodSink receives the one-phrase emotional state captured per exchange,
// forwarded to an optional long-term memory collaborator. A nil sink
// disables step 3 entirely.
type MoodSink interface {
	CaptureMood(ctx context.Context, conversationID, phrase string) error
}

// CrystalSink receives each deduplicated "most important things to know"
// string produced by crystallization, in addition to the store row
// already inserted. A nil sink disables forwarding, not crystallization
// itself.
type CrystalSink interface {
	CaptureCrystal(ctx context.Context, fact string) error
}

// Pipeline drives passive memory over a bounded worker pool so a burst of
// conversations cannot spawn unbounded goroutines.
type Pipeline struct {
	store    *store.Store
	provider provider.Provider
	logger   *slog.Logger
	cfg      Config
	mood     MoodSink
	crystal  CrystalSink
	pool     *workerPool
}

// New constructs a Pipeline. mood and crystal may be nil.
func New(st *store.Store, p provider.Provider, logger *slog.Logger, cfg Config, mood MoodSink, crystal CrystalSink) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	pl := &Pipeline{
		store:    st,
		provider: p,
		logger:   logger.With("component", "memory"),
		cfg:      cfg.withDefaults(),
		mood:     mood,
		crystal:  crystal,
	}
	pl.pool = newWorkerPool(2, 64, pl.process)
	return pl
}

// Start brings the pipeline's worker pool online. Must be called before
// Schedule.
func (pl *Pipeline) Start() {
	pl.pool.start()
}

// Stop drains in-flight jobs and shuts the pool down.
func (pl *Pipeline) Stop() {
	pl.pool.stop()
}

// Schedule enqueues one completed exchange for background processing.
// Fire-and-forget: if the queue is full the exchange is dropped and
// logged, never raised to the caller.
func (pl *Pipeline) Schedule(ex Exchange) {
	id := ex.ConversationID + ":" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if !pl.pool.submit(job{id: id, data: ex}) {
		pl.logger.Warn("passive memory queue full, dropping exchange", "conversation_id", ex.ConversationID)
	}
}

func (pl *Pipeline) process(ctx context.Context, ex Exchange) (struct{}, error) {
	if !ex.EpisodeWritten {
		pl.writeEpisode(ctx, ex)
	}
	pl.extractFacts(ctx, ex)
	pl.captureMood(ctx, ex)
	pl.maybeCrystallize(ctx, ex)
	return struct{}{}, nil
}

func (pl *Pipeline) writeEpisode(ctx context.Context, ex Exchange) {
	summary := ex.UserText + "\n" + ex.AssistantText
	if len(summary) > legacyEpisodeMaxChars {
		summary = summary[:legacyEpisodeMaxChars]
	}
	if _, err := pl.store.InsertEpisode(ctx, summary); err != nil {
		pl.logger.Error("write episode failed", "error", err)
	}
}

func (pl *Pipeline) extractFacts(ctx context.Context, ex Exchange) {
	facts, err := pl.askForStringArray(ctx, factExtractionTokens,
		"Extract any durable facts about the user worth remembering long-term from this exchange. "+
			"Respond with a JSON array of short strings, or [] if there are none.",
		ex.UserText, ex.AssistantText)
	if err != nil {
		pl.logger.Error("fact extraction failed", "error", err)
		return
	}
	for _, fact := range facts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		existing, err := pl.store.FindClosestKnowledge(ctx, fact)
		if err != nil {
			pl.logger.Error("knowledge dedup lookup failed", "error", err)
			continue
		}
		if len(existing) > 0 {
			continue
		}
		if _, err := pl.store.InsertKnowledge(ctx, fact, false, models.KnowledgeAuto); err != nil {
			pl.logger.Error("insert knowledge failed", "error", err)
		}
	}
}

func (pl *Pipeline) captureMood(ctx context.Context, ex Exchange) {
	if pl.mood == nil {
		return
	}
	phrase, err := pl.askForText(ctx, moodCaptureTokens,
		"Describe the user's emotional state during this exchange in one short phrase. "+
			"Respond with just the phrase, or an empty reply if it is neutral or unclear.",
		ex.UserText, ex.AssistantText)
	if err != nil {
		pl.logger.Error("mood capture failed", "error", err)
		return
	}
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return
	}
	if err := pl.mood.CaptureMood(ctx, ex.ConversationID, phrase); err != nil {
		pl.logger.Error("mood sink failed", "error", err)
	}
}

func (pl *Pipeline) maybeCrystallize(ctx context.Context, _ Exchange) {
	count, recencyOK, err := pl.advanceConversationCount(ctx)
	if err != nil {
		pl.logger.Error("advance conversation count failed", "error", err)
		return
	}
	if count%pl.cfg.CrystallizationEpisodeWindow != 0 || !recencyOK {
		return
	}

	episodes, err := pl.store.RecentEpisodes(ctx, pl.cfg.CrystallizationEpisodeWindow)
	if err != nil {
		pl.logger.Error("load episodes for crystallization failed", "error", err)
		return
	}
	if len(episodes) == 0 {
		return
	}
	var transcript strings.Builder
	for _, e := range episodes {
		transcript.WriteString(e.Content)
		transcript.WriteString("\n---\n")
	}

	important, err := pl.askForStringArray(ctx, factExtractionTokens,
		"From these recent conversation episodes, list the most important things to know about the "+
			"user going forward. Respond with a JSON array of short strings.",
		transcript.String(), "")
	if err != nil {
		pl.logger.Error("crystallization failed", "error", err)
		return
	}
	for _, fact := range important {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		existing, err := pl.store.FindClosestKnowledge(ctx, fact)
		if err != nil || len(existing) > 0 {
			continue
		}
		if _, err := pl.store.InsertKnowledge(ctx, fact, true, models.KnowledgeAutoCrystallized); err != nil {
			pl.logger.Error("insert crystallized knowledge failed", "error", err)
			continue
		}
		if pl.crystal != nil {
			if err := pl.crystal.CaptureCrystal(ctx, fact); err != nil {
				pl.logger.Error("crystal sink failed", "error", err)
			}
		}
	}
}

const metaConversationCount = "conversation_count"
const metaLastConversationAt = "last_conversation_at"

// advanceConversationCount increments conversation_count and stamps
// last_conversation_at, returning the new count and whether the previous
// stamp falls within the recency window.
func (pl *Pipeline) advanceConversationCount(ctx context.Context) (int, bool, error) {
	raw, ok, err := pl.store.GetMeta(ctx, metaConversationCount)
	if err != nil {
		return 0, false, err
	}
	count := 0
	if ok {
		count, _ = strconv.Atoi(raw)
	}
	count++

	recencyOK := false
	if lastRaw, ok, err := pl.store.GetMeta(ctx, metaLastConversationAt); err == nil && ok {
		if last, err := time.Parse(time.RFC3339, lastRaw); err == nil {
			recencyOK = time.Since(last) <= pl.cfg.CrystallizationRecencyWindow
		}
	}

	if err := pl.store.SetMeta(ctx, metaConversationCount, strconv.Itoa(count)); err != nil {
		return 0, false, err
	}
	if err := pl.store.SetMeta(ctx, metaLastConversationAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, false, err
	}
	return count, recencyOK, nil
}

func (pl *Pipeline) askForStringArray(ctx context.Context, maxTokens int, instruction, userText, assistantText string) ([]string, error) {
	text, err := pl.askForText(ctx, maxTokens, instruction, userText, assistantText)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("parse JSON array response: %w", err)
	}
	return out, nil
}

func (pl *Pipeline) askForText(ctx context.Context, maxTokens int, instruction, userText, assistantText string) (string, error) {
	content := "User: " + userText
	if assistantText != "" {
		content += "\nAssistant: " + assistantText
	}
	req := provider.Request{
		Model:     pl.provider.DefaultModel(),
		MaxTokens: maxTokens,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: instruction},
			{Role: provider.RoleUser, Content: content},
		},
	}
	result, err := pl.provider.CompleteChat(ctx, req)
	if err != nil {
		return "", err
	}
	return result.Content, nil
}
