// Package prompt builds the layered system prompt described in the daemon's
// component design: persona, profile, pinned knowledge, relevant episodes,
// an optional mode prompt, local prompt files, and the current time,
// concatenated with blank-line separators and held to a word budget.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hiveagent/hive/internal/store"
	"github.com/hiveagent/hive/pkg/models"
)

const (
	maxEpisodes = 3
	wordBudget  = 4000
)

// Assembler builds system prompts for one agent's conversations.
type Assembler struct {
	store *store.Store
	files *fileLayerCache
}

// New constructs an Assembler reading local prompt files from
// <homeDir>/prompts.
func New(st *store.Store, homeDir string) *Assembler {
	return &Assembler{
		store: st,
		files: newFileLayerCache(homeDir + "/prompts"),
	}
}

// Close releases the file-layer watcher.
func (a *Assembler) Close() error {
	return a.files.Close()
}

// Result is the assembled prompt plus budgeting telemetry.
type Result struct {
	Prompt          string
	EpisodesDropped int
}

// Build assembles the seven-layer system prompt for one chat turn.
func (a *Assembler) Build(ctx context.Context, agent models.Agent, userQuery, modePrompt string) (Result, error) {
	episodes, err := a.store.FindRelevantEpisodes(ctx, userQuery, maxEpisodes)
	if err != nil {
		return Result{}, err
	}

	pinnedLayer, err := a.pinnedKnowledgeLayer(ctx)
	if err != nil {
		return Result{}, err
	}
	before := []string{personaLayer(agent), profileLayer(agent), pinnedLayer}

	var after []string
	if strings.TrimSpace(modePrompt) != "" {
		after = append(after, modePrompt)
	}
	filesLayer, err := a.files.render(agent)
	if err != nil {
		return Result{}, err
	}
	if filesLayer != "" {
		after = append(after, filesLayer)
	}
	after = append(after, timeLayer())

	return assembleWithBudget(before, episodeLayerLines(episodes), after), nil
}

func personaLayer(agent models.Agent) string {
	if agent.Persona == "" {
		return ""
	}
	return agent.Persona
}

func profileLayer(agent models.Agent) string {
	var lines []string
	if agent.AgentName != "" {
		lines = append(lines, fmt.Sprintf("Name: %s", agent.AgentName))
	}
	if agent.DOB != "" {
		lines = append(lines, fmt.Sprintf("Date of birth: %s", agent.DOB))
	}
	if agent.Location != "" {
		lines = append(lines, fmt.Sprintf("Location: %s", agent.Location))
	}
	if agent.Profession != "" {
		lines = append(lines, fmt.Sprintf("Profession: %s", agent.Profession))
	}
	if agent.AboutRaw != "" {
		lines = append(lines, agent.AboutRaw)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func (a *Assembler) pinnedKnowledgeLayer(ctx context.Context) (string, error) {
	rows, err := a.store.ListPinnedKnowledge(ctx)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "(no pinned knowledge)", nil
	}
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = "- " + r.Content
	}
	return strings.Join(lines, "\n"), nil
}

func episodeLayerLines(episodes []*models.Episode) []string {
	lines := make([]string, len(episodes))
	for i, e := range episodes {
		lines[i] = "- " + e.Content
	}
	return lines
}

func timeLayer() string {
	now := time.Now()
	return fmt.Sprintf("Current time: %s (%s)", now.Format(time.RFC3339), now.Format("Monday, January 2, 2006 3:04 PM MST"))
}
