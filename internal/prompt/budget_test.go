package prompt

import "testing"

func TestAssembleWithBudgetFitsWithoutDropping(t *testing.T) {
	result := assembleWithBudget(
		[]string{"persona", "profile", "pinned"},
		[]string{"- episode one", "- episode two"},
		[]string{"mode", "files", "time"},
	)
	if result.EpisodesDropped != 0 {
		t.Fatalf("EpisodesDropped = %d, want 0", result.EpisodesDropped)
	}
	if wordCount(result.Prompt) == 0 {
		t.Fatal("expected non-empty prompt")
	}
}

func TestAssembleWithBudgetDropsEpisodesFromEndFirst(t *testing.T) {
	before := []string{wordsOf("persona", 3999)}
	episodes := []string{wordsOf("oldest", 1), wordsOf("newest", 50)}

	result := assembleWithBudget(before, episodes, nil)
	if result.EpisodesDropped != 1 {
		t.Fatalf("EpisodesDropped = %d, want 1 (only the last episode dropped)", result.EpisodesDropped)
	}
}

func TestAssembleWithBudgetHardTruncatesWhenStillOver(t *testing.T) {
	before := []string{wordsOf("persona", 5000)}
	result := assembleWithBudget(before, nil, nil)
	if wordCount(result.Prompt) != wordBudget+1 { // +1 for the trailing ellipsis token
		t.Fatalf("word count = %d, want %d", wordCount(result.Prompt), wordBudget+1)
	}
	if result.Prompt[len(result.Prompt)-3:] != "..." {
		t.Fatalf("expected trailing ellipsis, got %q", result.Prompt[len(result.Prompt)-10:])
	}
}

func TestNonEmptyFiltersBlankLayers(t *testing.T) {
	got := nonEmpty([]string{"a", "", "  ", "b"})
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("nonEmpty = %v", got)
	}
}

func wordsOf(word string, n int) string {
	out := make([]byte, 0, n*(len(word)+1))
	for i := 0; i < n; i++ {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, word...)
	}
	return string(out)
}
