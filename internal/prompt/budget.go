package prompt

import "strings"

// assembleWithBudget joins before..episodes..after with blank-line
// separators and enforces the 4000-word budget: episodes are dropped from
// the end one at a time until the assembled text fits, or all episodes are
// gone; if still over budget, the result is hard-truncated at 4000 words
// with a trailing ellipsis.
func assembleWithBudget(before, episodeLines, after []string) Result {
	remaining := append([]string(nil), episodeLines...)
	dropped := 0

	for {
		text := join(before, remaining, after)
		if wordCount(text) <= wordBudget || len(remaining) == 0 {
			if wordCount(text) <= wordBudget {
				return Result{Prompt: text, EpisodesDropped: dropped}
			}
			return Result{Prompt: hardTruncate(text, wordBudget), EpisodesDropped: dropped}
		}
		remaining = remaining[:len(remaining)-1]
		dropped++
	}
}

func join(before, episodeLines, after []string) string {
	var layers []string
	layers = append(layers, nonEmpty(before)...)
	if len(episodeLines) > 0 {
		layers = append(layers, strings.Join(episodeLines, "\n"))
	}
	layers = append(layers, nonEmpty(after)...)
	return strings.Join(layers, "\n\n")
}

func nonEmpty(layers []string) []string {
	var out []string
	for _, l := range layers {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

func hardTruncate(s string, words int) string {
	fields := strings.Fields(s)
	if len(fields) <= words {
		return s
	}
	return strings.Join(fields[:words], " ") + " ..."
}
