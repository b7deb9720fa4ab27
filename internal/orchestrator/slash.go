package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var bareURLPattern = regexp.MustCompile(`https?://[^\s]+`)

// preprocessMessage implements the slash-command and bare-URL rewriting
// that runs before chat(): /browse and /search both resolve to an
// untrusted-context-wrapped message; anything else passes through
// unchanged.
func preprocessMessage(ctx context.Context, fetcher WebFetcher, userMessage, agentLocation string) string {
	trimmed := strings.TrimSpace(userMessage)

	switch {
	case strings.HasPrefix(trimmed, "/browse "):
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "/browse "))
		url, question := splitURLAndQuestion(rest)
		return browseAndWrap(ctx, fetcher, url, question)

	case strings.HasPrefix(trimmed, "/search "):
		query := normalizeSearchQuery(strings.TrimPrefix(trimmed, "/search "), agentLocation)
		return searchAndWrap(ctx, fetcher, query)

	default:
		if url := bareURLPattern.FindString(trimmed); url != "" {
			question := strings.TrimSpace(strings.Replace(trimmed, url, "", 1))
			return browseAndWrap(ctx, fetcher, url, question)
		}
		return userMessage
	}
}

func splitURLAndQuestion(rest string) (url, question string) {
	parts := strings.SplitN(rest, " ", 2)
	url = parts[0]
	if len(parts) == 2 {
		question = strings.TrimSpace(parts[1])
	}
	return url, question
}

func browseAndWrap(ctx context.Context, fetcher WebFetcher, url, question string) string {
	if question == "" {
		question = fmt.Sprintf("Summarize the key information from %s", url)
	}
	body, err := fetcher.Browse(ctx, url)
	if err != nil {
		body = fmt.Sprintf("Unable to browse %s: %s", url, err)
	}
	return wrapUntrustedContext(url, body, question)
}

func searchAndWrap(ctx context.Context, fetcher WebFetcher, query string) string {
	results, err := fetcher.Search(ctx, query)
	if err != nil {
		results = fmt.Sprintf("Unable to search for %q: %s", query, err)
	}
	return wrapUntrustedContext("web search: "+query, results, query)
}

func normalizeSearchQuery(query, agentLocation string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if agentLocation != "" && strings.Contains(strings.ToLower(normalized), "near me") {
		re := regexp.MustCompile(`(?i)near me`)
		normalized = re.ReplaceAllString(normalized, "near "+agentLocation)
	}
	if len(normalized) > 300 {
		normalized = normalized[:300]
	}
	return normalized
}
