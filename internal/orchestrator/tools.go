package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/hiveagent/hive/internal/provider"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// webSearchArgs is the one tool the orchestrator advertises to providers
// that support tool calling.
type webSearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=The search query"`
}

var webSearchTool provider.Tool
var webSearchValidator *jsonschemav5.Schema

func init() {
	schema := jsonschema.Reflect(&webSearchArgs{})
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("orchestrator: failed to generate web_search schema: %v", err))
	}
	webSearchTool = provider.Tool{
		Name:        "web_search",
		Description: "Search the web for current information and return a short summary of results.",
		Schema:      raw,
	}

	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource("web_search_args.json", strings.NewReader(string(raw))); err != nil {
		panic(fmt.Sprintf("orchestrator: failed to register web_search schema: %v", err))
	}
	webSearchValidator, err = compiler.Compile("web_search_args.json")
	if err != nil {
		panic(fmt.Sprintf("orchestrator: failed to compile web_search schema: %v", err))
	}
}

// parseToolArgs accepts either a JSON object with a string "query" field or
// a bare non-JSON string used directly as the query, per the tagged-variant
// design note; anything else is rejected.
func parseToolArgs(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty arguments")
	}

	var asAny any
	if err := json.Unmarshal([]byte(trimmed), &asAny); err == nil {
		if err := webSearchValidator.Validate(asAny); err == nil {
			var args webSearchArgs
			_ = json.Unmarshal([]byte(trimmed), &args)
			return args.Query, nil
		}
		if _, isString := asAny.(string); !isString {
			return "", fmt.Errorf("invalid search arguments")
		}
	}

	// Not valid JSON at all, or a bare JSON string: accept the raw text
	// (minus surrounding quotes if it decoded as a JSON string) as the
	// literal query.
	var bare string
	if err := json.Unmarshal([]byte(trimmed), &bare); err == nil {
		trimmed = bare
	}
	if trimmed == "" {
		return "", fmt.Errorf("invalid search arguments")
	}
	return trimmed, nil
}

// executeToolCall runs call and reports whether the outcome counts as an
// error for the ToolCallLog audit trail (store.RecordToolCall).
func executeToolCall(ctx context.Context, fetcher WebFetcher, call provider.ToolCall) (string, bool) {
	if call.Name != "web_search" {
		return fmt.Sprintf("Unknown tool %q", call.Name), true
	}
	query, err := parseToolArgs(call.Arguments)
	if err != nil {
		return "Invalid search arguments: " + err.Error(), true
	}
	results, err := fetcher.Search(ctx, query)
	if err != nil {
		return fmt.Sprintf("Unable to search for %q: %s", query, err), true
	}
	return wrapUntrustedContext("web search: "+query, results, ""), false
}
