package search

import (
	"errors"

	"github.com/iksnae/deep-research/internal"
)

// ToolName is the name the model uses to call the search capability
const ToolName = "search"

// Tool describes the search capability for the model's tool catalogue
func Tool() internal.ToolSpec {
	return internal.ToolSpec{
		Name:        ToolName,
		Description: "Web Search API, works like Google Search.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"queries": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Search directly by queries. All queries will be searched in parallel. If you want to search with multiple keywords, put them in a single query.",
				},
			},
			"required": []string{"queries"},
		},
	}
}

// ParseQueries extracts the query list from a search tool call
func ParseQueries(call internal.ToolCall) ([]string, error) {
	var args struct {
		Queries []string `json:"queries"`
	}
	if err := call.DecodeArguments(&args); err != nil {
		return nil, err
	}
	if args.Queries == nil {
		return nil, errors.New(`missing "queries" argument`)
	}
	return args.Queries, nil
}
