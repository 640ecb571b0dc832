package internal

// NewTestTranscript returns a complete one-round transcript: system, user,
// an assistant search call, its tool result with two evidence items, and a
// final assistant answer.
func NewTestTranscript() []Turn {
	return []Turn{
		SystemTurn{Content: "You are a research agent."},
		UserTurn{Content: "weather today"},
		AssistantTurn{
			Reasoning: "Look up a forecast first.",
			ToolCalls: []ToolCall{NewTestSearchCall("call_1", "weather today")},
		},
		ToolTurn{
			ToolCallID: "call_1",
			Content:    "[Query]: weather today\n[Citation]: [^0^]\n[Title]: Forecast",
			Evidence: []EvidenceItem{
				{Title: "Forecast", URL: "https://weather.example/today", Content: "Sunny, 21C", SiteName: "weather.example", Index: 0},
				{Title: "Radar", URL: "https://radar.example/now", Content: "No rain expected", SiteName: "radar.example", Index: 1},
			},
		},
		AssistantTurn{Content: "It will be sunny [^0^]."},
	}
}

// NewTestSearchCall builds a search tool call for the given queries
func NewTestSearchCall(id string, queries ...string) ToolCall {
	args := `{"queries":[`
	for i, q := range queries {
		if i > 0 {
			args += ","
		}
		args += `"` + q + `"`
	}
	args += `]}`
	return ToolCall{
		ID:       id,
		Type:     ToolTypeFunction,
		Function: FunctionCall{Name: "search", Arguments: args},
	}
}
