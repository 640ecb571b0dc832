package llm

import (
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/iksnae/deep-research/internal"
)

// normalizeMessage converts a response message into an AssistantTurn. Tool
// calls without an id get a generated one so their results can be paired;
// a missing type defaults to "function".
func normalizeMessage(msg openai.ChatCompletionMessage) internal.AssistantTurn {
	turn := internal.AssistantTurn{
		Content:   msg.Content,
		Reasoning: msg.ReasoningContent,
	}
	for _, tc := range msg.ToolCalls {
		turn.ToolCalls = append(turn.ToolCalls, normalizeToolCall(tc))
	}
	return turn
}

func normalizeToolCall(tc openai.ToolCall) internal.ToolCall {
	id := tc.ID
	if id == "" {
		id = "call_" + uuid.NewString()
		internal.LogDebug("Tool call %q arrived without id; assigned %s", tc.Function.Name, id)
	}
	typ := string(tc.Type)
	if typ == "" {
		typ = internal.ToolTypeFunction
	}
	return internal.ToolCall{
		ID:   id,
		Type: typ,
		Function: internal.FunctionCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		},
	}
}
