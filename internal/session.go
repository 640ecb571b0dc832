package internal

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a transcript turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolTypeFunction is the only tool call type the completion service emits.
const ToolTypeFunction = "function"

// Turn is one entry of a research transcript. The set of implementations is
// closed: SystemTurn, UserTurn, AssistantTurn and ToolTurn.
type Turn interface {
	Role() Role
	isTurn()
}

// SystemTurn carries the fixed research instructions. Always first.
type SystemTurn struct {
	Content string
}

// UserTurn carries the original query. Always second.
type UserTurn struct {
	Content string
}

// AssistantTurn is one completion produced by the model
type AssistantTurn struct {
	Content   string
	Reasoning string
	ToolCalls []ToolCall
}

// ToolTurn is the result of executing one tool call
type ToolTurn struct {
	ToolCallID string
	Content    string
	Evidence   []EvidenceItem
	Compacted  bool
}

func (SystemTurn) Role() Role    { return RoleSystem }
func (UserTurn) Role() Role      { return RoleUser }
func (AssistantTurn) Role() Role { return RoleAssistant }
func (ToolTurn) Role() Role      { return RoleTool }

func (SystemTurn) isTurn()    {}
func (UserTurn) isTurn()      {}
func (AssistantTurn) isTurn() {}
func (ToolTurn) isTurn()      {}

// HasToolCalls reports whether the turn asks for at least one tool invocation
func (a AssistantTurn) HasToolCalls() bool {
	return len(a.ToolCalls) > 0
}

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID       string       `json:"id" yaml:"id"`
	Type     string       `json:"type" yaml:"type"`
	Function FunctionCall `json:"function" yaml:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments
type FunctionCall struct {
	Name      string `json:"name" yaml:"name"`
	Arguments string `json:"arguments" yaml:"arguments"`
}

// DecodeArguments unmarshals the call's JSON arguments into v
func (tc ToolCall) DecodeArguments(v interface{}) error {
	if tc.Function.Arguments == "" {
		return fmt.Errorf("tool call %s has no arguments", tc.ID)
	}
	if err := json.Unmarshal([]byte(tc.Function.Arguments), v); err != nil {
		return fmt.Errorf("tool call %s: invalid arguments: %w", tc.ID, err)
	}
	return nil
}

// EvidenceItem is one deduplicated search result with its citation index
type EvidenceItem struct {
	Title         string `json:"title" yaml:"title"`
	URL           string `json:"url" yaml:"url"`
	Content       string `json:"content" yaml:"content"`
	PublishedTime string `json:"pub_time" yaml:"pub_time"`
	SiteName      string `json:"site_name" yaml:"site_name"`
	Index         int    `json:"idx" yaml:"idx"`
}

// Message is the persisted and exported form of a Turn
type Message struct {
	Role             Role           `json:"role" yaml:"role"`
	Content          string         `json:"content,omitempty" yaml:"content,omitempty"`
	ReasoningContent string         `json:"reasoning_content,omitempty" yaml:"reasoning_content,omitempty"`
	ToolCalls        []ToolCall     `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty"`
	ToolCallID       string         `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty"`
	SearchResults    []EvidenceItem `json:"search_results,omitempty" yaml:"search_results,omitempty"`
	Compact          bool           `json:"compact,omitempty" yaml:"compact,omitempty"`
}

// EncodeTurn converts a turn to its wire form. A nil turn is an error.
func EncodeTurn(turn Turn) (Message, error) {
	switch t := turn.(type) {
	case SystemTurn:
		return Message{Role: RoleSystem, Content: t.Content}, nil
	case UserTurn:
		return Message{Role: RoleUser, Content: t.Content}, nil
	case AssistantTurn:
		return Message{
			Role:             RoleAssistant,
			Content:          t.Content,
			ReasoningContent: t.Reasoning,
			ToolCalls:        t.ToolCalls,
		}, nil
	case ToolTurn:
		return Message{
			Role:          RoleTool,
			Content:       t.Content,
			ToolCallID:    t.ToolCallID,
			SearchResults: t.Evidence,
			Compact:       t.Compacted,
		}, nil
	default:
		return Message{}, fmt.Errorf("unsupported turn type %T", turn)
	}
}

// DecodeTurn converts a wire message back into a turn
func DecodeTurn(msg Message) (Turn, error) {
	switch msg.Role {
	case RoleSystem:
		return SystemTurn{Content: msg.Content}, nil
	case RoleUser:
		return UserTurn{Content: msg.Content}, nil
	case RoleAssistant:
		return AssistantTurn{
			Content:   msg.Content,
			Reasoning: msg.ReasoningContent,
			ToolCalls: msg.ToolCalls,
		}, nil
	case RoleTool:
		if msg.ToolCallID == "" {
			return nil, fmt.Errorf("tool message without tool_call_id")
		}
		return ToolTurn{
			ToolCallID: msg.ToolCallID,
			Content:    msg.Content,
			Evidence:   msg.SearchResults,
			Compacted:  msg.Compact,
		}, nil
	default:
		return nil, fmt.Errorf("unknown message role %q", msg.Role)
	}
}

// LastAssistant returns the most recent assistant turn in the transcript
func LastAssistant(transcript []Turn) (AssistantTurn, bool) {
	for i := len(transcript) - 1; i >= 0; i-- {
		if a, ok := transcript[i].(AssistantTurn); ok {
			return a, true
		}
	}
	return AssistantTurn{}, false
}

// CollectEvidence gathers every evidence item carried by tool turns, in order
func CollectEvidence(transcript []Turn) []EvidenceItem {
	var items []EvidenceItem
	for _, turn := range transcript {
		if tt, ok := turn.(ToolTurn); ok {
			items = append(items, tt.Evidence...)
		}
	}
	return items
}

// ToolSpec describes one capability offered to the model. Parameters is a
// JSON schema object.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}
