// Package llm talks to an OpenAI-compatible chat completion service and
// converts between research transcripts and the wire format.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/metrics"
)

// Request is one completion call
type Request struct {
	Transcript []internal.Turn
	Tools      []internal.ToolSpec
}

type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client calls the completion service configured in ModelConfig
type Client struct {
	api         chatAPI
	model       string
	maxTokens   int
	temperature float32
}

// NewClient builds a client for cfg. The API key is sent as a bearer token.
func NewClient(cfg internal.ModelConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Name,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

// Model returns the model id requests are sent with
func (c *Client) Model() string {
	return c.model
}

// Complete sends the transcript and returns the normalized assistant turn.
// Authentication failures are returned as *internal.AuthError, everything
// else as *internal.ModelError. Nothing is retried.
func (c *Client) Complete(ctx context.Context, req Request) (internal.AssistantTurn, error) {
	messages, err := toChatMessages(req.Transcript)
	if err != nil {
		return internal.AssistantTurn{}, &internal.ModelError{Model: c.model, Err: err}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Tools:       toTools(req.Tools),
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	elapsed := time.Since(start)
	if err != nil {
		if status, ok := authStatus(err); ok {
			metrics.ObserveModelCall("auth_error", elapsed)
			return internal.AssistantTurn{}, &internal.AuthError{StatusCode: status, Err: err}
		}
		metrics.ObserveModelCall("error", elapsed)
		return internal.AssistantTurn{}, &internal.ModelError{Model: c.model, Err: err}
	}
	if len(resp.Choices) == 0 {
		metrics.ObserveModelCall("error", elapsed)
		return internal.AssistantTurn{}, &internal.ModelError{Model: c.model, Err: errors.New("response has no choices")}
	}
	metrics.ObserveModelCall("ok", elapsed)

	choice := resp.Choices[0]
	internal.LogDebug("Completion finished in %s (finish_reason=%s, prompt_tokens=%d, completion_tokens=%d)",
		elapsed.Round(time.Millisecond), choice.FinishReason, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return normalizeMessage(choice.Message), nil
}

// authStatus reports the HTTP status of an authentication or permission failure
func authStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && isAuthStatus(apiErr.HTTPStatusCode) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && isAuthStatus(reqErr.HTTPStatusCode) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}

func toTools(specs []internal.ToolSpec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return tools
}

// toChatMessages renders a transcript for the wire. Evidence lists stay
// local; only tool turn content is sent.
func toChatMessages(transcript []internal.Turn) ([]openai.ChatCompletionMessage, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(transcript))
	for i, turn := range transcript {
		switch t := turn.(type) {
		case internal.SystemTurn:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: t.Content})
		case internal.UserTurn:
			messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Content})
		case internal.AssistantTurn:
			msg := openai.ChatCompletionMessage{
				Role:             openai.ChatMessageRoleAssistant,
				Content:          t.Content,
				ReasoningContent: t.Reasoning,
			}
			for _, tc := range t.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolType(tc.Type),
					Function: openai.FunctionCall{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			messages = append(messages, msg)
		case internal.ToolTurn:
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    t.Content,
				ToolCallID: t.ToolCallID,
			})
		default:
			return nil, fmt.Errorf("turn %d: unsupported turn type %T", i, turn)
		}
	}
	return messages, nil
}
