// Package agent drives a research session: it replays the session log,
// alternates model calls with search tool calls, and persists every step so
// an interrupted run resumes where it stopped.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/compact"
	"github.com/iksnae/deep-research/internal/llm"
	"github.com/iksnae/deep-research/internal/metrics"
	"github.com/iksnae/deep-research/internal/search"
	"github.com/iksnae/deep-research/internal/sessionlog"
)

// Completer produces the next assistant turn for a transcript
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (internal.AssistantTurn, error)
}

// Searcher executes search tool calls with session-lifetime deduplication
type Searcher interface {
	Execute(ctx context.Context, queries []string) search.Result
	Seed(items []internal.EvidenceItem)
}

// Result describes how a run ended
type Result struct {
	Key        internal.SessionKey
	Answer     string
	Iterations int
	State      State
	Complete   bool // a final record exists for the session
	Resumed    bool // the run continued an existing log
	Truncated  bool // the iteration cap was hit before a final answer
}

// Controller runs one research session at a time. Give each session its own
// Searcher: the seen set and citation counter are per session.
type Controller struct {
	completer     Completer
	searcher      Searcher
	store         *sessionlog.Store
	maxIterations int
	keepRounds    int
	now           func() time.Time
	prompt        func(date string) string
	tools         []internal.ToolSpec
	state         State
}

// Option configures a Controller
type Option func(*Controller)

// WithMaxIterations caps the number of model calls in one session
func WithMaxIterations(n int) Option {
	return func(c *Controller) { c.maxIterations = n }
}

// WithKeepRounds sets how many recent tool results are sent in full
func WithKeepRounds(n int) Option {
	return func(c *Controller) { c.keepRounds = n }
}

// WithClock overrides the clock that picks the session date
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithPrompt replaces the system prompt builder
func WithPrompt(prompt func(date string) string) Option {
	return func(c *Controller) { c.prompt = prompt }
}

// New creates a controller
func New(completer Completer, searcher Searcher, store *sessionlog.Store, opts ...Option) *Controller {
	c := &Controller{
		completer:     completer,
		searcher:      searcher,
		store:         store,
		maxIterations: internal.DefaultMaxIterations,
		keepRounds:    compact.DefaultKeepRounds,
		now:           time.Now,
		prompt:        ResearchPrompt,
		tools:         []internal.ToolSpec{search.Tool()},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state of the controller
func (c *Controller) State() State {
	return c.state
}

func (c *Controller) setState(s State) {
	if c.state != s {
		internal.LogDebug("State %s -> %s", c.state, s)
	}
	c.state = s
}

// Run researches query. The session is keyed by the query text and today's
// date: an existing log for that key is resumed, a completed one is answered
// from the log without any network call. Only fatal errors are returned.
func (c *Controller) Run(ctx context.Context, query string) (Result, error) {
	key := internal.NewSessionKey(query, c.now())
	res := Result{Key: key}

	rep, err := c.store.Replay(key)
	if err != nil {
		return res, err
	}

	if rep.Complete() {
		c.setState(StateResumedComplete)
		metrics.ObserveSessionStart("complete")
		internal.LogInfo("Session %s is already complete", key)
		res.Answer = rep.Final.Content
		res.Iterations = rep.Final.Iteration
		res.Complete, res.Resumed = true, true
		res.State = c.state
		return res, nil
	}

	var transcript []internal.Turn
	start := 0
	switch {
	case rep.Query != nil:
		c.setState(StateResumedInProgress)
		metrics.ObserveSessionStart("resumed")
		res.Resumed = true

		transcript = Restore(rep, key.Date, c.prompt)
		c.searcher.Seed(internal.CollectEvidence(transcript))
		start = countToolRounds(transcript)
		internal.LogInfo("Resuming session %s: %d turn(s), %d completed round(s)", key, len(transcript), start)

		if last, ok := internal.LastAssistant(transcript); ok && !last.HasToolCalls() {
			// The final answer was persisted but the run stopped before the
			// terminal record; finish that write.
			res.Iterations = start + 1
			if err := c.store.Append(key, sessionlog.NewFinalRecord(last.Content, res.Iterations)); err != nil {
				return res, err
			}
			c.setState(StateDone)
			res.Answer, res.Complete, res.State = last.Content, true, c.state
			return res, nil
		}

		transcript, err = c.finishPendingCalls(ctx, key, transcript)
		if err != nil {
			return res, err
		}
	case len(rep.Messages) > 0:
		return res, &internal.CorruptLogError{Path: c.store.Path(key), Reason: "messages present but no query record"}
	default:
		c.setState(StateFresh)
		metrics.ObserveSessionStart("fresh")
		transcript, err = c.begin(key, query)
		if err != nil {
			return res, err
		}
		internal.LogInfo("Started session %s", key)
	}

	var lastAnswer string
	if last, ok := internal.LastAssistant(transcript); ok {
		lastAnswer = last.Content
	}
	res.Iterations = start

	for iteration := start; iteration < c.maxIterations; iteration++ {
		c.setState(StateRunningIteration)
		internal.LogInfo("Iteration %d/%d", iteration+1, c.maxIterations)

		turn, err := c.completer.Complete(ctx, llm.Request{
			Transcript: compact.Compact(transcript, c.keepRounds),
			Tools:      c.tools,
		})
		if err != nil {
			var modelErr *internal.ModelError
			if errors.As(err, &modelErr) {
				modelErr.Iteration = iteration + 1
			}
			res.State = c.state
			return res, fmt.Errorf("session %s: %w", key, err)
		}
		if turn.Reasoning != "" {
			internal.LogDebug("Reasoning: %s", preview(turn.Reasoning, 500))
		}

		transcript = append(transcript, turn)
		if err := c.store.Append(key, sessionlog.NewMessageRecord(turn)); err != nil {
			return res, err
		}
		lastAnswer = turn.Content
		res.Iterations = iteration + 1

		if !turn.HasToolCalls() {
			if err := c.store.Append(key, sessionlog.NewFinalRecord(turn.Content, iteration+1)); err != nil {
				return res, err
			}
			c.setState(StateDone)
			res.Answer, res.Complete, res.State = turn.Content, true, c.state
			internal.LogInfo("Session %s finished after %d iteration(s)", key, iteration+1)
			return res, nil
		}

		c.setState(StateAwaitingToolResults)
		results, err := c.dispatch(ctx, key, turn.ToolCalls)
		if err != nil {
			return res, err
		}
		transcript = append(transcript, results...)
	}

	internal.LogWarn("Session %s reached the iteration cap (%d) without a final answer; returning the last assistant text", key, c.maxIterations)
	c.setState(StateDone)
	res.Answer, res.Truncated, res.State = lastAnswer, true, c.state
	return res, nil
}

// begin persists the opening records of a new session
func (c *Controller) begin(key internal.SessionKey, query string) ([]internal.Turn, error) {
	transcript := []internal.Turn{
		internal.SystemTurn{Content: c.prompt(key.Date)},
		internal.UserTurn{Content: query},
	}
	if err := c.store.Append(key, sessionlog.NewQueryRecord(query, key)); err != nil {
		return nil, err
	}
	for _, turn := range transcript {
		if err := c.store.Append(key, sessionlog.NewMessageRecord(turn)); err != nil {
			return nil, err
		}
	}
	return transcript, nil
}

// Restore returns the transcript of a replayed log, rebuilding the system
// and user turns from the query record when the log does not carry them.
// A log cut off between the system and user records gets its user turn back.
// fallbackDate is used for the prompt when the query record has no date.
func Restore(rep *sessionlog.Replay, fallbackDate string, prompt func(date string) string) []internal.Turn {
	messages := rep.Messages
	if len(messages) > 0 {
		if _, ok := messages[0].(internal.SystemTurn); ok {
			if rep.Query == nil || startsWithUser(messages[1:]) {
				return append([]internal.Turn(nil), messages...)
			}
			transcript := []internal.Turn{messages[0], internal.UserTurn{Content: rep.Query.Query}}
			return append(transcript, messages[1:]...)
		}
	}
	if rep.Query == nil {
		return append([]internal.Turn(nil), messages...)
	}
	date := rep.Query.Date
	if date == "" {
		date = fallbackDate
	}
	transcript := []internal.Turn{
		internal.SystemTurn{Content: prompt(date)},
		internal.UserTurn{Content: rep.Query.Query},
	}
	return append(transcript, messages...)
}

func startsWithUser(turns []internal.Turn) bool {
	if len(turns) == 0 {
		return false
	}
	_, ok := turns[0].(internal.UserTurn)
	return ok
}

// finishPendingCalls runs the tool calls of the last assistant turn that
// have no persisted result yet, which happens when a run stops mid-round.
func (c *Controller) finishPendingCalls(ctx context.Context, key internal.SessionKey, transcript []internal.Turn) ([]internal.Turn, error) {
	pending := PendingCalls(transcript)
	if len(pending) == 0 {
		return transcript, nil
	}

	internal.LogInfo("Completing %d interrupted tool call(s)", len(pending))
	c.setState(StateAwaitingToolResults)
	results, err := c.dispatch(ctx, key, pending)
	if err != nil {
		return nil, err
	}
	return append(transcript, results...), nil
}

// PendingCalls returns the tool calls of the last assistant turn that have
// no tool result after it.
func PendingCalls(transcript []internal.Turn) []internal.ToolCall {
	lastIdx := -1
	for i := len(transcript) - 1; i >= 0; i-- {
		if _, ok := transcript[i].(internal.AssistantTurn); ok {
			lastIdx = i
			break
		}
	}
	if lastIdx < 0 {
		return nil
	}

	done := make(map[string]bool)
	for _, turn := range transcript[lastIdx+1:] {
		if tt, ok := turn.(internal.ToolTurn); ok {
			done[tt.ToolCallID] = true
		}
	}
	var pending []internal.ToolCall
	for _, call := range transcript[lastIdx].(internal.AssistantTurn).ToolCalls {
		if !done[call.ID] {
			pending = append(pending, call)
		}
	}
	return pending
}

// dispatch executes tool calls in order and persists each result. Unknown
// tools are skipped; calls with unreadable arguments get an error result.
func (c *Controller) dispatch(ctx context.Context, key internal.SessionKey, calls []internal.ToolCall) ([]internal.Turn, error) {
	var results []internal.Turn
	for _, call := range calls {
		if call.Function.Name != search.ToolName {
			metrics.ObserveToolCall(call.Function.Name, "unknown")
			internal.LogWarn("Skipping call: %v", &internal.ToolError{Tool: call.Function.Name, CallID: call.ID, Err: errors.New("unknown tool")})
			continue
		}

		var turn internal.ToolTurn
		queries, err := search.ParseQueries(call)
		if err != nil {
			metrics.ObserveToolCall(call.Function.Name, "invalid")
			toolErr := &internal.ToolError{Tool: call.Function.Name, CallID: call.ID, Err: err}
			internal.LogWarn("%v", toolErr)
			turn = internal.ToolTurn{ToolCallID: call.ID, Content: "Error: " + err.Error()}
		} else {
			metrics.ObserveToolCall(call.Function.Name, "ok")
			internal.LogInfo("Searching %d quer(ies): %q", len(queries), queries)
			out := c.searcher.Execute(ctx, queries)
			turn = internal.ToolTurn{ToolCallID: call.ID, Content: out.Digest, Evidence: out.Evidence}
		}

		if err := c.store.Append(key, sessionlog.NewMessageRecord(turn)); err != nil {
			return nil, err
		}
		results = append(results, turn)
	}
	return results, nil
}

// countToolRounds counts assistant turns that requested at least one tool
func countToolRounds(transcript []internal.Turn) int {
	n := 0
	for _, turn := range transcript {
		if a, ok := turn.(internal.AssistantTurn); ok && a.HasToolCalls() {
			n++
		}
	}
	return n
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
