package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iksnae/deep-research/internal"
	"github.com/iksnae/deep-research/internal/metrics"
)

const defaultMaxConcurrency = 8

// Result is the outcome of one search tool call
type Result struct {
	Digest   string
	Evidence []internal.EvidenceItem
}

// Executor runs search tool calls for one session. Its seen set and index
// counter live as long as the session, so one Executor must never be shared
// between sessions.
type Executor struct {
	provider       Provider
	maxLength      int
	timeout        time.Duration
	maxConcurrency int

	mu        sync.Mutex
	seen      *seenSet
	nextIndex int
}

// Option configures an Executor
type Option func(*Executor)

// WithMaxLength sets the digest budget shared by the queries of one call
func WithMaxLength(n int) Option {
	return func(e *Executor) { e.maxLength = n }
}

// WithTimeout bounds each provider request
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithMaxConcurrency caps in-flight provider requests. Zero means one per
// query up to a ceiling of 8.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) { e.maxConcurrency = n }
}

// NewExecutor creates an executor with an empty seen set and index 0
func NewExecutor(provider Provider, opts ...Option) *Executor {
	e := &Executor{
		provider:  provider,
		maxLength: internal.DefaultSearchMaxLength,
		timeout:   internal.DefaultSearchTimeout,
		seen:      newSeenSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seed restores lifetime state from evidence replayed out of a session log:
// every item counts as seen and new indices continue past the highest one.
func (e *Executor) Seed(items []internal.EvidenceItem) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, item := range items {
		e.seen.add(item.Title, item.URL)
		if item.Index >= e.nextIndex {
			e.nextIndex = item.Index + 1
		}
	}
	internal.LogDebug("Search executor seeded with %d item(s), next index %d", len(items), e.nextIndex)
}

// NextIndex returns the citation index the next new item will receive
func (e *Executor) NextIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nextIndex
}

// Execute searches every query concurrently, waits for all of them, and
// renders the surviving results in query order. A failing query contributes
// an empty block and never affects the others.
func (e *Executor) Execute(ctx context.Context, queries []string) Result {
	if len(queries) == 0 {
		return Result{}
	}

	docs := e.fetchAll(ctx, queries)

	e.mu.Lock()
	defer e.mu.Unlock()

	budget := e.maxLength / len(queries)
	var blocks []string
	var evidence []internal.EvidenceItem
	duplicates := 0
	for i, q := range queries {
		block, items, dups := e.assemble(q, docs[i], budget)
		blocks = append(blocks, block)
		evidence = append(evidence, items...)
		duplicates += dups
	}

	metrics.AddEvidence(len(evidence))
	metrics.AddDuplicates(duplicates)
	internal.LogInfo("Search: %d quer(ies), %d new result(s), %d duplicate(s)", len(queries), len(evidence), duplicates)

	return Result{
		Digest:   strings.Join(blocks, "\n"),
		Evidence: evidence,
	}
}

func (e *Executor) fetchAll(ctx context.Context, queries []string) [][]Document {
	results := make([][]Document, len(queries))

	limit := e.maxConcurrency
	if limit <= 0 {
		limit = len(queries)
		if limit > defaultMaxConcurrency {
			limit = defaultMaxConcurrency
		}
	}

	// Goroutines never return an error: a failed query must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)
	for i, q := range queries {
		g.Go(func() error {
			results[i] = e.fetchOne(ctx, q)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (e *Executor) fetchOne(ctx context.Context, query string) []Document {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	docs, err := e.provider.Search(qctx, query)
	metrics.ObserveSearch(err == nil, time.Since(start))
	if err != nil {
		internal.LogWarn("%v", searchFailure(query, err))
		return nil
	}
	internal.LogDebug("Search %q returned %d document(s) in %s", query, len(docs), time.Since(start).Round(time.Millisecond))
	return docs
}

// searchFailure attaches the query to a provider error unless the provider
// already reported a SearchError.
func searchFailure(query string, err error) error {
	var searchErr *internal.SearchError
	if errors.As(err, &searchErr) {
		return err
	}
	return &internal.SearchError{Query: query, Err: err}
}

// assemble renders one query's block. Results are taken in rank order until
// the next one would push the block past budget; the first admitted result
// has its snippet shortened to fit instead. Results past the cut are neither
// indexed nor marked seen.
func (e *Executor) assemble(query string, docs []Document, budget int) (string, []internal.EvidenceItem, int) {
	header := fmt.Sprintf("[Query]: %s", query)
	block := header
	var items []internal.EvidenceItem
	duplicates := 0

	for _, doc := range docs {
		title := StripLinks(doc.Title)
		if e.seen.contains(title, doc.URL) {
			duplicates++
			continue
		}

		item := internal.EvidenceItem{
			Title:         title,
			URL:           doc.URL,
			Content:       snippet(doc),
			PublishedTime: doc.PublishedTime,
			SiteName:      doc.SiteName,
			Index:         e.nextIndex,
		}
		if item.SiteName == "" {
			item.SiteName = SiteFromURL(doc.URL)
		}

		entry := renderItem(item, item.Content)
		if textLen(block)+1+textLen(entry) > budget {
			if len(items) > 0 {
				break
			}
			room := budget - textLen(block) - 1 - textLen(renderItem(item, ""))
			entry = renderItem(item, truncateRunes(item.Content, room))
			block += "\n" + entry
			e.admit(item)
			items = append(items, item)
			break
		}

		block += "\n" + entry
		e.admit(item)
		items = append(items, item)
	}
	return block, items, duplicates
}

func (e *Executor) admit(item internal.EvidenceItem) {
	e.seen.add(item.Title, item.URL)
	e.nextIndex++
}

func renderItem(item internal.EvidenceItem, text string) string {
	lines := []string{
		fmt.Sprintf("[Citation]: [^%d^]", item.Index),
		"[Title]: " + item.Title,
		"[Site]: " + item.SiteName,
		"[Date]: " + item.PublishedTime,
		"[URL]: " + item.URL,
		"[Snippet]:\n" + text,
		"",
	}
	return strings.Join(lines, "\n")
}
