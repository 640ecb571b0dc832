// Package search runs the model's web search tool calls: concurrent fan-out
// to a provider, cleanup, lifetime deduplication, citation numbering and
// digest rendering.
package search

import "context"

// Document is one ranked result returned by a provider
type Document struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Content       string `json:"content"`
	Description   string `json:"description"`
	PublishedTime string `json:"publishedTime"`
	SiteName      string `json:"siteName"`
}

// Provider answers one query with a ranked document list
type Provider interface {
	Search(ctx context.Context, query string) ([]Document, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context, query string) ([]Document, error)

// Search calls f
func (f ProviderFunc) Search(ctx context.Context, query string) ([]Document, error) {
	return f(ctx, query)
}
