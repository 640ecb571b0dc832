package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/iksnae/deep-research/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJina_Search(t *testing.T) {
	var gotQuery string
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":200,"data":[{"title":"T","url":"https://t.example","content":"body","description":"d","publishedTime":"2025-01-01","siteName":"Tee"}]}`))
	}))
	defer srv.Close()

	j := NewJina(internal.SearchConfig{
		URL:          srv.URL,
		APIKey:       "jina-key",
		Engine:       "direct",
		RetainImages: "none",
		Timeout:      20 * time.Second,
	})
	docs, err := j.Search(context.Background(), "go generics & iterators")
	require.NoError(t, err)

	assert.Equal(t, "go generics & iterators", gotQuery)
	assert.Equal(t, "Bearer jina-key", gotHeaders.Get("Authorization"))
	assert.Equal(t, "direct", gotHeaders.Get("X-Engine"))
	assert.Equal(t, "20", gotHeaders.Get("X-Timeout"))
	assert.Equal(t, "none", gotHeaders.Get("X-Retain-Images"))
	assert.Equal(t, "application/json", gotHeaders.Get("Accept"))

	require.Len(t, docs, 1)
	assert.Equal(t, Document{Title: "T", URL: "https://t.example", Content: "body", Description: "d", PublishedTime: "2025-01-01", SiteName: "Tee"}, docs[0])
}

func TestJina_NoKeyNoAuthHeader(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	docs, err := NewJina(internal.SearchConfig{URL: srv.URL}).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Empty(t, auth)
}

func TestJina_Non200IsSearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewJina(internal.SearchConfig{URL: srv.URL}).Search(context.Background(), "q")
	var searchErr *internal.SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, http.StatusTooManyRequests, searchErr.StatusCode)
	assert.Contains(t, searchErr.Error(), "quota exceeded")
	assert.False(t, internal.IsFatal(err))
}

func TestJina_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewJina(internal.SearchConfig{URL: srv.URL}).Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestJina_RateLimitRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	j := NewJina(internal.SearchConfig{URL: srv.URL}, WithRateLimit(0.001))
	_, err := j.Search(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = j.Search(ctx, "second")
	assert.Error(t, err)
}

func TestJina_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	url := srv.URL
	require.NoError(t, NewJina(internal.SearchConfig{URL: url}).Ping(context.Background()))
	srv.Close()
	assert.Error(t, NewJina(internal.SearchConfig{URL: url, Timeout: time.Second}).Ping(context.Background()))
}
