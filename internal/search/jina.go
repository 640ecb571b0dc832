package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/iksnae/deep-research/internal"
)

// maxErrorBody limits how much of a failed response is kept in the error.
const maxErrorBody = 512

// Jina queries a Jina-style search endpoint: GET <url>?q=<query>, answered
// with {"data":[...documents]}.
type Jina struct {
	endpoint     string
	apiKey       string
	engine       string
	retainImages string
	timeout      time.Duration
	client       *http.Client
	limiter      *rate.Limiter
}

// JinaOption configures a Jina provider
type JinaOption func(*Jina)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) JinaOption {
	return func(j *Jina) { j.client = c }
}

// WithRateLimit caps outbound requests per second across all goroutines.
// Zero disables limiting.
func WithRateLimit(perSecond float64) JinaOption {
	return func(j *Jina) {
		if perSecond > 0 {
			j.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewJina builds a provider from the search config
func NewJina(cfg internal.SearchConfig, opts ...JinaOption) *Jina {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = internal.DefaultSearchTimeout
	}
	j := &Jina{
		endpoint:     cfg.URL,
		apiKey:       cfg.APIKey,
		engine:       cfg.Engine,
		retainImages: cfg.RetainImages,
		timeout:      timeout,
		client:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.limiter == nil && cfg.RateLimit > 0 {
		j.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return j
}

// Search issues one request for query
func (j *Jina) Search(ctx context.Context, query string) ([]Document, error) {
	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	endpoint, err := url.Parse(j.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search url %q: %w", j.endpoint, err)
	}
	params := endpoint.Query()
	params.Set("q", query)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if j.engine != "" {
		req.Header.Set("X-Engine", j.engine)
	}
	if j.retainImages != "" {
		req.Header.Set("X-Retain-Images", j.retainImages)
	}
	req.Header.Set("X-Timeout", strconv.Itoa(int(j.timeout.Seconds())))
	if j.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &internal.SearchError{
			Query:      query,
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(body))),
		}
	}

	var payload struct {
		Data []Document `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.Data, nil
}

// Ping checks that the endpoint answers at all. Any HTTP status counts as
// reachable; only transport failures are reported.
func (j *Jina) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, j.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}
