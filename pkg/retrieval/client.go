// Package retrieval is a thin client for the document retrieval service,
// which indexes extracted document text and serves similarity search over
// passage chunks.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/cleardeed/diligence-cli/internal/resilience"
)

const defaultBaseURL = "http://localhost:8100"

// Client performs similarity searches against the retrieval service.
type Client interface {
	SimilaritySearch(ctx context.Context, req SearchRequest) ([]Passage, error)
}

// SearchRequest is the request body for POST /search. DocumentID, when set,
// restricts results to passages from that document.
type SearchRequest struct {
	Query      string `json:"query"`
	K          int    `json:"k"`
	DocumentID string `json:"document_id,omitempty"`
}

// Passage is one retrieved chunk of document text.
type Passage struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type searchResponse struct {
	Passages []Passage `json:"passages"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default service base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a retrieval service client. An empty apiKey disables the
// Authorization header for unauthenticated local deployments.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(10, 10),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SimilaritySearch(ctx context.Context, req SearchRequest) ([]Passage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "retrieval: rate limit wait")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("retrieval: unexpected status %d: %s", resp.StatusCode, string(respBody))
		// Rate limits and server-side failures are safe to retry upstream.
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "retrieval: unmarshal response")
	}

	return result.Passages, nil
}
