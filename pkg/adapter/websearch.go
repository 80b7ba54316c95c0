package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/engramlabs/engram/pkg/model"
	"github.com/engramlabs/engram/pkg/utils/backoff"
)

// WebSearch is the interface to the web search collaborator. The shell
// triggers it for recency-flavored queries and writes the result back into
// the memory store.
type WebSearch interface {
	Search(ctx context.Context, query string) (*WebSearchOutput, error)
}

type WebSearchOutput struct {
	Answer  string
	Results []*WebSearchHit
}

type WebSearchHit struct {
	Title   string
	URL     string
	Snippet string
}

type tavilyClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	policy  *backoff.Policy
}

type TavilyOption func(*tavilyClient)

func WithTavilyBaseURL(u string) TavilyOption {
	return func(t *tavilyClient) {
		t.baseURL = u
	}
}

func WithTavilyHTTPClient(c *http.Client) TavilyOption {
	return func(t *tavilyClient) {
		t.client = c
	}
}

func WithTavilyRetryPolicy(p *backoff.Policy) TavilyOption {
	return func(t *tavilyClient) {
		t.policy = p
	}
}

// NewTavily creates a Tavily web search client.
func NewTavily(apiKey string, opts ...TavilyOption) WebSearch {
	t := &tavilyClient{
		apiKey:  apiKey,
		baseURL: "https://api.tavily.com",
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  backoff.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

type tavilySearchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilySearchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *tavilyClient) Search(ctx context.Context, query string) (*WebSearchOutput, error) {
	reqBody, err := json.Marshal(&tavilySearchRequest{
		Query:         query,
		SearchDepth:   "basic",
		MaxResults:    5,
		IncludeAnswer: true,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode search request")
	}

	resp, err := backoff.Do(ctx, t.policy, func() (*tavilySearchResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(reqBody))
		if err != nil {
			return nil, backoff.Permanent(goerr.Wrap(err, "failed to build search request"))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.apiKey)

		httpResp, err := t.client.Do(req)
		if err != nil {
			return nil, goerr.Wrap(err, "web search request failed")
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode >= 400 {
			wrapped := goerr.New("web search returned error status", goerr.V("status", httpResp.StatusCode))
			if httpResp.StatusCode < 500 && httpResp.StatusCode != http.StatusTooManyRequests {
				return nil, backoff.Permanent(wrapped)
			}
			return nil, wrapped
		}

		var parsed tavilySearchResponse
		if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
			return nil, backoff.Permanent(goerr.Wrap(model.ErrMalformedResponse, "failed to decode search response",
				goerr.V("cause", err.Error())))
		}
		return &parsed, nil
	})
	if err != nil {
		return nil, err
	}

	out := &WebSearchOutput{Answer: resp.Answer}
	for _, r := range resp.Results {
		out.Results = append(out.Results, &WebSearchHit{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
		})
	}

	return out, nil
}
