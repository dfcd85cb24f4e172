// Package scholar is a thin client for the Semantic Scholar Graph API paper
// search endpoint.
package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/revlab/sessiond/internal/metrics"
)

const (
	defaultBaseURL = "https://api.semanticscholar.org/graph/v1"
	searchFields   = "title,authors,year,venue,abstract,externalIds,url,journal"
	userAgent      = "LiteratureReviewDashboard/1.0"
)

// ErrRateLimited is returned on HTTP 429. Anonymous access is limited to 100
// requests per 5 minutes; an API key raises the quota.
var ErrRateLimited = errors.New("semantic scholar: rate limited")

// Paper is a search result mapped to the dashboard's shape.
type Paper struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Authors  []string `json:"authors"`
	Year     int      `json:"year,omitempty"`
	Venue    string   `json:"journal"`
	Abstract string   `json:"abstract"`
	URL      string   `json:"url,omitempty"`
}

// Client calls the Semantic Scholar Graph API. The API key, if any, lives
// only here and is attached per request; it never appears in any serialized
// structure.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client. apiKey may be empty (anonymous quota applies).
func New(apiKey string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// searchResponse mirrors the Graph API paper search payload.
type searchResponse struct {
	Data []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Year     int    `json:"year"`
		Venue    string `json:"venue"`
		Abstract string `json:"abstract"`
		URL      string `json:"url"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
		Journal struct {
			Name string `json:"name"`
		} `json:"journal"`
	} `json:"data"`
}

// Search queries the paper search endpoint and maps the results.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Paper, error) {
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("fields", searchFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/paper/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ScholarRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ScholarRequests.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		metrics.ScholarRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("semantic scholar: status %d: %s", resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		metrics.ScholarRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	metrics.ScholarRequests.WithLabelValues("ok").Inc()

	papers := make([]Paper, 0, len(sr.Data))
	for _, item := range sr.Data {
		authors := make([]string, 0, len(item.Authors))
		for _, a := range item.Authors {
			name := a.Name
			if name == "" {
				name = "Unknown"
			}
			authors = append(authors, name)
		}
		venue := item.Venue
		if venue == "" {
			venue = item.Journal.Name
		}
		if venue == "" {
			venue = "Unknown"
		}
		abstract := item.Abstract
		if abstract == "" {
			abstract = "No abstract available."
		}
		title := item.Title
		if title == "" {
			title = "Untitled"
		}
		papers = append(papers, Paper{
			ID:       item.PaperID,
			Title:    title,
			Authors:  authors,
			Year:     item.Year,
			Venue:    venue,
			Abstract: abstract,
			URL:      item.URL,
		})
	}
	return papers, nil
}
