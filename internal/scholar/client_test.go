package scholar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testClient(t *testing.T, apiKey string, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(apiKey)
	c.baseURL = srv.URL
	return c
}

func TestSearchMapsResults(t *testing.T) {
	var gotQuery, gotLimit, gotKey string
	c := testClient(t, "key-123", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/paper/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotQuery = r.URL.Query().Get("query")
		gotLimit = r.URL.Query().Get("limit")
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{
			"data": [
				{
					"paperId": "abc",
					"title": "Vision Transformers at Scale",
					"year": 2023,
					"venue": "NeurIPS",
					"abstract": "We study ViTs.",
					"url": "https://example.org/abc",
					"authors": [{"name": "A. Author"}, {"name": ""}]
				},
				{
					"paperId": "def",
					"journal": {"name": "Nature"}
				}
			]
		}`))
	})

	papers, err := c.Search(context.Background(), "vision transformers", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "vision transformers" || gotLimit != "5" {
		t.Errorf("request params = %q/%q", gotQuery, gotLimit)
	}
	if gotKey != "key-123" {
		t.Errorf("x-api-key = %q, want key-123", gotKey)
	}
	if len(papers) != 2 {
		t.Fatalf("got %d papers, want 2", len(papers))
	}

	p := papers[0]
	if p.ID != "abc" || p.Title != "Vision Transformers at Scale" || p.Year != 2023 {
		t.Errorf("paper = %+v", p)
	}
	if p.Venue != "NeurIPS" || p.Abstract != "We study ViTs." {
		t.Errorf("paper fields = %q/%q", p.Venue, p.Abstract)
	}
	if len(p.Authors) != 2 || p.Authors[0] != "A. Author" || p.Authors[1] != "Unknown" {
		t.Errorf("authors = %v", p.Authors)
	}

	// Sparse results fall back to placeholders, journal fills a missing venue.
	q := papers[1]
	if q.Title != "Untitled" || q.Venue != "Nature" || q.Abstract != "No abstract available." {
		t.Errorf("fallbacks = %q/%q/%q", q.Title, q.Venue, q.Abstract)
	}
}

func TestSearchAnonymousOmitsKeyHeader(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		if _, set := r.Header["X-Api-Key"]; set {
			t.Error("x-api-key header sent on anonymous request")
		}
		w.Write([]byte(`{"data": []}`))
	})
	if _, err := c.Search(context.Background(), "q", 0); err != nil {
		t.Fatalf("Search: %v", err)
	}
}

func TestSearchRateLimited(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	_, err := c.Search(context.Background(), "q", 10)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
}

func TestSearchServerError(t *testing.T) {
	c := testClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	_, err := c.Search(context.Background(), "q", 10)
	if err == nil || errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want generic status error", err)
	}
}
