// Package discovery implements the AI-assisted paper discovery pipeline:
// keyword extraction from a free-form research description, multi-query
// search, deduplication, and relevance filtering.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/revlab/sessiond/internal/assistant"
	"github.com/revlab/sessiond/internal/scholar"
)

// Searcher is the paper search dependency (implemented by scholar.Client).
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]scholar.Paper, error)
}

// Progress reports one relevance judgement to the caller, for live UI
// feedback while the pipeline runs.
type Progress struct {
	Index    int
	Total    int
	Title    string
	Relevant bool
	Verdict  string
}

// Result is the pipeline outcome.
type Result struct {
	KeywordSets [][]string      `json:"keyword_sets"`
	Found       int             `json:"found"`
	Unique      int             `json:"unique"`
	Papers      []scholar.Paper `json:"papers"` // relevant papers, search order preserved
}

// Pipeline runs deep research. Assistant and Searcher are required; the rest
// have working defaults.
type Pipeline struct {
	Assistant assistant.Generator
	Searcher  Searcher

	LimitPerQuery int           // papers fetched per keyword set, default 10
	Pace          time.Duration // delay between search queries, default 500ms
	Judges        int           // concurrent relevance judgements, default 4
	OnProgress    func(Progress)
}

// Run executes the full pipeline for one research description.
func (p *Pipeline) Run(ctx context.Context, description string) (*Result, error) {
	if p.Assistant == nil || p.Searcher == nil {
		return nil, fmt.Errorf("discovery: assistant and searcher are required")
	}
	limit := p.LimitPerQuery
	if limit <= 0 {
		limit = 10
	}
	pace := p.Pace
	if pace == 0 {
		pace = 500 * time.Millisecond
	}

	sets := assistant.ExtractKeywordSets(ctx, p.Assistant, description)

	// Collect results across all keyword sets, pacing requests to stay
	// inside the search API's anonymous quota.
	var found []scholar.Paper
	for i, set := range sets {
		if i > 0 {
			select {
			case <-time.After(pace):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		papers, err := p.Searcher.Search(ctx, strings.Join(set, " "), limit)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", strings.Join(set, " "), err)
		}
		found = append(found, papers...)
	}

	unique := dedupe(found)
	relevant := p.filterRelevant(ctx, description, unique)

	return &Result{
		KeywordSets: sets,
		Found:       len(found),
		Unique:      len(unique),
		Papers:      relevant,
	}, nil
}

// dedupe drops papers already seen by id or normalized title, keeping the
// first occurrence.
func dedupe(papers []scholar.Paper) []scholar.Paper {
	seenIDs := make(map[string]struct{})
	seenTitles := make(map[string]struct{})
	unique := make([]scholar.Paper, 0, len(papers))
	for _, paper := range papers {
		title := strings.ToLower(strings.TrimSpace(paper.Title))
		if paper.ID != "" {
			if _, dup := seenIDs[paper.ID]; dup {
				continue
			}
		}
		if title != "" {
			if _, dup := seenTitles[title]; dup {
				continue
			}
		}
		if paper.ID != "" {
			seenIDs[paper.ID] = struct{}{}
		}
		if title != "" {
			seenTitles[title] = struct{}{}
		}
		unique = append(unique, paper)
	}
	return unique
}

// filterRelevant judges each paper against the description with a bounded
// worker pool and returns the relevant ones in their original order.
func (p *Pipeline) filterRelevant(ctx context.Context, description string, papers []scholar.Paper) []scholar.Paper {
	judgements := p.judgeAll(ctx, description, papers)

	relevant := make([]scholar.Paper, 0, len(papers))
	for i, paper := range papers {
		if judgements[i] {
			relevant = append(relevant, paper)
		}
	}
	return relevant
}
