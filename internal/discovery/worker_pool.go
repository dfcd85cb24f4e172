package discovery

import (
	"context"
	"sync"

	"github.com/revlab/sessiond/internal/assistant"
	"github.com/revlab/sessiond/internal/scholar"
)

// judgeAll fans relevance judgements out to a fixed-size worker pool and
// returns keep/drop flags indexed like papers. Progress callbacks fire as
// judgements complete, not in input order.
func (p *Pipeline) judgeAll(ctx context.Context, description string, papers []scholar.Paper) []bool {
	keep := make([]bool, len(papers))
	if len(papers) == 0 {
		return keep
	}

	workers := p.Judges
	if workers <= 0 {
		workers = 4
	}
	if workers > len(papers) {
		workers = len(papers)
	}

	jobs := make(chan int)
	var mu sync.Mutex // guards keep writes and OnProgress calls
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				paper := papers[i]
				relevant, verdict := assistant.JudgeRelevance(ctx, p.Assistant, description, paper.Title, paper.Abstract)
				mu.Lock()
				keep[i] = relevant
				if p.OnProgress != nil {
					p.OnProgress(Progress{
						Index:    i,
						Total:    len(papers),
						Title:    paper.Title,
						Relevant: relevant,
						Verdict:  verdict,
					})
				}
				mu.Unlock()
			}
		}()
	}

	for i := range papers {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Unjudged papers stay kept: cancellation must not silently
			// drop results.
			for j := i; j < len(papers); j++ {
				mu.Lock()
				keep[j] = true
				mu.Unlock()
			}
			close(jobs)
			wg.Wait()
			return keep
		}
	}
	close(jobs)
	wg.Wait()
	return keep
}
