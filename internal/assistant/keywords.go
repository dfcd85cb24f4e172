package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractKeywordSets asks the model to turn a free-form research description
// into several keyword sets for academic search. It never fails: if the
// model is unavailable or its reply cannot be parsed, the description itself
// is chunked into one keyword set.
func ExtractKeywordSets(ctx context.Context, g Generator, description string) [][]string {
	reply, err := g.Generate(ctx, keywordPrompt(description))
	if err == nil {
		if sets, perr := parseKeywordSets(reply); perr == nil {
			return sets
		}
	}
	return [][]string{chunkWords(description)}
}

// parseKeywordSets decodes a JSON array of string arrays, tolerating the
// markdown code fences models like to add.
func parseKeywordSets(text string) ([][]string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = text[3:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)
	if len(text) >= 4 && strings.EqualFold(text[:4], "json") {
		text = strings.TrimSpace(text[4:])
	}

	var sets [][]string
	if err := json.Unmarshal([]byte(text), &sets); err != nil {
		return nil, fmt.Errorf("parse keyword sets: %w", err)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("parse keyword sets: empty array")
	}
	return sets, nil
}

// chunkWords splits a description into a single keyword set of up to four
// words, the same fallback the dashboard used before keyword extraction.
func chunkWords(description string) []string {
	words := strings.Fields(description)
	if len(words) == 0 {
		return []string{description}
	}
	if len(words) > 4 {
		words = words[:4]
	}
	return words
}

// JudgeRelevance asks the model whether a paper matches the research
// description. Fail-open: any error keeps the paper, because dropping a
// possibly relevant result is worse than keeping a marginal one.
func JudgeRelevance(ctx context.Context, g Generator, description, title, abstract string) (bool, string) {
	reply, err := g.Generate(ctx, relevancePrompt(description, title, abstract))
	if err != nil {
		return true, "KEPT (error during evaluation)"
	}
	verdict := strings.TrimSpace(reply)
	if idx := strings.IndexByte(verdict, '\n'); idx >= 0 {
		verdict = verdict[:idx]
	}
	upper := strings.ToUpper(verdict)
	relevant := strings.HasPrefix(upper, "RELEVANT") && !strings.HasPrefix(upper, "NOT_RELEVANT")
	return relevant, verdict
}
