package assistant

import (
	"fmt"
	"strings"

	"github.com/revlab/sessiond/internal/scholar"
)

// SummaryKind selects the multi-paper summary flavor.
type SummaryKind string

const (
	SummaryOverview    SummaryKind = "Literature Overview"
	SummaryGaps        SummaryKind = "Research Gaps"
	SummaryMethodology SummaryKind = "Methodology Comparison"
	SummaryFindings    SummaryKind = "Key Findings"
)

var summaryInstructions = map[SummaryKind]string{
	SummaryOverview:    "provide a comprehensive literature overview summarizing the main themes, research areas, and contributions of these papers.",
	SummaryGaps:        "identify potential research gaps and future research directions based on these papers.",
	SummaryMethodology: "compare and contrast the research methodologies used across these papers.",
	SummaryFindings:    "summarize the key findings and conclusions from each paper.",
}

// paperContext renders a paper's metadata block for a prompt.
func paperContext(p scholar.Paper) string {
	return fmt.Sprintf("Title: %s\nAuthors: %s\nAbstract: %s",
		p.Title, strings.Join(p.Authors, ", "), p.Abstract)
}

// ChatPrompt builds the paper Q&A prompt.
func ChatPrompt(p scholar.Paper, question string) string {
	return fmt.Sprintf(
		"You are a research assistant. Analyze the following academic paper and answer the user's question.\n\nPaper:\n%s\n\n%s",
		paperContext(p), question)
}

// SummaryPrompt builds the multi-paper summary prompt.
func SummaryPrompt(kind SummaryKind, papers []scholar.Paper) string {
	instruction, ok := summaryInstructions[kind]
	if !ok {
		instruction = summaryInstructions[SummaryOverview]
	}
	blocks := make([]string, 0, len(papers))
	for _, p := range papers {
		blocks = append(blocks, paperContext(p))
	}
	return fmt.Sprintf(
		"You are an academic research analyst. Based on the following papers, %s\n\nPapers:\n%s",
		instruction, strings.Join(blocks, "\n\n"))
}

// keywordPrompt asks for diverse keyword sets as a JSON array of arrays.
func keywordPrompt(description string) string {
	return "You are a research librarian. Given the following research description, " +
		"produce 3 to 4 diverse keyword sets that can be used to search academic databases. " +
		"The first set should be direct keywords from the description. " +
		"The remaining sets should be rephrased or synonym variants for broader coverage.\n\n" +
		"Return ONLY a JSON array of arrays. Each inner array is a list of keyword strings. " +
		`Example: [["attention mechanism", "image segmentation"], ["self-attention", "semantic segmentation"]]` +
		"\n\nResearch description: " + description
}

// relevancePrompt asks for a one-line RELEVANT / NOT_RELEVANT verdict.
func relevancePrompt(description, title, abstract string) string {
	return "You are an academic research assistant. Determine whether the following paper " +
		"is relevant to the user's research description.\n\n" +
		"User's research description: " + description + "\n\n" +
		"Paper title: " + title + "\n" +
		"Paper abstract: " + abstract + "\n\n" +
		"Respond with EXACTLY one line starting with either RELEVANT or NOT_RELEVANT, " +
		"followed by a brief reason. Example:\n" +
		"RELEVANT: This paper directly addresses attention mechanisms for segmentation."
}
