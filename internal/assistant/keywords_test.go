package assistant

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseKeywordSets(t *testing.T) {
	want := [][]string{{"vision transformer", "attention"}, {"ViT", "CNN comparison"}}

	cases := []struct {
		name string
		text string
	}{
		{"plain json", `[["vision transformer","attention"],["ViT","CNN comparison"]]`},
		{"fenced", "```\n[[\"vision transformer\",\"attention\"],[\"ViT\",\"CNN comparison\"]]\n```"},
		{"fenced with language tag", "```json\n[[\"vision transformer\",\"attention\"],[\"ViT\",\"CNN comparison\"]]\n```"},
		{"leading json word", `json [["vision transformer","attention"],["ViT","CNN comparison"]]`},
		{"surrounding whitespace", "\n  [[\"vision transformer\",\"attention\"],[\"ViT\",\"CNN comparison\"]]  \n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseKeywordSets(tc.text)
			if err != nil {
				t.Fatalf("parseKeywordSets: %v", err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("got %v, want %v", got, want)
			}
		})
	}

	for _, bad := range []string{"", "not json", "[]", `{"a": 1}`} {
		if _, err := parseKeywordSets(bad); err == nil {
			t.Errorf("parseKeywordSets(%q) succeeded, want error", bad)
		}
	}
}

func TestExtractKeywordSets(t *testing.T) {
	m := &Mock{Replies: []string{`[["quantum error correction","surface codes"]]`}}
	sets := ExtractKeywordSets(context.Background(), m, "surface codes for scalable quantum computers")
	if len(sets) != 1 || sets[0][0] != "quantum error correction" {
		t.Errorf("sets = %v", sets)
	}
	if len(m.Prompts) != 1 || !strings.Contains(m.Prompts[0], "surface codes for scalable quantum computers") {
		t.Errorf("prompt did not include the description: %v", m.Prompts)
	}
}

func TestExtractKeywordSetsFallsBack(t *testing.T) {
	cases := []struct {
		name string
		mock *Mock
	}{
		{"generator error", &Mock{Err: errors.New("quota exceeded")}},
		{"unparseable reply", &Mock{Replies: []string{"I'd be happy to help with keywords!"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sets := ExtractKeywordSets(context.Background(), tc.mock, "microplastics pollution in marine ecosystems today")
			want := [][]string{{"microplastics", "pollution", "in", "marine"}}
			if !reflect.DeepEqual(sets, want) {
				t.Errorf("fallback sets = %v, want %v", sets, want)
			}
		})
	}
}

func TestJudgeRelevance(t *testing.T) {
	cases := []struct {
		name    string
		reply   string
		want    bool
		verdict string
	}{
		{"relevant", "RELEVANT: directly addresses the topic\nextra line", true, "RELEVANT: directly addresses the topic"},
		{"not relevant", "NOT_RELEVANT: off topic", false, "NOT_RELEVANT: off topic"},
		{"lowercase relevant", "relevant - solid match", true, "relevant - solid match"},
		{"unclear reply keeps nothing", "Maybe?", false, "Maybe?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := &Mock{Replies: []string{tc.reply}}
			got, verdict := JudgeRelevance(context.Background(), m, "desc", "title", "abstract")
			if got != tc.want {
				t.Errorf("relevant = %v, want %v", got, tc.want)
			}
			if verdict != tc.verdict {
				t.Errorf("verdict = %q, want %q", verdict, tc.verdict)
			}
		})
	}
}

func TestJudgeRelevanceFailsOpen(t *testing.T) {
	m := &Mock{Err: errors.New("timeout")}
	got, verdict := JudgeRelevance(context.Background(), m, "desc", "title", "abstract")
	if !got {
		t.Error("errors should keep the paper")
	}
	if verdict != "KEPT (error during evaluation)" {
		t.Errorf("verdict = %q", verdict)
	}
}
