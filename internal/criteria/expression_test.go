package criteria

import (
	"testing"
)

// mapCtx implements Context for tests. Missing "counts.*" paths resolve to
// zero, mirroring how the report builder exposes per-task counts.
type mapCtx struct {
	data map[string]interface{}
}

func (m *mapCtx) Resolve(path []string) (interface{}, bool) {
	if len(path) == 2 && path[0] == "counts" {
		v, ok := m.data["counts."+path[1]]
		if !ok {
			return float64(0), true
		}
		return v, true
	}
	if len(path) == 1 {
		v, ok := m.data[path[0]]
		return v, ok
	}
	return nil, false
}

func ctx(kv ...interface{}) *mapCtx {
	m := &mapCtx{data: make(map[string]interface{})}
	for i := 0; i < len(kv)-1; i += 2 {
		m.data[kv[i].(string)] = kv[i+1]
	}
	return m
}

type evalCase struct {
	name    string
	expr    string
	ctx     Context
	want    bool
	wantErr bool
}

func TestEval(t *testing.T) {
	cases := []evalCase{
		{
			name: "gte true",
			expr: "counts.paper_select >= 3",
			ctx:  ctx("counts.paper_select", float64(4)),
			want: true,
		},
		{
			name: "gte equal",
			expr: "counts.paper_select >= 3",
			ctx:  ctx("counts.paper_select", float64(3)),
			want: true,
		},
		{
			name: "gte false",
			expr: "counts.paper_select >= 3",
			ctx:  ctx("counts.paper_select", float64(2)),
			want: false,
		},
		{
			name: "missing count resolves to zero",
			expr: "counts.summary_submit >= 1",
			ctx:  ctx(),
			want: false,
		},
		{
			name: "symbol and",
			expr: "counts.paper_select >= 3 && counts.summary_submit >= 1",
			ctx:  ctx("counts.paper_select", float64(3), "counts.summary_submit", float64(1)),
			want: true,
		},
		{
			name: "symbol and short-circuits",
			expr: "counts.paper_select >= 3 && counts.summary_submit >= 1",
			ctx:  ctx("counts.paper_select", float64(1)),
			want: false,
		},
		{
			name: "word and",
			expr: "counts.gap_submit >= 1 and counts.keywords_submit >= 1",
			ctx:  ctx("counts.gap_submit", float64(1), "counts.keywords_submit", float64(2)),
			want: true,
		},
		{
			name: "symbol or",
			expr: "counts.summary_submit >= 1 || counts.gap_submit >= 1",
			ctx:  ctx("counts.gap_submit", float64(1)),
			want: true,
		},
		{
			name: "not with parens",
			expr: "!(counts.search_query > 10)",
			ctx:  ctx("counts.search_query", float64(3)),
			want: true,
		},
		{
			name: "bare boolean field",
			expr: "submitted",
			ctx:  ctx("submitted", true),
			want: true,
		},
		{
			name: "bare boolean field false",
			expr: "submitted && counts.paper_select >= 1",
			ctx:  ctx("submitted", false, "counts.paper_select", float64(5)),
			want: false,
		},
		{
			name: "eq string",
			expr: `condition == "B (ai)"`,
			ctx:  ctx("condition", "B (ai)"),
			want: true,
		},
		{
			name: "neq",
			expr: "counts.task_submit != 0",
			ctx:  ctx("counts.task_submit", float64(1)),
			want: true,
		},
		{
			name: "contains",
			expr: `condition contains "ai"`,
			ctx:  ctx("condition", "B (ai)"),
			want: true,
		},
		{
			name: "duration threshold",
			expr: "duration_seconds < 1800",
			ctx:  ctx("duration_seconds", 900.0),
			want: true,
		},
		{
			name:    "unknown field errors",
			expr:    "nope > 1",
			ctx:     ctx(),
			wantErr: true,
		},
		{
			name:    "numeric compare on string errors",
			expr:    "condition > 1",
			ctx:     ctx("condition", "A (manual)"),
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, err := Compile(tc.expr)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tc.expr, err)
			}
			got, err := rule.Eval(tc.ctx)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Eval(%q) = %v, want error", tc.expr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Eval(%q): %v", tc.expr, err)
			}
			if got != tc.want {
				t.Errorf("Eval(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name string
		expr string
	}{
		{"single ampersand", "a >= 1 & b >= 1"},
		{"single pipe", "a >= 1 | b >= 1"},
		{"unterminated string", `condition == "oops`},
		{"dangling operator", "counts.paper_select >="},
		{"unbalanced paren", "(counts.paper_select >= 1"},
		{"trailing garbage", "counts.paper_select >= 1 counts.x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Compile(tc.expr); err == nil {
				t.Errorf("Compile(%q) succeeded, want error", tc.expr)
			}
		})
	}
}
