// Package report computes the end-of-session aggregate for the HCI study.
// A report is a pure function of an event snapshot: it is rebuilt on every
// request and never cached.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/revlab/sessiond/internal/config"
	"github.com/revlab/sessiond/internal/criteria"
	"github.com/revlab/sessiond/internal/event"
	"github.com/revlab/sessiond/internal/metrics"
	"github.com/revlab/sessiond/internal/session"
)

// Report is the derived, on-demand aggregate over a session's events.
type Report struct {
	ParticipantID   string    `json:"participant_id"`
	ParticipantName string    `json:"participant_name,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
	Finalized       bool      `json:"finalized"`

	TotalEvents       int            `json:"total_events"`
	CountsByType      map[string]int `json:"counts_by_type"`
	CountsByTask      map[string]int `json:"counts_by_task"`
	UnclassifiedCount int            `json:"unclassified_count"`
	UnclassifiedTypes []string       `json:"unclassified_types,omitempty"`

	// DurationSeconds is fixed after finalize; before finalize it is
	// measured against the report's clock.
	DurationSeconds       float64  `json:"duration_seconds"`
	TaskCompletionSeconds *float64 `json:"task_completion_time_seconds"`

	SearchQueries            int `json:"num_search_queries"`
	KeywordRefinements       int `json:"num_keyword_refinements"`
	PapersOpened             int `json:"num_papers_opened"`
	PapersSelected           int `json:"num_papers_selected"`
	DeepResearchLinkClicks   int `json:"num_deep_research_link_clicks"`
	SourceVerificationClicks int `json:"source_verification_clicks"`

	// Time spent per condition and section, idle gaps capped.
	TimeByCondition map[string]map[string]float64 `json:"time_metrics"`

	AICalls                      int            `json:"ai_calls"`
	AIOutputsGenerated           int            `json:"ai_outputs_generated"`
	AIRelianceRatio              *float64       `json:"ai_reliance_ratio"`
	ExplorationDepth             *float64       `json:"exploration_depth"`
	VerificationRate             *float64       `json:"verification_rate"`
	DeepResearchRuns             int            `json:"deep_research_runs"`
	DeepResearchVerificationRate *float64       `json:"deep_research_verification_rate"`
	AIFeatureBreakdown           map[string]int `json:"ai_feature_breakdown"`

	SUSScore    *float64 `json:"sus_score,omitempty"`
	NASATLXMean *float64 `json:"nasa_tlx_mean,omitempty"`
	TrustMean   *float64 `json:"trust_mean,omitempty"`

	Tasks []TaskSummary `json:"tasks"`
}

// TaskSummary is the per-task slice of the report.
type TaskSummary struct {
	TaskID    string `json:"task_id"`
	Name      string `json:"name,omitempty"`
	Events    int    `json:"events"`
	Started   bool   `json:"started"`
	Submitted bool   `json:"submitted"`
	Completed bool   `json:"completed"`
	RuleError string `json:"rule_error,omitempty"`
}

// Builder computes reports. Zero value works; Tasks enables per-task
// completion indicators.
type Builder struct {
	Tasks   []config.Task
	IdleCap time.Duration    // max gap attributed to one event; default 5 minutes
	Now     func() time.Time // clock for pre-finalize durations; default time.Now
}

// Build aggregates a snapshot into a Report. Pure over the snapshot (and the
// clock, for non-finalized sessions); an empty snapshot yields a zeroed
// aggregate, never an error.
func (b *Builder) Build(snap session.Snapshot) *Report {
	start := time.Now()
	defer func() {
		metrics.ReportBuildDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	idleCap := b.IdleCap
	if idleCap == 0 {
		idleCap = 5 * time.Minute
	}

	r := &Report{
		ParticipantID:   snap.ParticipantID,
		ParticipantName: snap.ParticipantName,
		GeneratedAt:     now().UTC(),
		Finalized:       !snap.EndedAt.IsZero(),
		CountsByType:    make(map[string]int),
		CountsByTask:    make(map[string]int),
		TimeByCondition: map[string]map[string]float64{
			event.ConditionManual: {},
			event.ConditionAI:     {},
		},
		AIFeatureBreakdown: make(map[string]int),
	}

	events := snap.Events
	r.TotalEvents = len(events)

	unclassified := make(map[string]struct{})
	for _, e := range events {
		r.CountsByType[e.Type]++
		if e.TaskID != "" {
			r.CountsByTask[e.TaskID]++
		}
		if !event.Recognized(e.Type) {
			r.UnclassifiedCount++
			unclassified[e.Type] = struct{}{}
		}
	}
	for typ := range unclassified {
		r.UnclassifiedTypes = append(r.UnclassifiedTypes, typ)
	}
	sort.Strings(r.UnclassifiedTypes)

	// Session duration.
	switch {
	case !snap.StartedAt.IsZero() && r.Finalized:
		r.DurationSeconds = snap.EndedAt.Sub(snap.StartedAt).Seconds()
	case !snap.StartedAt.IsZero():
		r.DurationSeconds = now().Sub(snap.StartedAt).Seconds()
	}

	// Efficiency: first task_start to last task_submit.
	var taskStart, taskSubmit *event.Event
	for i := range events {
		if events[i].Type == event.TaskStart {
			taskStart = &events[i]
			break
		}
	}
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == event.TaskSubmit {
			taskSubmit = &events[i]
			break
		}
	}
	if taskStart != nil && taskSubmit != nil {
		sec := taskSubmit.Timestamp.Sub(taskStart.Timestamp).Seconds()
		r.TaskCompletionSeconds = &sec
	}

	r.SearchQueries = r.CountsByType[event.SearchQuery]
	r.KeywordRefinements = r.CountsByType[event.KeywordRefine]
	r.PapersOpened = r.CountsByType[event.PaperOpen]
	r.PapersSelected = r.CountsByType[event.PaperSelect]
	r.DeepResearchLinkClicks = r.CountsByType[event.DeepResearchLinkClick]
	r.SourceVerificationClicks = r.CountsByType[event.SourceVerificationClick]
	r.AICalls = r.CountsByType[event.AICall]
	r.AIOutputsGenerated = r.CountsByType[event.AIOutputGenerated]

	// Time per condition and section: the gap between consecutive events is
	// attributed to the earlier event, capped so that an abandoned tab does
	// not dominate the totals.
	capSec := idleCap.Seconds()
	for i := 0; i+1 < len(events); i++ {
		diff := events[i+1].Timestamp.Sub(events[i].Timestamp).Seconds()
		if diff > capSec {
			diff = capSec
		}
		cond := events[i].Condition
		sec := events[i].Section
		if sec == "" {
			sec = session.DefaultSection
		}
		if r.TimeByCondition[cond] == nil {
			r.TimeByCondition[cond] = make(map[string]float64)
		}
		r.TimeByCondition[cond][sec] += diff
	}

	r.AIRelianceRatio = ratio(r.AICalls, r.AICalls+r.SearchQueries)
	r.ExplorationDepth = ratio(r.PapersOpened, r.PapersSelected)
	r.VerificationRate = ratio(r.SourceVerificationClicks, r.AIOutputsGenerated)

	drOpens := 0
	for _, e := range events {
		if e.Type == event.SourceVerificationClick && stringField(e.Value, "source_type") == "deep_research_external_link" {
			drOpens++
		}
		if e.Type == event.AIOutputGenerated && stringField(e.Value, "feature") == "deep_research" {
			r.DeepResearchRuns++
		}
		if e.Type == event.AICall {
			feat := stringField(e.Value, "feature")
			if feat == "" {
				feat = "unknown"
			}
			r.AIFeatureBreakdown[feat]++
		}
	}
	r.DeepResearchVerificationRate = ratio(drOpens, r.DeepResearchRuns)

	b.scoreSurveys(r, events)
	b.summarizeTasks(r, events)

	return r
}

func (b *Builder) summarizeTasks(r *Report, events []event.Event) {
	for _, t := range b.Tasks {
		ts := TaskSummary{TaskID: t.ID, Name: t.Name}
		counts := make(map[string]int)
		for _, e := range events {
			if e.TaskID != t.ID {
				continue
			}
			ts.Events++
			counts[e.Type]++
		}
		ts.Started = counts[event.TaskStart] > 0
		ts.Submitted = counts[event.TaskSubmit] > 0

		if t.Completion == "" {
			ts.Completed = ts.Started && ts.Submitted
		} else if rule, err := criteria.Compile(t.Completion); err != nil {
			ts.RuleError = err.Error()
		} else {
			ctx := &taskContext{
				counts:          counts,
				totalEvents:     r.TotalEvents,
				durationSeconds: r.DurationSeconds,
				started:         ts.Started,
				submitted:       ts.Submitted,
			}
			ok, err := rule.Eval(ctx)
			if err != nil {
				ts.RuleError = fmt.Sprintf("rule %q: %v", rule.Source(), err)
			} else {
				ts.Completed = ok
			}
		}
		r.Tasks = append(r.Tasks, ts)
	}
}

// taskContext resolves completion-rule fields against one task's aggregates.
// Unknown count paths resolve to zero so rules can reference event types the
// participant never triggered.
type taskContext struct {
	counts          map[string]int
	totalEvents     int
	durationSeconds float64
	started         bool
	submitted       bool
}

func (c *taskContext) Resolve(path []string) (interface{}, bool) {
	switch {
	case len(path) == 2 && path[0] == "counts":
		return float64(c.counts[path[1]]), true
	case len(path) == 1 && path[0] == "total_events":
		return float64(c.totalEvents), true
	case len(path) == 1 && path[0] == "duration_seconds":
		return c.durationSeconds, true
	case len(path) == 1 && path[0] == "started":
		return c.started, true
	case len(path) == 1 && path[0] == "submitted":
		return c.submitted, true
	}
	return nil, false
}

// ratio returns num/den, or nil when the denominator is zero.
func ratio(num, den int) *float64 {
	if den == 0 {
		return nil
	}
	v := float64(num) / float64(den)
	return &v
}

func stringField(value map[string]interface{}, key string) string {
	if value == nil {
		return ""
	}
	s, _ := value[key].(string)
	return s
}
