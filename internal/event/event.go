package event

import "time"

// Canonical event types emitted by the dashboard. Unknown types are still
// recorded; reporting buckets them as unclassified.
const (
	SessionStart            = "session_start"
	TaskStart               = "task_start"
	TaskSubmit              = "task_submit"
	SearchQuery             = "search_query"
	KeywordRefine           = "keyword_refine"
	FilterApplied           = "filter_applied"
	PaperOpen               = "paper_open"
	PaperSelect             = "paper_select"
	PaperRemove             = "paper_remove"
	ChatMessageSent         = "chat_message_sent"
	AICall                  = "ai_call"
	AIOutputGenerated       = "ai_output_generated"
	SourceVerificationClick = "source_verification_click"
	DeepResearchLinkClick   = "deep_research_link_click"
	SummarySubmit           = "summary_submit"
	GapSubmit               = "gap_submit"
	KeywordsSubmit          = "keywords_submit"
	SurveyResponse          = "survey_response"
	SectionChange           = "section_change"
	ModeSwitch              = "mode_switch"
	SessionEnd              = "session_end"
)

// Study conditions. The active condition is stamped on every event from the
// session's mode at record time.
const (
	ConditionManual = "A (manual)"
	ConditionAI     = "B (ai)"
)

var canonical = map[string]struct{}{
	SessionStart:            {},
	TaskStart:               {},
	TaskSubmit:              {},
	SearchQuery:             {},
	KeywordRefine:           {},
	FilterApplied:           {},
	PaperOpen:               {},
	PaperSelect:             {},
	PaperRemove:             {},
	ChatMessageSent:         {},
	AICall:                  {},
	AIOutputGenerated:       {},
	SourceVerificationClick: {},
	DeepResearchLinkClick:   {},
	SummarySubmit:           {},
	GapSubmit:               {},
	KeywordsSubmit:          {},
	SurveyResponse:          {},
	SectionChange:           {},
	ModeSwitch:              {},
	SessionEnd:              {},
}

// Recognized reports whether typ is one of the canonical event types.
func Recognized(typ string) bool {
	_, ok := canonical[typ]
	return ok
}

// Event is one timestamped interaction record within a session.
// Immutable once recorded; ordered by timestamp within a session.
type Event struct {
	Timestamp       time.Time              `json:"timestamp"`
	ParticipantID   string                 `json:"participant_id"`
	ParticipantName string                 `json:"participant_name,omitempty"`
	Condition       string                 `json:"condition"`
	TaskID          string                 `json:"task_id,omitempty"`
	Section         string                 `json:"section"`
	Type            string                 `json:"event_type"`
	Value           map[string]interface{} `json:"event_value,omitempty"`
}
