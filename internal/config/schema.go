package config

// StudyConfig is the top-level YAML structure.
type StudyConfig struct {
	Version   string              `yaml:"version"`
	Server    ServerConf          `yaml:"server"`
	Logging   LoggingConf         `yaml:"logging"`
	Tasks     []Task              `yaml:"tasks"`
	Tutorials map[string][]string `yaml:"tutorials"`
}

// ServerConf holds HTTP and external-API knobs.
type ServerConf struct {
	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`
	SearchLimit    int `yaml:"search_limit"` // default page size for paper search
}

// LoggingConf controls where session event logs are written.
type LoggingConf struct {
	Dir            string `yaml:"dir"`              // per-participant JSONL files
	ArchivePath    string `yaml:"archive_path"`     // SQLite archive of finalized sessions
	IdleCapSeconds int    `yaml:"idle_cap_seconds"` // max gap attributed to one event in time metrics
}

// Task is one unit of study work a participant is asked to complete. It is
// served as-is on the tasks endpoint.
type Task struct {
	ID        string   `yaml:"id" json:"id"`
	Name      string   `yaml:"name" json:"name"`
	Objective string   `yaml:"objective" json:"objective"`
	Criteria  []string `yaml:"criteria" json:"criteria"` // prose criteria, shown to participants
	Samples   []string `yaml:"samples" json:"samples,omitempty"` // example topics

	// Completion is an optional machine-readable rule over per-task report
	// aggregates, e.g. "counts.paper_select >= 3 && counts.summary_submit >= 1".
	// When empty, a task counts as complete once it was both started and submitted.
	Completion string `yaml:"completion" json:"completion,omitempty"`
}

// Task returns the task definition with the given id.
func (c *StudyConfig) Task(id string) (*Task, bool) {
	for i := range c.Tasks {
		if c.Tasks[i].ID == id {
			return &c.Tasks[i], true
		}
	}
	return nil, false
}
