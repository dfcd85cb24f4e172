package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/revlab/sessiond/internal/criteria"
)

// ErrInvalid tags validation failures so callers can tell a rejected config
// apart from a read or parse error.
var ErrInvalid = errors.New("invalid study config")

// Validate checks the config for:
//   - Duplicate task IDs
//   - Required fields (version, task id/name/objective)
//   - Parseable completion expressions
func Validate(cfg *StudyConfig) error {
	if cfg.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalid)
	}
	seen := make(map[string]int) // id → first index
	var errs []string

	for i, t := range cfg.Tasks {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("tasks[%d]: id is required", i))
			continue
		}
		if prev, ok := seen[t.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate task id %q (tasks[%d] and tasks[%d])", t.ID, prev, i))
		} else {
			seen[t.ID] = i
		}
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("task %s: name is required", t.ID))
		}
		if t.Objective == "" {
			errs = append(errs, fmt.Sprintf("task %s: objective is required", t.ID))
		}
		if len(t.Criteria) == 0 {
			errs = append(errs, fmt.Sprintf("task %s: criteria must not be empty", t.ID))
		}
		if t.Completion != "" {
			if _, err := criteria.Compile(t.Completion); err != nil {
				errs = append(errs, fmt.Sprintf("task %s: completion: %v", t.ID, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalid, strings.Join(errs, "\n  - "))
	}
	return nil
}
