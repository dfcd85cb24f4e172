package report

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/revlab/sessiond/internal/event"
)

var csvHeader = []string{
	"participant_id", "participant_name", "condition", "task_id",
	"section", "event_type", "event_value", "timestamp",
}

// WriteCSV writes the raw event rows as CSV, suitable for download into the
// study's analysis tooling. Payloads are serialized as JSON in a single cell.
func WriteCSV(w io.Writer, events []event.Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range events {
		value := "{}"
		if e.Value != nil {
			raw, err := json.Marshal(e.Value)
			if err == nil {
				value = string(raw)
			}
		}
		row := []string{
			e.ParticipantID,
			e.ParticipantName,
			e.Condition,
			e.TaskID,
			e.Section,
			e.Type,
			value,
			e.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
