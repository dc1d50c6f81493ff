package hoard

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/drey/pkg/midden"
)

// FormatTable writes events as a formatted table to the provided writer.
// Columns: ID, TYPE, FROM, ACKS, AGE, and a truncated payload preview.
// Returns the number of events formatted.
func FormatTable(w io.Writer, events []*midden.Event, scope Scope) int {
	if len(events) == 0 {
		fmt.Fprintf(w, "No %s events found\n", scope)
		return 0
	}

	fmt.Fprintf(w, "%s events:\n\n", titleFor(scope))

	fmt.Fprintf(w, "%-22s %-22s %-12s %-5s %-8s %s\n",
		"ID", "TYPE", "FROM", "ACKS", "AGE", "PAYLOAD")
	fmt.Fprintf(w, "%-22s %-22s %-12s %-5s %-8s %s\n",
		"----------------------", "----------------------", "------------", "-----", "--------", "----------------------------------------")

	for _, e := range events {
		fmt.Fprintf(w, "%-22s %-22s %-12s %-5d %-8s %s\n",
			formatID(e.ID),
			e.Type,
			e.SourceAgent,
			e.ProcessedCount(),
			formatTimestamp(e),
			formatPayload(e.Payload),
		)
	}

	countMsg := "event"
	if len(events) != 1 {
		countMsg = "events"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(events), countMsg)

	return len(events)
}

// FormatJSONL writes events as line-delimited JSON (JSONL) to the provided writer.
// Each event is written as a single JSON object on its own line.
// This format is ideal for streaming and processing with tools like jq.
func FormatJSONL(w io.Writer, events []*midden.Event) error {
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", string(data)); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

// FormatSingleJSON writes a single event as pretty-printed JSON to the provided writer.
// Used in get mode to display complete event details.
func FormatSingleJSON(w io.Writer, event *midden.Event) error {
	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal event to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}

	fmt.Fprintln(w)

	return nil
}

func titleFor(scope Scope) string {
	switch scope {
	case ScopePending:
		return "Pending"
	case ScopeArchived:
		return "Archived"
	default:
		return "All"
	}
}

// formatID truncates an event ID for compact display. The millisecond
// prefix and a slice of the random suffix are enough to identify an event
// at a glance.
func formatID(id string) string {
	if len(id) > 22 {
		return id[:19] + "..."
	}
	return id
}

// formatPayload renders the payload as compact JSON truncated to 40 chars.
// Empty payloads return "-".
func formatPayload(payload map[string]any) string {
	if len(payload) == 0 {
		return "-"
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "-"
	}

	s := string(data)
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}

// formatTimestamp renders an event's creation time as a relative age like
// "2m ago". Unparseable timestamps return "-".
func formatTimestamp(e *midden.Event) string {
	t, err := e.When()
	if err != nil {
		return "-"
	}

	diff := time.Since(t)

	if diff < time.Minute {
		return fmt.Sprintf("%ds ago", int(diff.Seconds()))
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
}
