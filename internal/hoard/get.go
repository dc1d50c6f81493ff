package hoard

import (
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/drey/pkg/midden"
)

// GetEvent retrieves a single event by ID and writes it as pretty-printed
// JSON to the writer. The pending directory is checked first, then the
// archive. Returns an EventNotFoundError if the event exists in neither.
func GetEvent(store *midden.Store, eventID string, w io.Writer) error {
	if !strings.HasPrefix(eventID, "event-") {
		return fmt.Errorf("invalid event ID format: must start with 'event-'")
	}

	event, err := store.GetPending(eventID)
	if midden.IsNotFound(err) {
		event, err = store.GetArchived(eventID)
	}
	if err != nil {
		if midden.IsNotFound(err) {
			return &EventNotFoundError{EventID: eventID}
		}
		return fmt.Errorf("failed to fetch event: %w", err)
	}

	if err := FormatSingleJSON(w, event); err != nil {
		return fmt.Errorf("failed to format event: %w", err)
	}

	return nil
}

// EventNotFoundError represents a specific "event not found" error.
// This allows callers to distinguish not-found errors from other failures.
type EventNotFoundError struct {
	EventID string
}

func (e *EventNotFoundError) Error() string {
	return fmt.Sprintf("event with ID '%s' not found", e.EventID)
}

// IsNotFound returns true if the error is an EventNotFoundError.
func IsNotFound(err error) bool {
	_, ok := err.(*EventNotFoundError)
	return ok
}
