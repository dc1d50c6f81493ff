// Package resolver resolves short event ID prefixes to full event IDs so
// CLI users can type "event-1714" instead of the whole identifier.
package resolver

import (
	"fmt"
	"strings"

	"github.com/dyluth/drey/pkg/midden"
)

// MinShortIDLength is the minimum required length for short ID prefixes.
// Set to 10 characters ("event-" plus a slice of the millisecond prefix)
// to balance usability with collision avoidance.
const MinShortIDLength = 10

// ResolveEventID resolves a short ID prefix to a full event ID by scanning
// both the pending and archive directories.
// Returns the full ID if exactly one event matches.
// Returns a NotFoundError or AmbiguousError otherwise.
func ResolveEventID(store *midden.Store, shortID string) (string, error) {
	if !strings.HasPrefix(shortID, "event-") {
		return "", fmt.Errorf("invalid event ID format: must start with 'event-'")
	}
	if len(shortID) < MinShortIDLength {
		return "", fmt.Errorf("short ID must be at least %d characters (got %d)", MinShortIDLength, len(shortID))
	}

	ids, err := knownEventIDs(store)
	if err != nil {
		return "", fmt.Errorf("failed to search for event: %w", err)
	}

	var matches []string
	for _, id := range ids {
		if id == shortID {
			// Exact match always wins, even if it prefixes other ids
			return id, nil
		}
		if strings.HasPrefix(id, shortID) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{ShortID: shortID}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{ShortID: shortID, Matches: matches}
	}
}

func knownEventIDs(store *midden.Store) ([]string, error) {
	var ids []string

	pending, err := store.ListPending()
	if err != nil {
		return nil, err
	}
	for _, e := range pending {
		ids = append(ids, e.ID)
	}

	archived, err := store.ListArchived()
	if err != nil {
		return nil, err
	}
	for _, e := range archived {
		ids = append(ids, e.ID)
	}

	return ids, nil
}

// NotFoundError indicates no events matched the short ID.
type NotFoundError struct {
	ShortID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no events found matching '%s'", e.ShortID)
}

// AmbiguousError indicates multiple events matched the short ID.
type AmbiguousError struct {
	ShortID string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous short ID '%s' matches %d events", e.ShortID, len(e.Matches))
}

// FormatAmbiguousError creates a user-friendly error message for ambiguous short IDs.
// Lists all matching IDs (up to 10, then "...and N more").
func FormatAmbiguousError(err *AmbiguousError) string {
	msg := fmt.Sprintf("Error: ambiguous short ID '%s' matches %d events:\n", err.ShortID, len(err.Matches))

	displayCount := len(err.Matches)
	if displayCount > 10 {
		displayCount = 10
	}

	for i := 0; i < displayCount; i++ {
		msg += fmt.Sprintf("  %s\n", err.Matches[i])
	}

	if len(err.Matches) > 10 {
		msg += fmt.Sprintf("  ...and %d more\n", len(err.Matches)-10)
	}

	msg += "\nUse a longer prefix to uniquely identify the event."
	return msg
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

// IsAmbiguousError checks if an error is an AmbiguousError.
func IsAmbiguousError(err error) bool {
	_, ok := err.(*AmbiguousError)
	return ok
}
