// Package hoard inspects the event store: listing, filtering, and fetching
// events from both the pending and archive directories. It backs the
// `drey hoard` CLI commands.
package hoard

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/dyluth/drey/pkg/midden"
)

// OutputFormat specifies how to format the event list output.
type OutputFormat string

const (
	// OutputFormatDefault uses a table format with truncated payloads
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSONL outputs complete events as line-delimited JSON
	OutputFormatJSONL OutputFormat = "jsonl"
)

// Scope selects which store directories to list from.
type Scope string

const (
	// ScopePending lists only unconsumed events.
	ScopePending Scope = "pending"

	// ScopeArchived lists only fully consumed events.
	ScopeArchived Scope = "archived"

	// ScopeAll lists both.
	ScopeAll Scope = "all"
)

// Validate checks the scope is a known value.
func (s Scope) Validate() error {
	switch s {
	case ScopePending, ScopeArchived, ScopeAll:
		return nil
	default:
		return fmt.Errorf("unknown scope: %q (must be 'pending', 'archived', or 'all')", s)
	}
}

// FilterCriteria defines filtering options for the hoard list command.
// All filters are ANDed together.
type FilterCriteria struct {
	Since     time.Time // Zero value = no filter
	Until     time.Time // Zero value = no filter
	TypeGlob  string    // Glob pattern for event type, empty = no filter
	AgentRole string    // Exact match for sourceAgent, empty = no filter
	JobID     string    // Exact match on the payload's jobId field, empty = no filter
}

// matchesFilter returns true if the event matches all filter criteria.
func (fc *FilterCriteria) matchesFilter(e *midden.Event) bool {
	if !fc.Since.IsZero() || !fc.Until.IsZero() {
		when, err := e.When()
		if err != nil {
			return false
		}
		if !fc.Since.IsZero() && when.Before(fc.Since) {
			return false
		}
		if !fc.Until.IsZero() && when.After(fc.Until) {
			return false
		}
	}

	if fc.TypeGlob != "" {
		matched, err := filepath.Match(fc.TypeGlob, string(e.Type))
		if err != nil || !matched {
			return false
		}
	}

	if fc.AgentRole != "" && string(e.SourceAgent) != fc.AgentRole {
		return false
	}

	if fc.JobID != "" {
		jobID, _ := e.Payload["jobId"].(string)
		if jobID != fc.JobID {
			return false
		}
	}

	return true
}

// ListEvents reads events from the store, applies filters, and writes them
// to the provided writer in the requested format. Events are sorted by
// creation time (oldest first) for chronological output.
func ListEvents(store *midden.Store, scope Scope, format OutputFormat, filters *FilterCriteria, w io.Writer) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	var events []*midden.Event

	if scope == ScopePending || scope == ScopeAll {
		pending, err := store.ListPending()
		if err != nil {
			return fmt.Errorf("failed to list pending events: %w", err)
		}
		events = append(events, pending...)
	}

	if scope == ScopeArchived || scope == ScopeAll {
		archived, err := store.ListArchived()
		if err != nil {
			return fmt.Errorf("failed to list archived events: %w", err)
		}
		events = append(events, archived...)
	}

	if filters != nil {
		filtered := events[:0]
		for _, e := range events {
			if filters.matchesFilter(e) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	sort.SliceStable(events, func(i, j int) bool {
		ti, erri := events[i].When()
		tj, errj := events[j].When()
		if erri != nil || errj != nil {
			return events[i].ID < events[j].ID
		}
		if ti.Equal(tj) {
			return events[i].ID < events[j].ID
		}
		return ti.Before(tj)
	})

	switch format {
	case OutputFormatDefault:
		FormatTable(w, events, scope)
	case OutputFormatJSONL:
		if err := FormatJSONL(w, events); err != nil {
			return fmt.Errorf("failed to format JSONL output: %w", err)
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	return nil
}
