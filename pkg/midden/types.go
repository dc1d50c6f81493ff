package midden

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event represents a single durable message exchanged between agents.
// Events are broadcast: every consumer sees every event, and targetAgent is
// purely advisory metadata. Once published an event's identity fields never
// change; only processedBy grows as consumers acknowledge it.
type Event struct {
	ID          string         `json:"id"`                    // event-{unix-millis}-{random}
	Type        EventType      `json:"type"`                  // Closed set of job-lifecycle kinds
	Timestamp   string         `json:"timestamp"`             // RFC 3339 creation time; the processing order
	SourceAgent AgentKind      `json:"sourceAgent"`           // Publisher's role
	TargetAgent AgentKind      `json:"targetAgent,omitempty"` // Advisory hint, does not gate delivery
	Payload     map[string]any `json:"payload"`               // Shape keyed by Type; see payload.go
	ProcessedBy []string       `json:"processedBy"`           // Append-only set of consumer identities
	Status      EventStatus    `json:"status"`                // Advisory; location is authoritative
}

// EventType identifies the kind of an event and determines which handlers
// fire for it and what payload shape it carries.
type EventType string

const (
	// EventJobCreated announces a new job with a description and budget.
	EventJobCreated EventType = "JOB_CREATED"

	// EventJobAccepted records a worker taking on a job.
	EventJobAccepted EventType = "JOB_ACCEPTED"

	// EventWorkSubmitted carries a worker's completed submission.
	EventWorkSubmitted EventType = "WORK_SUBMITTED"

	// EventWorkApproved records the hiring agent accepting a submission.
	EventWorkApproved EventType = "WORK_APPROVED"

	// EventDisputeFiled records the hiring agent rejecting a submission.
	EventDisputeFiled EventType = "DISPUTE_FILED"

	// EventArbitrationComplete carries the arbitrator's ruling on a dispute.
	EventArbitrationComplete EventType = "ARBITRATION_COMPLETE"

	// EventPaymentReleased records funds moving to a recipient.
	EventPaymentReleased EventType = "PAYMENT_RELEASED"
)

// AgentKind is the logical role of an agent process.
type AgentKind string

const (
	// AgentHiring posts jobs, evaluates submissions, and releases payments.
	AgentHiring AgentKind = "hiring"

	// AgentWorker accepts jobs and submits work.
	AgentWorker AgentKind = "worker"

	// AgentArbitrator rules on disputes between hiring and worker.
	AgentArbitrator AgentKind = "arbitrator"

	// AgentUser marks events posted by a human via the CLI.
	AgentUser AgentKind = "user"
)

// EventStatus is a coarse lifecycle flag. It is advisory only: the
// authoritative state of an event is which directory it lives in plus its
// processedBy cardinality.
type EventStatus string

const (
	// StatusPending marks an event awaiting full consumption.
	StatusPending EventStatus = "pending"

	// StatusProcessed marks an event every consumer has acknowledged.
	StatusProcessed EventStatus = "processed"
)

// NewEventID generates a unique event identifier of the form
// event-{unix-millis}-{random}. The millisecond prefix gives ids a rough
// temporal order for humans; uniqueness comes from the random suffix.
func NewEventID() string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("event-%d-%s", time.Now().UnixMilli(), suffix)
}

// NewTimestamp returns the canonical timestamp encoding for events.
func NewTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Validate checks if the Event has valid field values.
// Returns an error if any validation fails.
func (e *Event) Validate() error {
	if !strings.HasPrefix(e.ID, "event-") || len(e.ID) <= len("event-") {
		return fmt.Errorf("invalid event ID: %q", e.ID)
	}

	if err := e.Type.Validate(); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}

	if _, err := e.When(); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}

	if err := e.SourceAgent.Validate(); err != nil {
		return fmt.Errorf("invalid source agent: %w", err)
	}

	// Target agent is optional advisory metadata
	if e.TargetAgent != "" {
		if err := e.TargetAgent.Validate(); err != nil {
			return fmt.Errorf("invalid target agent: %w", err)
		}
	}

	if err := e.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	seen := make(map[string]struct{}, len(e.ProcessedBy))
	for _, consumer := range e.ProcessedBy {
		if consumer == "" {
			return fmt.Errorf("processedBy contains an empty consumer identity")
		}
		if _, dup := seen[consumer]; dup {
			return fmt.Errorf("processedBy contains duplicate consumer %q", consumer)
		}
		seen[consumer] = struct{}{}
	}

	return nil
}

// When parses the event's timestamp. Timestamps are written as RFC 3339
// with nanoseconds, but any RFC 3339 encoding parses (other runtimes may
// write lower precision).
func (e *Event) When() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, e.Timestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q is not RFC 3339: %w", e.Timestamp, err)
	}
	return t, nil
}

// HasProcessed reports whether the given consumer identity has already
// acknowledged this event.
func (e *Event) HasProcessed(consumer string) bool {
	for _, c := range e.ProcessedBy {
		if c == consumer {
			return true
		}
	}
	return false
}

// MarkProcessed appends the consumer to processedBy if absent.
// Returns true if the set grew, false if the consumer was already present.
func (e *Event) MarkProcessed(consumer string) bool {
	if e.HasProcessed(consumer) {
		return false
	}
	e.ProcessedBy = append(e.ProcessedBy, consumer)
	return true
}

// ProcessedCount returns the number of consumers that have acknowledged
// this event.
func (e *Event) ProcessedCount() int {
	return len(e.ProcessedBy)
}

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventJobCreated, EventJobAccepted, EventWorkSubmitted, EventWorkApproved,
		EventDisputeFiled, EventArbitrationComplete, EventPaymentReleased:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Validate checks if the AgentKind is a valid enum value.
func (k AgentKind) Validate() error {
	switch k {
	case AgentHiring, AgentWorker, AgentArbitrator, AgentUser:
		return nil
	default:
		return fmt.Errorf("unknown agent kind: %q", k)
	}
}

// Validate checks if the EventStatus is a valid enum value.
func (s EventStatus) Validate() error {
	switch s {
	case StatusPending, StatusProcessed:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", s)
	}
}
