// Package watch provides polling helpers over the event store: waiting for
// specific events to appear or archive, and tailing the store as a live
// human-readable feed for the `drey watch` command.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/drey/pkg/midden"
)

// PollForEvent polls the pending directory until an event matching the
// predicate appears. Returns the matched event or an error if the timeout
// elapses. Polls every 200ms for the specified timeout duration.
func PollForEvent(ctx context.Context, store *midden.Store, match func(*midden.Event) bool, timeout time.Duration) (*midden.Event, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for event after %v", timeout)

		case <-ticker.C:
			events, err := store.ListPending()
			if err != nil {
				return nil, fmt.Errorf("failed to list pending events: %w", err)
			}
			for _, e := range events {
				if match(e) {
					return e, nil
				}
			}
		}
	}
}

// PollForArchived polls until the event with the given ID reaches the
// archive, meaning every expected consumer has acknowledged it.
func PollForArchived(ctx context.Context, store *midden.Store, eventID string, timeout time.Duration) (*midden.Event, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for event %s to archive after %v", eventID, timeout)

		case <-ticker.C:
			event, err := store.GetArchived(eventID)
			if err != nil {
				if midden.IsNotFound(err) {
					continue
				}
				return nil, fmt.Errorf("failed to query archive: %w", err)
			}
			return event, nil
		}
	}
}

// Stream tails the store and writes one formatted line per newly observed
// event, plus a line when an event reaches the archive. Runs until the
// context is cancelled, which is the normal way to stop it.
func Stream(ctx context.Context, store *midden.Store, interval time.Duration, w io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seen := make(map[string]bool)     // announced at all
	archived := make(map[string]bool) // announced as archived

	emit := func() error {
		pending, err := store.ListPending()
		if err != nil {
			return fmt.Errorf("failed to list pending events: %w", err)
		}
		for _, e := range pending {
			if !seen[e.ID] {
				seen[e.ID] = true
				fmt.Fprintln(w, FormatEventLine(e))
			}
		}

		arch, err := store.ListArchived()
		if err != nil {
			return fmt.Errorf("failed to list archived events: %w", err)
		}
		for _, e := range arch {
			if !seen[e.ID] {
				seen[e.ID] = true
				fmt.Fprintln(w, FormatEventLine(e))
			}
			if !archived[e.ID] {
				archived[e.ID] = true
				fmt.Fprintf(w, "🗄️  Archived: %s (%s) after %d acks\n", e.ID, e.Type, e.ProcessedCount())
			}
		}
		return nil
	}

	if err := emit(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := emit(); err != nil {
				return err
			}
		}
	}
}

// FormatEventLine renders a human-readable one-line summary of an event.
func FormatEventLine(e *midden.Event) string {
	jobID, _ := e.Payload["jobId"].(string)

	switch e.Type {
	case midden.EventJobCreated:
		budget, _ := e.Payload["budget"].(float64)
		return fmt.Sprintf("📋 Job Created: %s budget=%.2f by=%s", jobID, budget, e.SourceAgent)
	case midden.EventJobAccepted:
		workerID, _ := e.Payload["workerId"].(string)
		return fmt.Sprintf("🤝 Job Accepted: %s by=%s", jobID, workerID)
	case midden.EventWorkSubmitted:
		return fmt.Sprintf("📦 Work Submitted: %s by=%s", jobID, e.SourceAgent)
	case midden.EventWorkApproved:
		score := intField(e.Payload, "score")
		return fmt.Sprintf("✅ Work Approved: %s score=%d", jobID, score)
	case midden.EventDisputeFiled:
		reason, _ := e.Payload["reason"].(string)
		return fmt.Sprintf("❌ Dispute Filed: %s reason=%q", jobID, reason)
	case midden.EventArbitrationComplete:
		ruling, _ := e.Payload["ruling"].(string)
		refund := intField(e.Payload, "refundPct")
		return fmt.Sprintf("⚖️  Arbitration Complete: %s ruling=%s refund=%d%%", jobID, ruling, refund)
	case midden.EventPaymentReleased:
		recipient, _ := e.Payload["recipient"].(string)
		amount, _ := e.Payload["amount"].(float64)
		return fmt.Sprintf("💰 Payment Released: %s to=%s amount=%.2f", jobID, recipient, amount)
	default:
		return fmt.Sprintf("•  %s: %s by=%s", e.Type, e.ID, e.SourceAgent)
	}
}

// intField reads a numeric payload field. JSON numbers unmarshal as float64,
// but events built in-process may carry real ints.
func intField(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
