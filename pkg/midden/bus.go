package midden

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// DefaultExpectedConsumers is the archival threshold when none is
// configured: one consumer per role (hiring, worker, arbitrator).
const DefaultExpectedConsumers = 3

// DefaultPollInterval is the poll cadence when none is configured.
const DefaultPollInterval = 1 * time.Second

// Handler is business logic bound to one event type. Handlers are invoked
// with the full event, sequentially, in registration order. A handler error
// is logged and isolated: it blocks neither sibling handlers nor the
// processed-mark.
//
// Handlers should be idempotent. The append to processedBy and its persist
// are not transactionally atomic with handler execution, so a process crash
// in between re-runs this consumer's handlers for that event on restart.
type Handler func(ctx context.Context, e *Event) error

// Bus is the publish/subscribe surface over a Store for one consumer
// identity. A timer-driven poll loop enumerates pending events in timestamp
// order, dispatches matching handlers, records this consumer in the event's
// processedBy set, and archives the event once the set reaches the expected
// consumer count.
//
// A bus is either idle or polling. Exactly one poll cycle is in flight at a
// time: cycles run inline on the loop goroutine, so overlap is structurally
// impossible. Stopping clears the timer; an in-flight cycle runs to
// completion.
type Bus struct {
	store             *Store
	consumerID        string
	expectedConsumers int
	pollInterval      time.Duration

	mu       sync.Mutex
	handlers map[EventType][]Handler
	polling  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Option configures a Bus at construction.
type Option func(*Bus)

// WithExpectedConsumers sets the archival threshold: the number of distinct
// consumer identities that must each process an event before it moves to
// the archive. Values below 1 are ignored.
func WithExpectedConsumers(n int) Option {
	return func(b *Bus) {
		if n >= 1 {
			b.expectedConsumers = n
		}
	}
}

// WithPollInterval sets the poll timer cadence. Non-positive values are
// ignored.
func WithPollInterval(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

// NewBus creates a bus bound to one consumer identity over the given store.
// The consumer identity must be unique per running agent process; it is
// what the exactly-once-per-consumer guarantee keys on.
func NewBus(store *Store, consumerID string, opts ...Option) (*Bus, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if consumerID == "" {
		return nil, fmt.Errorf("consumer identity cannot be empty")
	}

	b := &Bus{
		store:             store,
		consumerID:        consumerID,
		expectedConsumers: DefaultExpectedConsumers,
		pollInterval:      DefaultPollInterval,
		handlers:          make(map[EventType][]Handler),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

// ConsumerID returns the consumer identity this bus processes events as.
func (b *Bus) ConsumerID() string {
	return b.consumerID
}

// Subscribe registers an additional handler for an event type. Multiple
// handlers per type are allowed; all are invoked in registration order on
// every matching event. Registration is safe at any time, including after
// polling has started.
func (b *Bus) Subscribe(t EventType, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish persists an event into the pending store, making it visible to
// every bus instance watching the same data directory. Missing id,
// timestamp, processedBy, and status fields are defaulted.
//
// Publish never surfaces storage errors to the caller: a publishing agent's
// main loop must not be crashed by a transient I/O failure, and a lost
// publish is observable as a stalled job rather than a crash.
func (b *Bus) Publish(e *Event) {
	if e.ID == "" {
		e.ID = NewEventID()
	}
	if e.Timestamp == "" {
		e.Timestamp = NewTimestamp()
	}
	if e.ProcessedBy == nil {
		e.ProcessedBy = []string{}
	}
	if e.Status == "" {
		e.Status = StatusPending
	}

	if err := b.store.Create(e); err != nil {
		log.Printf("[Bus] Failed to publish event %s (%s): %v", e.ID, e.Type, err)
		return
	}

	b.logEvent("event_published", map[string]any{
		"event_id":   e.ID,
		"event_kind": string(e.Type),
		"source":     string(e.SourceAgent),
	})
}

// Start launches the poll loop. Starting an already-polling bus is a logged
// no-op. The loop stops when ctx is cancelled or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.polling {
		log.Printf("[Bus] Start called while already polling for consumer %s, ignoring", b.consumerID)
		return
	}

	b.polling = true
	b.stopCh = make(chan struct{})
	b.doneCh = make(chan struct{})

	go b.loop(ctx, b.stopCh, b.doneCh)

	b.logEvent("polling_started", map[string]any{
		"interval_ms": b.pollInterval.Milliseconds(),
	})
}

// Stop halts the poll loop and waits for any in-flight cycle to run to
// completion. Stopping an idle bus is a no-op.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.polling {
		b.mu.Unlock()
		return
	}
	b.polling = false
	stopCh, doneCh := b.stopCh, b.doneCh
	b.mu.Unlock()

	close(stopCh)
	<-doneCh

	b.logEvent("polling_stopped", nil)
}

// loop drives poll cycles off a single goroutine. Because cycles run inline
// here, a slow cycle delays the next tick rather than overlapping it.
func (b *Bus) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	// First cycle runs immediately rather than one interval in
	if err := b.Poll(ctx); err != nil {
		log.Printf("[Bus] Poll cycle failed for consumer %s: %v", b.consumerID, err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := b.Poll(ctx); err != nil {
				// A single failed cycle must not stop future polling
				log.Printf("[Bus] Poll cycle failed for consumer %s: %v", b.consumerID, err)
			}
		}
	}
}

// Poll runs one cycle: enumerate pending events, sort by timestamp
// ascending, and advance this consumer's processed state on each event not
// yet seen. Only a failure enumerating the store itself propagates; every
// per-event failure is logged and recovered locally, to be retried when the
// next cycle re-reads the event with its last persisted state.
func (b *Bus) Poll(ctx context.Context) error {
	events, err := b.store.ListPending()
	if err != nil {
		return fmt.Errorf("failed to enumerate pending events: %w", err)
	}

	sortByTimestamp(events)

	for _, e := range events {
		if e.HasProcessed(b.consumerID) {
			continue
		}
		b.process(ctx, e)
	}

	return nil
}

// process dispatches handlers for one event, marks this consumer, and
// persists the result: archive at the threshold, update below it. Both
// store calls tolerate the event having been archived concurrently.
func (b *Bus) process(ctx context.Context, e *Event) {
	for i, h := range b.handlersFor(e.Type) {
		if err := h(ctx, e); err != nil {
			b.logEvent("handler_failed", map[string]any{
				"event_id":   e.ID,
				"event_kind": string(e.Type),
				"handler":    i,
				"error":      err.Error(),
			})
		}
	}

	e.MarkProcessed(b.consumerID)

	b.logEvent("event_processed", map[string]any{
		"event_id":        e.ID,
		"event_kind":      string(e.Type),
		"processed_count": e.ProcessedCount(),
	})

	// Persist the grown set before any move: Archive re-reads the pending
	// file, so the final consumer's mark must be on disk first
	if err := b.store.Update(e); err != nil {
		log.Printf("[Bus] Failed to persist processed-mark for event %s: %v", e.ID, err)
		return
	}

	if e.ProcessedCount() >= b.expectedConsumers {
		if err := b.store.Archive(e.ID); err != nil {
			log.Printf("[Bus] Failed to archive event %s: %v", e.ID, err)
		}
	}
}

// handlersFor snapshots the handler list for a type under the lock, so
// dispatch never holds the lock across handler execution.
func (b *Bus) handlersFor(t EventType) []Handler {
	b.mu.Lock()
	defer b.mu.Unlock()

	registered := b.handlers[t]
	out := make([]Handler, len(registered))
	copy(out, registered)
	return out
}

// sortByTimestamp orders events oldest first, establishing a deterministic,
// fair processing order independent of filesystem enumeration order. Equal
// timestamps fall back to id order so the sort stays stable across
// consumers.
func sortByTimestamp(events []*Event) {
	sort.SliceStable(events, func(i, j int) bool {
		ti, erri := events[i].When()
		tj, errj := events[j].When()
		if erri != nil || errj != nil || ti.Equal(tj) {
			return events[i].ID < events[j].ID
		}
		return ti.Before(tj)
	})
}

// logEvent logs a structured event in JSON format.
func (b *Bus) logEvent(eventType string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "bus"
	data["event_type"] = eventType
	data["consumer"] = b.consumerID

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Bus] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
