// Package agent binds one logical agent identity to a midden event bus.
//
// A Runtime is the thin per-process wrapper a role engine runs on: it owns
// the consumer identity (role plus unique instance id), requires handlers to
// be registered before listening starts, and stamps every outgoing event
// with the bound role so a consumer cannot spoof another role's identity on
// events it emits.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dyluth/drey/pkg/midden"
	"github.com/google/uuid"
)

// Runtime binds one event bus instance to one logical agent identity.
type Runtime struct {
	role midden.AgentKind
	id   string
	bus  *midden.Bus
}

// New creates a runtime for the given role over the given store, generating
// a fresh consumer identity of the form {role}-{uuid8}.
func New(role midden.AgentKind, store *midden.Store, opts ...midden.Option) (*Runtime, error) {
	if err := role.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent role: %w", err)
	}

	id := NewConsumerID(role)
	bus, err := midden.NewBus(store, id, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	return &Runtime{role: role, id: id, bus: bus}, nil
}

// NewConsumerID generates a unique consumer identity for a role.
// The role prefix keeps logs and processedBy sets readable; uniqueness comes
// from the random suffix, so multiple processes of the same role stay
// distinct consumers.
func NewConsumerID(role midden.AgentKind) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("%s-%s", role, suffix)
}

// Role returns the logical role this runtime is bound to.
func (r *Runtime) Role() midden.AgentKind {
	return r.role
}

// ID returns the unique consumer identity of this runtime.
func (r *Runtime) ID() string {
	return r.id
}

// On registers a handler for an event type. Register all handlers before
// StartListening; the bus tolerates later registration but events polled in
// between will have been marked processed without the new handler firing.
func (r *Runtime) On(t midden.EventType, h midden.Handler) {
	r.bus.Subscribe(t, h)
}

// Publish emits an event stamped with this runtime's role as sourceAgent,
// overriding anything the caller set. Like the bus, it never surfaces
// storage errors.
func (r *Runtime) Publish(e *midden.Event) {
	e.SourceAgent = r.role
	r.bus.Publish(e)
}

// StartListening begins the bus poll loop.
func (r *Runtime) StartListening(ctx context.Context) {
	r.bus.Start(ctx)
}

// StopListening halts the bus poll loop, letting any in-flight cycle finish.
func (r *Runtime) StopListening() {
	r.bus.Stop()
}

// Poll runs a single poll cycle outside the timer loop. Intended for tests
// and for CLI commands that want deterministic one-shot consumption.
func (r *Runtime) Poll(ctx context.Context) error {
	return r.bus.Poll(ctx)
}
