// Package worker implements the worker agent: it accepts posted jobs,
// produces work via the decision producer, and submits it.
package worker

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/dyluth/drey/internal/advisor"
	"github.com/dyluth/drey/internal/agent"
	"github.com/dyluth/drey/pkg/midden"
)

// Engine drives the worker side of the job protocol.
type Engine struct {
	rt       *agent.Runtime
	producer advisor.Producer

	mu       sync.Mutex
	accepted map[string]bool
}

// New creates a worker engine over the given runtime and producer.
func New(rt *agent.Runtime, producer advisor.Producer) *Engine {
	return &Engine{
		rt:       rt,
		producer: producer,
		accepted: make(map[string]bool),
	}
}

// Register attaches the engine's handlers. Must be called before the
// runtime starts listening.
func (e *Engine) Register() {
	e.rt.On(midden.EventJobCreated, e.onJobCreated)
	e.rt.On(midden.EventPaymentReleased, e.onPaymentReleased)
}

// onJobCreated accepts the job, produces the work, and submits it. The
// accepted map only guards against double-accepting within this process;
// cross-cycle idempotency comes from the bus's processedBy guard.
func (e *Engine) onJobCreated(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.JobCreatedPayload](ev)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.accepted[p.JobID] {
		e.mu.Unlock()
		return nil
	}
	e.accepted[p.JobID] = true
	e.mu.Unlock()

	acceptPayload, err := midden.EncodePayload(midden.JobAcceptedPayload{
		JobID:    p.JobID,
		WorkerID: e.rt.ID(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode acceptance payload: %w", err)
	}
	e.rt.Publish(&midden.Event{
		Type:        midden.EventJobAccepted,
		TargetAgent: midden.AgentHiring,
		Payload:     acceptPayload,
	})

	submission, err := e.producer.Produce(ctx, workPrompt(p.Description))
	if err != nil {
		// Acceptance stands; the missing submission shows up as a stalled
		// job, which is the accepted failure mode
		return fmt.Errorf("work producer failed for job %s: %w", p.JobID, err)
	}

	submitPayload, err := midden.EncodePayload(midden.WorkSubmittedPayload{
		JobID:      p.JobID,
		Submission: submission,
	})
	if err != nil {
		return fmt.Errorf("failed to encode submission payload: %w", err)
	}
	e.rt.Publish(&midden.Event{
		Type:        midden.EventWorkSubmitted,
		TargetAgent: midden.AgentHiring,
		Payload:     submitPayload,
	})

	return nil
}

// onPaymentReleased just logs the outcome; the worker has no further move.
func (e *Engine) onPaymentReleased(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.PaymentReleasedPayload](ev)
	if err != nil {
		return err
	}

	if p.TxID == "" {
		log.Printf("[Worker] Payment for job %s recorded as pending", p.JobID)
	} else {
		log.Printf("[Worker] Payment for job %s settled: %s", p.JobID, p.TxID)
	}
	return nil
}

func workPrompt(description string) string {
	return fmt.Sprintf(
		"You have accepted a job. Complete it to the best of your ability.\n\n"+
			"Job description:\n%s\n\nReply with the completed work only.",
		description)
}
