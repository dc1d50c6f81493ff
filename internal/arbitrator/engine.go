// Package arbitrator implements the arbitrator agent: it rules on disputes
// between the hiring and worker agents.
package arbitrator

import (
	"context"
	"fmt"
	"log"

	"github.com/dyluth/drey/internal/advisor"
	"github.com/dyluth/drey/internal/agent"
	"github.com/dyluth/drey/pkg/midden"
)

// Engine drives the arbitration side of the job protocol.
type Engine struct {
	rt       *agent.Runtime
	producer advisor.Producer
}

// New creates an arbitrator engine over the given runtime and producer.
func New(rt *agent.Runtime, producer advisor.Producer) *Engine {
	return &Engine{rt: rt, producer: producer}
}

// Register attaches the engine's handlers. Must be called before the
// runtime starts listening.
func (e *Engine) Register() {
	e.rt.On(midden.EventDisputeFiled, e.onDisputeFiled)
}

// onDisputeFiled asks the decision producer for a ruling and publishes it.
// An unreachable or unintelligible producer degrades to the safe default
// ruling (even split, no penalty) rather than leaving the dispute open.
func (e *Engine) onDisputeFiled(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.DisputeFiledPayload](ev)
	if err != nil {
		return err
	}

	text, err := e.producer.Produce(ctx, rulingPrompt(p.JobID, p.Reason))
	if err != nil {
		log.Printf("[Arbitrator] Decision producer failed for job %s, ruling by default: %v", p.JobID, err)
		text = ""
	}
	ruling := advisor.ParseRuling(text)

	payload, err := midden.EncodePayload(midden.ArbitrationCompletePayload{
		JobID:     p.JobID,
		Ruling:    string(ruling.Ruling),
		RefundPct: ruling.RefundPct,
		Penalty:   ruling.Penalty,
	})
	if err != nil {
		return fmt.Errorf("failed to encode ruling payload: %w", err)
	}

	e.rt.Publish(&midden.Event{
		Type:        midden.EventArbitrationComplete,
		TargetAgent: midden.AgentHiring,
		Payload:     payload,
	})

	return nil
}

func rulingPrompt(jobID, reason string) string {
	return fmt.Sprintf(
		"You are arbitrating a dispute over job %s.\n\n"+
			"The employer's complaint:\n%s\n\n"+
			"Reply with your reasoning, then three final lines of the form:\n"+
			"RULING: <worker|employer|split>\nREFUND: <0-100>\nPENALTY: <yes|no>",
		jobID, reason)
}
