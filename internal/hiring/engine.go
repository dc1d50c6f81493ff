// Package hiring implements the hiring agent: it posts jobs, evaluates
// submitted work, files disputes, and releases payments.
package hiring

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/dyluth/drey/internal/advisor"
	"github.com/dyluth/drey/internal/agent"
	"github.com/dyluth/drey/internal/payment"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/google/uuid"
)

// DefaultApproveThreshold is the minimum completion score for a submission
// to be approved rather than disputed.
const DefaultApproveThreshold = 70

// Engine drives the hiring side of the job protocol. All business outcomes
// flow through published events; in-memory job state is rebuilt from the
// event stream and exists only to look up budgets and workers.
type Engine struct {
	rt       *agent.Runtime
	producer advisor.Producer
	payments payment.Executor

	approveThreshold int

	mu   sync.Mutex
	jobs map[string]*jobState
}

// jobState is what the hiring agent remembers about a job between events.
type jobState struct {
	description string
	budget      float64
	worker      string
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithApproveThreshold overrides the approval score threshold.
func WithApproveThreshold(n int) Option {
	return func(e *Engine) {
		if n >= 0 && n <= 100 {
			e.approveThreshold = n
		}
	}
}

// New creates a hiring engine over the given runtime and collaborators.
func New(rt *agent.Runtime, producer advisor.Producer, payments payment.Executor, opts ...Option) *Engine {
	e := &Engine{
		rt:               rt,
		producer:         producer,
		payments:         payments,
		approveThreshold: DefaultApproveThreshold,
		jobs:             make(map[string]*jobState),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register attaches the engine's handlers. Must be called before the
// runtime starts listening.
func (e *Engine) Register() {
	e.rt.On(midden.EventJobCreated, e.onJobCreated)
	e.rt.On(midden.EventJobAccepted, e.onJobAccepted)
	e.rt.On(midden.EventWorkSubmitted, e.onWorkSubmitted)
	e.rt.On(midden.EventWorkApproved, e.onWorkApproved)
	e.rt.On(midden.EventArbitrationComplete, e.onArbitrationComplete)
}

// PostJob publishes a new job and returns its id. Jobs can equally be
// posted by the CLI as the user role; the hiring engine tracks both.
func (e *Engine) PostJob(description string, budget float64) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("job description cannot be empty")
	}
	if budget <= 0 {
		return "", fmt.Errorf("job budget must be positive, got %v", budget)
	}

	jobID := newJobID()
	payload, err := midden.EncodePayload(midden.JobCreatedPayload{
		JobID:       jobID,
		Description: description,
		Budget:      budget,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode job payload: %w", err)
	}

	e.rt.Publish(&midden.Event{
		Type:    midden.EventJobCreated,
		Payload: payload,
	})

	return jobID, nil
}

// onJobCreated records the job's budget for later payment decisions.
func (e *Engine) onJobCreated(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.JobCreatedPayload](ev)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.jobs[p.JobID]; !seen {
		e.jobs[p.JobID] = &jobState{description: p.Description, budget: p.Budget}
	}
	return nil
}

// onJobAccepted records which worker to pay for the job.
func (e *Engine) onJobAccepted(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.JobAcceptedPayload](ev)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.jobs[p.JobID]
	if !ok {
		state = &jobState{}
		e.jobs[p.JobID] = state
	}
	state.worker = p.WorkerID
	return nil
}

// onWorkSubmitted scores the submission via the decision producer and
// publishes either an approval or a dispute. A producer failure degrades to
// the default score rather than stalling the job.
func (e *Engine) onWorkSubmitted(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.WorkSubmittedPayload](ev)
	if err != nil {
		return err
	}

	state := e.lookup(p.JobID)

	prompt := evaluationPrompt(state.description, p.Submission)
	text, err := e.producer.Produce(ctx, prompt)
	if err != nil {
		log.Printf("[Hiring] Decision producer failed for job %s, using default score: %v", p.JobID, err)
		text = ""
	}
	score := advisor.ParseScore(text)

	if score >= e.approveThreshold {
		payload, err := midden.EncodePayload(midden.WorkApprovedPayload{JobID: p.JobID, Score: score})
		if err != nil {
			return fmt.Errorf("failed to encode approval payload: %w", err)
		}
		e.rt.Publish(&midden.Event{
			Type:        midden.EventWorkApproved,
			TargetAgent: midden.AgentWorker,
			Payload:     payload,
		})
		return nil
	}

	payload, err := midden.EncodePayload(midden.DisputeFiledPayload{
		JobID:  p.JobID,
		Reason: fmt.Sprintf("submission scored %d, below approval threshold %d", score, e.approveThreshold),
	})
	if err != nil {
		return fmt.Errorf("failed to encode dispute payload: %w", err)
	}
	e.rt.Publish(&midden.Event{
		Type:        midden.EventDisputeFiled,
		TargetAgent: midden.AgentArbitrator,
		Payload:     payload,
	})
	return nil
}

// onWorkApproved releases the full budget to the worker.
func (e *Engine) onWorkApproved(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.WorkApprovedPayload](ev)
	if err != nil {
		return err
	}

	state := e.lookup(p.JobID)
	return e.release(ctx, p.JobID, state.recipient(), state.budget,
		fmt.Sprintf("payout for approved job %s", p.JobID))
}

// onArbitrationComplete releases the worker's share of the budget per the
// ruling. The employer's refund share never left the employer in this
// deployment (no escrow), so only the worker payment moves funds.
func (e *Engine) onArbitrationComplete(ctx context.Context, ev *midden.Event) error {
	p, err := midden.DecodeAs[midden.ArbitrationCompletePayload](ev)
	if err != nil {
		return err
	}

	if p.Penalty {
		log.Printf("[Hiring] Arbitrator flagged a penalty for the worker on job %s", p.JobID)
	}

	state := e.lookup(p.JobID)
	workerShare := state.budget * float64(100-p.RefundPct) / 100
	if workerShare <= 0 {
		log.Printf("[Hiring] Ruling on job %s leaves no worker share, nothing to release", p.JobID)
		return nil
	}

	return e.release(ctx, p.JobID, state.recipient(), workerShare,
		fmt.Sprintf("arbitrated payout for job %s (ruling: %s, refund %d%%)", p.JobID, p.Ruling, p.RefundPct))
}

// release invokes the payment executor and publishes PAYMENT_RELEASED. A
// pending result (no tx id yet) is a valid degraded outcome and still
// publishes; a hard executor error does not, leaving the job visibly stuck
// rather than falsely settled.
func (e *Engine) release(ctx context.Context, jobID, recipient string, amount float64, memo string) error {
	res, err := e.payments.Release(ctx, recipient, amount, memo)
	if err != nil {
		return fmt.Errorf("payment executor failed for job %s: %w", jobID, err)
	}

	if res.Pending {
		log.Printf("[Hiring] Payment for job %s accepted without a tx id yet", jobID)
	}

	payload, err := midden.EncodePayload(midden.PaymentReleasedPayload{
		JobID:     jobID,
		Recipient: recipient,
		Amount:    amount,
		TxID:      res.TxID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payment payload: %w", err)
	}

	e.rt.Publish(&midden.Event{
		Type:        midden.EventPaymentReleased,
		TargetAgent: midden.AgentWorker,
		Payload:     payload,
	})
	return nil
}

// lookup returns the remembered state for a job, or an empty state when the
// job's earlier events were never seen (e.g. published before this process
// started). Handlers must tolerate the gaps.
func (e *Engine) lookup(jobID string) *jobState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok := e.jobs[jobID]; ok {
		return state
	}
	return &jobState{}
}

// recipient names who gets paid for this job, falling back to the worker
// role when no acceptance was observed.
func (s *jobState) recipient() string {
	if s.worker != "" {
		return s.worker
	}
	return string(midden.AgentWorker)
}

func evaluationPrompt(description, submission string) string {
	return fmt.Sprintf(
		"You are evaluating completed work against a job description.\n\n"+
			"Job description:\n%s\n\nSubmission:\n%s\n\n"+
			"Reply with your reasoning, then a final line of the form SCORE: <0-100>.",
		description, submission)
}

func newJobID() string {
	return "job-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
