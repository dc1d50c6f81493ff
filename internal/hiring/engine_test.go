package hiring

import (
	"context"
	"testing"

	"github.com/dyluth/drey/internal/advisor"
	"github.com/dyluth/drey/internal/agent"
	"github.com/dyluth/drey/internal/arbitrator"
	"github.com/dyluth/drey/internal/payment"
	"github.com/dyluth/drey/internal/worker"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupEngine wires a hiring engine over a fresh store with a single-consumer
// archival threshold, so each poll fully consumes what it processes.
func setupEngine(t *testing.T, producer advisor.Producer) (*Engine, *agent.Runtime, *midden.Store) {
	t.Helper()

	store, err := midden.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())

	rt, err := agent.New(midden.AgentHiring, store, midden.WithExpectedConsumers(1))
	require.NoError(t, err)

	engine := New(rt, producer, &payment.Simulated{})
	engine.Register()

	return engine, rt, store
}

// seedJob publishes and consumes JOB_CREATED + JOB_ACCEPTED so the engine
// has budget and worker state for the job.
func seedJob(t *testing.T, rt *agent.Runtime, jobID string, budget float64, workerID string) {
	t.Helper()

	created, err := midden.EncodePayload(midden.JobCreatedPayload{
		JobID: jobID, Description: "write a haiku about queues", Budget: budget,
	})
	require.NoError(t, err)
	rt.Publish(&midden.Event{Type: midden.EventJobCreated, Payload: created})

	accepted, err := midden.EncodePayload(midden.JobAcceptedPayload{JobID: jobID, WorkerID: workerID})
	require.NoError(t, err)
	rt.Publish(&midden.Event{Type: midden.EventJobAccepted, Payload: accepted})

	require.NoError(t, rt.Poll(context.Background()))
}

// pendingOfType filters pending events down to one type.
func pendingOfType(t *testing.T, store *midden.Store, et midden.EventType) []*midden.Event {
	t.Helper()

	pending, err := store.ListPending()
	require.NoError(t, err)

	var out []*midden.Event
	for _, e := range pending {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func TestPostJob(t *testing.T) {
	engine, _, store := setupEngine(t, advisor.NewScripted("SCORE: 90"))

	t.Run("publishes a JOB_CREATED event", func(t *testing.T) {
		jobID, err := engine.PostJob("design a logo", 150)
		require.NoError(t, err)
		assert.Contains(t, jobID, "job-")

		created := pendingOfType(t, store, midden.EventJobCreated)
		require.Len(t, created, 1)
		assert.Equal(t, jobID, created[0].Payload["jobId"])
		assert.Equal(t, 150.0, created[0].Payload["budget"])
		assert.Equal(t, midden.AgentHiring, created[0].SourceAgent)
	})

	t.Run("rejects empty description", func(t *testing.T) {
		_, err := engine.PostJob("   ", 100)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive budget", func(t *testing.T) {
		_, err := engine.PostJob("design a logo", 0)
		assert.Error(t, err)
	})
}

func TestWorkSubmissionScoring(t *testing.T) {
	ctx := context.Background()

	t.Run("approves at or above the threshold", func(t *testing.T) {
		_, rt, store := setupEngine(t, advisor.NewScripted("Looks complete. SCORE: 85"))
		seedJob(t, rt, "job-1", 100, "worker-abc")

		submitted, err := midden.EncodePayload(midden.WorkSubmittedPayload{JobID: "job-1", Submission: "the work"})
		require.NoError(t, err)
		rt.Publish(&midden.Event{Type: midden.EventWorkSubmitted, Payload: submitted})
		require.NoError(t, rt.Poll(ctx))

		approved := pendingOfType(t, store, midden.EventWorkApproved)
		require.Len(t, approved, 1)
		assert.Equal(t, 85.0, approved[0].Payload["score"])
		assert.Empty(t, pendingOfType(t, store, midden.EventDisputeFiled))
	})

	t.Run("disputes below the threshold", func(t *testing.T) {
		_, rt, store := setupEngine(t, advisor.NewScripted("Missing half the ask. SCORE: 30"))
		seedJob(t, rt, "job-1", 100, "worker-abc")

		submitted, err := midden.EncodePayload(midden.WorkSubmittedPayload{JobID: "job-1", Submission: "the work"})
		require.NoError(t, err)
		rt.Publish(&midden.Event{Type: midden.EventWorkSubmitted, Payload: submitted})
		require.NoError(t, rt.Poll(ctx))

		disputes := pendingOfType(t, store, midden.EventDisputeFiled)
		require.Len(t, disputes, 1)
		assert.Contains(t, disputes[0].Payload["reason"], "below approval threshold")
		assert.Empty(t, pendingOfType(t, store, midden.EventWorkApproved))
	})

	t.Run("custom threshold is honoured", func(t *testing.T) {
		store, err := midden.NewStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, store.EnsureLayout())
		rt, err := agent.New(midden.AgentHiring, store, midden.WithExpectedConsumers(1))
		require.NoError(t, err)

		engine := New(rt, advisor.NewScripted("SCORE: 50"), &payment.Simulated{}, WithApproveThreshold(40))
		engine.Register()
		seedJob(t, rt, "job-1", 100, "worker-abc")

		submitted, err := midden.EncodePayload(midden.WorkSubmittedPayload{JobID: "job-1", Submission: "the work"})
		require.NoError(t, err)
		rt.Publish(&midden.Event{Type: midden.EventWorkSubmitted, Payload: submitted})
		require.NoError(t, rt.Poll(context.Background()))

		assert.Len(t, pendingOfType(t, store, midden.EventWorkApproved), 1)
	})
}

func TestApprovalReleasesPayment(t *testing.T) {
	_, rt, store := setupEngine(t, advisor.NewScripted("SCORE: 90"))
	seedJob(t, rt, "job-1", 120, "worker-abc")

	approved, err := midden.EncodePayload(midden.WorkApprovedPayload{JobID: "job-1", Score: 90})
	require.NoError(t, err)
	rt.Publish(&midden.Event{Type: midden.EventWorkApproved, Payload: approved})
	require.NoError(t, rt.Poll(context.Background()))

	payments := pendingOfType(t, store, midden.EventPaymentReleased)
	require.Len(t, payments, 1)
	assert.Equal(t, "worker-abc", payments[0].Payload["recipient"])
	assert.Equal(t, 120.0, payments[0].Payload["amount"])
	assert.NotEmpty(t, payments[0].Payload["txId"])
}

func TestArbitrationSettlement(t *testing.T) {
	ctx := context.Background()

	t.Run("split ruling pays the worker share", func(t *testing.T) {
		_, rt, store := setupEngine(t, advisor.NewScripted(""))
		seedJob(t, rt, "job-1", 100, "worker-abc")

		ruling, err := midden.EncodePayload(midden.ArbitrationCompletePayload{
			JobID: "job-1", Ruling: "split", RefundPct: 40,
		})
		require.NoError(t, err)
		rt.Publish(&midden.Event{Type: midden.EventArbitrationComplete, Payload: ruling})
		require.NoError(t, rt.Poll(ctx))

		payments := pendingOfType(t, store, midden.EventPaymentReleased)
		require.Len(t, payments, 1)
		assert.Equal(t, 60.0, payments[0].Payload["amount"])
	})

	t.Run("full employer refund releases nothing", func(t *testing.T) {
		_, rt, store := setupEngine(t, advisor.NewScripted(""))
		seedJob(t, rt, "job-1", 100, "worker-abc")

		ruling, err := midden.EncodePayload(midden.ArbitrationCompletePayload{
			JobID: "job-1", Ruling: "employer", RefundPct: 100, Penalty: true,
		})
		require.NoError(t, err)
		rt.Publish(&midden.Event{Type: midden.EventArbitrationComplete, Payload: ruling})
		require.NoError(t, rt.Poll(ctx))

		assert.Empty(t, pendingOfType(t, store, midden.EventPaymentReleased))
	})
}

// TestFullJobProtocol runs all three role engines over one shared store and
// drives the complete event chain by polling each consumer in rounds.
func TestFullJobProtocol(t *testing.T) {
	ctx := context.Background()

	run := func(t *testing.T, hiringScript, arbitratorScript string) *midden.Store {
		store, err := midden.NewStore(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, store.EnsureLayout())

		hiringRT, err := agent.New(midden.AgentHiring, store)
		require.NoError(t, err)
		workerRT, err := agent.New(midden.AgentWorker, store)
		require.NoError(t, err)
		arbitratorRT, err := agent.New(midden.AgentArbitrator, store)
		require.NoError(t, err)

		hiringEngine := New(hiringRT, advisor.NewScripted(hiringScript), &payment.Simulated{})
		hiringEngine.Register()
		worker.New(workerRT, advisor.NewScripted("a fine haiku")).Register()
		arbitrator.New(arbitratorRT, advisor.NewScripted(arbitratorScript)).Register()

		_, err = hiringEngine.PostJob("write a haiku about queues", 100)
		require.NoError(t, err)

		for round := 0; round < 10; round++ {
			for _, rt := range []*agent.Runtime{hiringRT, workerRT, arbitratorRT} {
				require.NoError(t, rt.Poll(ctx))
			}
		}

		pending, err := store.ListPending()
		require.NoError(t, err)
		assert.Empty(t, pending, "all events should be fully consumed")

		return store
	}

	archivedTypes := func(t *testing.T, store *midden.Store) map[midden.EventType]int {
		archived, err := store.ListArchived()
		require.NoError(t, err)
		counts := make(map[midden.EventType]int)
		for _, e := range archived {
			counts[e.Type]++
		}
		return counts
	}

	t.Run("happy path ends in an approved payout", func(t *testing.T) {
		store := run(t, "Great work. SCORE: 90", "")

		counts := archivedTypes(t, store)
		assert.Equal(t, 1, counts[midden.EventJobCreated])
		assert.Equal(t, 1, counts[midden.EventJobAccepted])
		assert.Equal(t, 1, counts[midden.EventWorkSubmitted])
		assert.Equal(t, 1, counts[midden.EventWorkApproved])
		assert.Equal(t, 1, counts[midden.EventPaymentReleased])
		assert.Zero(t, counts[midden.EventDisputeFiled])
	})

	t.Run("dispute path ends in an arbitrated payout", func(t *testing.T) {
		store := run(t, "Not good. SCORE: 20", "RULING: split\nREFUND: 40\nPENALTY: no")

		counts := archivedTypes(t, store)
		assert.Equal(t, 1, counts[midden.EventDisputeFiled])
		assert.Equal(t, 1, counts[midden.EventArbitrationComplete])
		assert.Equal(t, 1, counts[midden.EventPaymentReleased])
		assert.Zero(t, counts[midden.EventWorkApproved])

		archived, err := store.ListArchived()
		require.NoError(t, err)
		for _, e := range archived {
			if e.Type == midden.EventPaymentReleased {
				assert.Equal(t, 60.0, e.Payload["amount"])
			}
		}
	})
}
