package arbitrator

import (
	"context"
	"testing"

	"github.com/dyluth/drey/internal/advisor"
	"github.com/dyluth/drey/internal/agent"
	"github.com/dyluth/drey/pkg/midden"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T, producer advisor.Producer) (*agent.Runtime, *midden.Store) {
	t.Helper()

	store, err := midden.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())

	rt, err := agent.New(midden.AgentArbitrator, store, midden.WithExpectedConsumers(1))
	require.NoError(t, err)

	New(rt, producer).Register()
	return rt, store
}

func fileDispute(t *testing.T, rt *agent.Runtime) {
	t.Helper()

	payload, err := midden.EncodePayload(midden.DisputeFiledPayload{
		JobID: "job-1", Reason: "submission scored 20, below approval threshold 70",
	})
	require.NoError(t, err)
	rt.Publish(&midden.Event{Type: midden.EventDisputeFiled, Payload: payload})
}

func rulings(t *testing.T, store *midden.Store) []*midden.Event {
	t.Helper()

	pending, err := store.ListPending()
	require.NoError(t, err)

	var out []*midden.Event
	for _, e := range pending {
		if e.Type == midden.EventArbitrationComplete {
			out = append(out, e)
		}
	}
	return out
}

func TestDisputeRuling(t *testing.T) {
	t.Run("publishes the parsed ruling", func(t *testing.T) {
		rt, store := setupEngine(t, advisor.NewScripted(
			"The employer has a point but the work has value.\nRULING: split\nREFUND: 30\nPENALTY: no"))

		fileDispute(t, rt)
		require.NoError(t, rt.Poll(context.Background()))

		got := rulings(t, store)
		require.Len(t, got, 1)
		assert.Equal(t, "job-1", got[0].Payload["jobId"])
		assert.Equal(t, "split", got[0].Payload["ruling"])
		assert.Equal(t, 30.0, got[0].Payload["refundPct"])
		assert.Equal(t, false, got[0].Payload["penalty"])
		assert.Equal(t, midden.AgentArbitrator, got[0].SourceAgent)
	})

	t.Run("producer failure degrades to the default split", func(t *testing.T) {
		rt, store := setupEngine(t, failingProducer{})

		fileDispute(t, rt)
		require.NoError(t, rt.Poll(context.Background()))

		got := rulings(t, store)
		require.Len(t, got, 1)
		assert.Equal(t, "split", got[0].Payload["ruling"])
		assert.Equal(t, 50.0, got[0].Payload["refundPct"])
	})

	t.Run("unintelligible output degrades to the default split", func(t *testing.T) {
		rt, store := setupEngine(t, advisor.NewScripted("a most puzzling situation indeed"))

		fileDispute(t, rt)
		require.NoError(t, rt.Poll(context.Background()))

		got := rulings(t, store)
		require.Len(t, got, 1)
		assert.Equal(t, "split", got[0].Payload["ruling"])
	})
}

type failingProducer struct{}

func (failingProducer) Produce(ctx context.Context, prompt string) (string, error) {
	return "", assert.AnError
}
