package midden

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePayload(t *testing.T) {
	m, err := EncodePayload(JobCreatedPayload{
		JobID:       "job-1",
		Description: "summarise the quarterly report",
		Budget:      100,
	})
	require.NoError(t, err)

	assert.Equal(t, "job-1", m["jobId"])
	assert.Equal(t, "summarise the quarterly report", m["description"])
	assert.Equal(t, 100.0, m["budget"])
}

func TestDecodePayload(t *testing.T) {
	t.Run("resolves each type to its concrete shape", func(t *testing.T) {
		tests := []struct {
			eventType EventType
			payload   map[string]any
			check     func(t *testing.T, decoded any)
		}{
			{
				eventType: EventJobCreated,
				payload:   map[string]any{"jobId": "job-1", "description": "do things", "budget": 100.0},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*JobCreatedPayload)
					require.True(t, ok)
					assert.Equal(t, "job-1", p.JobID)
					assert.Equal(t, 100.0, p.Budget)
				},
			},
			{
				eventType: EventJobAccepted,
				payload:   map[string]any{"jobId": "job-1", "workerId": "worker-abc"},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*JobAcceptedPayload)
					require.True(t, ok)
					assert.Equal(t, "worker-abc", p.WorkerID)
				},
			},
			{
				eventType: EventWorkSubmitted,
				payload:   map[string]any{"jobId": "job-1", "submission": "here is the work"},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*WorkSubmittedPayload)
					require.True(t, ok)
					assert.Equal(t, "here is the work", p.Submission)
				},
			},
			{
				eventType: EventWorkApproved,
				payload:   map[string]any{"jobId": "job-1", "score": 85.0},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*WorkApprovedPayload)
					require.True(t, ok)
					assert.Equal(t, 85, p.Score)
				},
			},
			{
				eventType: EventDisputeFiled,
				payload:   map[string]any{"jobId": "job-1", "reason": "incomplete"},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*DisputeFiledPayload)
					require.True(t, ok)
					assert.Equal(t, "incomplete", p.Reason)
				},
			},
			{
				eventType: EventArbitrationComplete,
				payload:   map[string]any{"jobId": "job-1", "ruling": "split", "refundPct": 50.0, "penalty": true},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*ArbitrationCompletePayload)
					require.True(t, ok)
					assert.Equal(t, "split", p.Ruling)
					assert.Equal(t, 50, p.RefundPct)
					assert.True(t, p.Penalty)
				},
			},
			{
				eventType: EventPaymentReleased,
				payload:   map[string]any{"jobId": "job-1", "recipient": "worker-abc", "amount": 100.0, "txId": "tx-1"},
				check: func(t *testing.T, decoded any) {
					p, ok := decoded.(*PaymentReleasedPayload)
					require.True(t, ok)
					assert.Equal(t, "tx-1", p.TxID)
				},
			},
		}

		for _, tt := range tests {
			t.Run(string(tt.eventType), func(t *testing.T) {
				e := validEvent()
				e.Type = tt.eventType
				e.Payload = tt.payload

				decoded, err := DecodePayload(e)
				require.NoError(t, err)
				tt.check(t, decoded)
			})
		}
	})

	t.Run("unknown event type is an error", func(t *testing.T) {
		e := validEvent()
		e.Type = "JOB_EXPLODED"

		_, err := DecodePayload(e)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no payload shape")
	})

	t.Run("missing fields take zero values", func(t *testing.T) {
		e := validEvent()
		e.Type = EventJobCreated
		e.Payload = map[string]any{"jobId": "job-1"}

		decoded, err := DecodePayload(e)
		require.NoError(t, err)

		p := decoded.(*JobCreatedPayload)
		assert.Equal(t, "job-1", p.JobID)
		assert.Zero(t, p.Budget)
	})

	t.Run("extra fields are ignored", func(t *testing.T) {
		e := validEvent()
		e.Type = EventJobAccepted
		e.Payload = map[string]any{"jobId": "job-1", "workerId": "w", "mood": "optimistic"}

		_, err := DecodePayload(e)
		assert.NoError(t, err)
	})
}
