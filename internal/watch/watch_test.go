package watch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/drey/pkg/midden"
)

func setupTestStore(t *testing.T) *midden.Store {
	t.Helper()
	store, err := midden.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.EnsureLayout())
	return store
}

func seedEvent(t *testing.T, store *midden.Store, id string, eventType midden.EventType, payload map[string]any) *midden.Event {
	t.Helper()
	e := &midden.Event{
		ID:          id,
		Type:        eventType,
		Timestamp:   midden.NewTimestamp(),
		SourceAgent: midden.AgentHiring,
		Payload:     payload,
		ProcessedBy: []string{},
		Status:      midden.StatusPending,
	}
	require.NoError(t, store.Create(e))
	return e
}

func TestPollForEvent(t *testing.T) {
	t.Run("returns event when found immediately", func(t *testing.T) {
		store := setupTestStore(t)
		seedEvent(t, store, "event-1000-aaaa", midden.EventJobCreated, map[string]any{"jobId": "job-1"})

		found, err := PollForEvent(context.Background(), store, func(e *midden.Event) bool {
			return e.Type == midden.EventJobCreated
		}, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "event-1000-aaaa", found.ID)
	})

	t.Run("returns event published after polling starts", func(t *testing.T) {
		store := setupTestStore(t)

		go func() {
			time.Sleep(300 * time.Millisecond)
			e := &midden.Event{
				ID:          "event-2000-bbbb",
				Type:        midden.EventJobAccepted,
				Timestamp:   midden.NewTimestamp(),
				SourceAgent: midden.AgentWorker,
				Payload:     map[string]any{"jobId": "job-1"},
				ProcessedBy: []string{},
				Status:      midden.StatusPending,
			}
			_ = store.Create(e)
		}()

		found, err := PollForEvent(context.Background(), store, func(e *midden.Event) bool {
			return e.Type == midden.EventJobAccepted
		}, 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "event-2000-bbbb", found.ID)
	})

	t.Run("times out when no event matches", func(t *testing.T) {
		store := setupTestStore(t)
		seedEvent(t, store, "event-1000-aaaa", midden.EventJobCreated, map[string]any{"jobId": "job-1"})

		_, err := PollForEvent(context.Background(), store, func(e *midden.Event) bool {
			return e.Type == midden.EventPaymentReleased
		}, 500*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for event")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		store := setupTestStore(t)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()

		_, err := PollForEvent(ctx, store, func(e *midden.Event) bool { return true }, 5*time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPollForArchived(t *testing.T) {
	t.Run("returns once the event archives", func(t *testing.T) {
		store := setupTestStore(t)
		seedEvent(t, store, "event-1000-aaaa", midden.EventJobCreated, map[string]any{"jobId": "job-1"})

		go func() {
			time.Sleep(300 * time.Millisecond)
			_ = store.Archive("event-1000-aaaa")
		}()

		found, err := PollForArchived(context.Background(), store, "event-1000-aaaa", 3*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "event-1000-aaaa", found.ID)
	})

	t.Run("times out while the event stays pending", func(t *testing.T) {
		store := setupTestStore(t)
		seedEvent(t, store, "event-1000-aaaa", midden.EventJobCreated, map[string]any{"jobId": "job-1"})

		_, err := PollForArchived(context.Background(), store, "event-1000-aaaa", 500*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout waiting for event")
	})
}

func TestStream(t *testing.T) {
	t.Run("announces new and archived events once", func(t *testing.T) {
		store := setupTestStore(t)
		seedEvent(t, store, "event-1000-aaaa", midden.EventJobCreated,
			map[string]any{"jobId": "job-1", "budget": 100.0})

		ctx, cancel := context.WithCancel(context.Background())
		var buf safeBuffer
		done := make(chan error, 1)
		go func() {
			done <- Stream(ctx, store, 50*time.Millisecond, &buf)
		}()

		require.Eventually(t, func() bool {
			return strings.Contains(buf.String(), "Job Created: job-1")
		}, 2*time.Second, 20*time.Millisecond)

		require.NoError(t, store.Archive("event-1000-aaaa"))

		require.Eventually(t, func() bool {
			return strings.Contains(buf.String(), "Archived: event-1000-aaaa")
		}, 2*time.Second, 20*time.Millisecond)

		cancel()
		require.NoError(t, <-done)

		// Each announcement appears exactly once despite repeated scans
		assert.Equal(t, 1, strings.Count(buf.String(), "Job Created: job-1"))
		assert.Equal(t, 1, strings.Count(buf.String(), "Archived: event-1000-aaaa"))
	})
}

func TestFormatEventLine(t *testing.T) {
	tests := []struct {
		name     string
		event    *midden.Event
		expected string
	}{
		{
			name: "job created",
			event: &midden.Event{
				Type:        midden.EventJobCreated,
				SourceAgent: midden.AgentUser,
				Payload:     map[string]any{"jobId": "job-1", "budget": 250.0},
			},
			expected: "📋 Job Created: job-1 budget=250.00 by=user",
		},
		{
			name: "job accepted",
			event: &midden.Event{
				Type:    midden.EventJobAccepted,
				Payload: map[string]any{"jobId": "job-1", "workerId": "worker-abc"},
			},
			expected: "🤝 Job Accepted: job-1 by=worker-abc",
		},
		{
			name: "work approved with float score from JSON",
			event: &midden.Event{
				Type:    midden.EventWorkApproved,
				Payload: map[string]any{"jobId": "job-1", "score": float64(85)},
			},
			expected: "✅ Work Approved: job-1 score=85",
		},
		{
			name: "dispute filed",
			event: &midden.Event{
				Type:    midden.EventDisputeFiled,
				Payload: map[string]any{"jobId": "job-1", "reason": "too low"},
			},
			expected: `❌ Dispute Filed: job-1 reason="too low"`,
		},
		{
			name: "arbitration complete",
			event: &midden.Event{
				Type:    midden.EventArbitrationComplete,
				Payload: map[string]any{"jobId": "job-1", "ruling": "split", "refundPct": 40},
			},
			expected: "⚖️  Arbitration Complete: job-1 ruling=split refund=40%",
		},
		{
			name: "payment released",
			event: &midden.Event{
				Type:    midden.EventPaymentReleased,
				Payload: map[string]any{"jobId": "job-1", "recipient": "worker-abc", "amount": 60.0},
			},
			expected: "💰 Payment Released: job-1 to=worker-abc amount=60.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatEventLine(tt.event))
		})
	}
}

// safeBuffer is a goroutine-safe bytes.Buffer for asserting on Stream output.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
