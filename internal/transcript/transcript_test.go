package transcript

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// setupTestRedis starts a miniredis server and returns its options.
func setupTestRedis(t *testing.T) *redis.Options {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	return &redis.Options{Addr: mr.Addr()}
}

func newTestSession(t *testing.T, name string) *blackboard.Session {
	t.Helper()

	session, err := blackboard.NewSession(blackboard.SessionConfig{
		Name:            name,
		QuestionTimeout: time.Second,
		SweepInterval:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	return session
}

func TestEventsChannel(t *testing.T) {
	assert.Equal(t, "caseboard:case-001:transcript_events", EventsChannel("case-001"))
}

func TestForwarderRoundTrip(t *testing.T) {
	opts := setupTestRedis(t)
	ctx := context.Background()

	session := newTestSession(t, "round-trip")

	// Tail before publishing: Pub/Sub is at-most-once
	sub, err := Tail(ctx, redis.NewClient(opts), "round-trip")
	require.NoError(t, err)
	defer sub.Close()

	forwarder, err := NewForwarder(session, opts)
	require.NoError(t, err)
	defer forwarder.Close()
	require.NoError(t, forwarder.Ping(ctx))

	forwarder.Start(ctx)

	_, err = session.Publish("lab-analyzer", blackboard.MessageTypeFinding, "labs.cbc",
		blackboard.PriorityHigh, map[string]any{"wbc": 15.2})
	require.NoError(t, err)

	select {
	case received := <-sub.Events():
		assert.Equal(t, int64(1), received.Sequence)
		assert.Equal(t, blackboard.MessageTypeFinding, received.Type)
		assert.Equal(t, "lab-analyzer", received.Sender)
		assert.Equal(t, "labs.cbc", received.Topic)
		assert.Equal(t, 15.2, received.Payload["wbc"])
	case <-time.After(1 * time.Second):
		t.Fatal("timeout waiting for transcript event")
	}
}

func TestForwarderFlush(t *testing.T) {
	opts := setupTestRedis(t)
	ctx := context.Background()

	session := newTestSession(t, "flush")

	sub, err := Tail(ctx, redis.NewClient(opts), "flush")
	require.NoError(t, err)
	defer sub.Close()

	forwarder, err := NewForwarder(session, opts)
	require.NoError(t, err)
	defer forwarder.Close()

	// No Run goroutine: events stay buffered until Flush
	for i := 0; i < 3; i++ {
		_, err := session.Publish("risk-stratifier", blackboard.MessageTypeFinding, "risk.sepsis",
			blackboard.PriorityNormal, map[string]any{"iteration": i})
		require.NoError(t, err)
	}

	require.NoError(t, forwarder.Flush(ctx))

	for want := int64(1); want <= 3; want++ {
		select {
		case received := <-sub.Events():
			assert.Equal(t, want, received.Sequence)
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event seq=%d", want)
		}
	}
}

func TestFlushAfterStartPreservesOrder(t *testing.T) {
	opts := setupTestRedis(t)
	ctx := context.Background()

	session := newTestSession(t, "ordered")

	sub, err := Tail(ctx, redis.NewClient(opts), "ordered")
	require.NoError(t, err)
	defer sub.Close()

	forwarder, err := NewForwarder(session, opts)
	require.NoError(t, err)
	defer forwarder.Close()

	forwarder.Start(ctx)

	const total = 50
	for i := 0; i < total; i++ {
		_, err := session.Publish("lab-analyzer", blackboard.MessageTypeFinding, "labs.cbc",
			blackboard.PriorityNormal, map[string]any{"iteration": i})
		require.NoError(t, err)
	}

	// Flush stops the Start goroutine before draining, so every event
	// reaches Redis exactly once, in sequence order.
	require.NoError(t, forwarder.Flush(ctx))

	for want := int64(1); want <= total; want++ {
		select {
		case received := <-sub.Events():
			assert.Equal(t, want, received.Sequence)
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event seq=%d", want)
		}
	}
}

func TestForwarderObserverExcluded(t *testing.T) {
	opts := setupTestRedis(t)
	ctx := context.Background()

	session := newTestSession(t, "observer")

	forwarder, err := NewForwarder(session, opts)
	require.NoError(t, err)
	defer forwarder.Close()

	// Forwarding is observation only: it must not add log entries.
	_, err = session.Publish("lab-analyzer", blackboard.MessageTypeFinding, "labs.cbc",
		blackboard.PriorityNormal, nil)
	require.NoError(t, err)
	require.NoError(t, forwarder.Flush(ctx))

	assert.Equal(t, 1, session.Log().Len())
}

func TestTail(t *testing.T) {
	opts := setupTestRedis(t)
	ctx := context.Background()

	t.Run("rejects empty session name", func(t *testing.T) {
		_, err := Tail(ctx, redis.NewClient(opts), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "session name cannot be empty")
	})

	t.Run("reports malformed events on error channel", func(t *testing.T) {
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		sub, err := Tail(ctx, rdb, "malformed")
		require.NoError(t, err)
		defer sub.Close()

		err = rdb.Publish(ctx, EventsChannel("malformed"), "not json").Err()
		require.NoError(t, err)

		select {
		case err := <-sub.Errors():
			assert.Contains(t, err.Error(), "failed to unmarshal")
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for unmarshal error")
		}

		// Subscription keeps working after a bad event
		m := &blackboard.Message{Sequence: 7}
		data := `{"sequence":7,"type":"finding"}`
		err = rdb.Publish(ctx, EventsChannel("malformed"), data).Err()
		require.NoError(t, err)

		select {
		case received := <-sub.Events():
			assert.Equal(t, m.Sequence, received.Sequence)
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for event after malformed one")
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		sub, err := Tail(ctx, redis.NewClient(opts), "close-twice")
		require.NoError(t, err)

		require.NoError(t, sub.Close())
		require.NoError(t, sub.Close())
	})

	t.Run("context cancellation closes events channel", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		sub, err := Tail(cancelCtx, redis.NewClient(opts), "cancelled")
		require.NoError(t, err)
		defer sub.Close()

		cancel()

		select {
		case _, ok := <-sub.Events():
			assert.False(t, ok, "events channel should be closed")
		case <-time.After(1 * time.Second):
			t.Fatal("timeout waiting for events channel to close")
		}
	})
}
