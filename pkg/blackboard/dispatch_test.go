package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryMatching(t *testing.T) {
	t.Run("matches exact type and topic prefix", func(t *testing.T) {
		s := newTestSession(t)

		var got []string
		_, err := s.Subscribe("observer", MessageTypeFinding, "labs.", func(m *Message) {
			got = append(got, m.Topic)
		})
		require.NoError(t, err)

		s.Publish("labs", MessageTypeFinding, "labs.infection", PriorityNormal, nil)
		s.Publish("labs", MessageTypeFinding, "imaging.pneumonia", PriorityNormal, nil)
		s.Publish("labs", MessageTypeAlert, "labs.infection", PriorityNormal, nil)

		assert.Equal(t, []string{"labs.infection"}, got)
	})

	t.Run("empty prefix matches all topics of the type", func(t *testing.T) {
		s := newTestSession(t)

		var count int
		_, err := s.Subscribe("observer", MessageTypeFinding, "", func(*Message) { count++ })
		require.NoError(t, err)

		s.Publish("labs", MessageTypeFinding, "labs.infection", PriorityNormal, nil)
		s.Publish("labs", MessageTypeFinding, "imaging.pneumonia", PriorityNormal, nil)

		assert.Equal(t, 2, count)
	})

	t.Run("wildcard type matches everything", func(t *testing.T) {
		s := newTestSession(t)

		var types []MessageType
		_, err := s.Subscribe("display", TypeAny, "", func(m *Message) {
			types = append(types, m.Type)
		})
		require.NoError(t, err)

		s.Publish("labs", MessageTypeFinding, "labs.infection", PriorityNormal, nil)
		s.Publish("labs", MessageTypeAlert, "labs.sepsis", PriorityCritical, nil)

		assert.Equal(t, []MessageType{MessageTypeFinding, MessageTypeAlert}, types)
	})

	t.Run("sender never receives its own message", func(t *testing.T) {
		s := newTestSession(t)

		var count int
		_, err := s.Subscribe("labs", TypeAny, "", func(*Message) { count++ })
		require.NoError(t, err)

		s.Publish("labs", MessageTypeFinding, "labs.infection", PriorityNormal, nil)
		assert.Equal(t, 0, count)

		s.Publish("imaging", MessageTypeFinding, "imaging.pneumonia", PriorityNormal, nil)
		assert.Equal(t, 1, count)
	})
}

func TestAtMostOnceDelivery(t *testing.T) {
	// An agent with overlapping subscriptions matching one message must be
	// invoked exactly once for it.
	s := newTestSession(t)

	var count int
	handler := func(*Message) { count++ }

	_, err := s.Subscribe("observer", MessageTypeFinding, "", handler)
	require.NoError(t, err)
	_, err = s.Subscribe("observer", MessageTypeFinding, "labs.", handler)
	require.NoError(t, err)
	_, err = s.Subscribe("observer", TypeAny, "labs.infection", handler)
	require.NoError(t, err)

	_, err = s.Publish("labs", MessageTypeFinding, "labs.infection", PriorityNormal, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, count)
}

func TestPriorityOrdering(t *testing.T) {
	// Messages queued during a delivery are dispatched in priority order,
	// with equal priorities in sequence (publish) order.
	s := newTestSession(t)

	producer := s.Port("producer")
	_, err := s.Subscribe("producer", MessageTypeFinding, "trigger", func(*Message) {
		producer.Publish(MessageTypeFinding, "out.low-1", PriorityLow, nil)
		producer.Publish(MessageTypeFinding, "out.low-2", PriorityLow, nil)
		producer.Publish(MessageTypeAlert, "out.critical", PriorityCritical, nil)
		producer.Publish(MessageTypeFinding, "out.normal", PriorityNormal, nil)
	})
	require.NoError(t, err)

	var got []string
	_, err = s.Subscribe("observer", TypeAny, "out.", func(m *Message) {
		got = append(got, m.Topic)
	})
	require.NoError(t, err)

	_, err = s.Publish("driver", MessageTypeFinding, "trigger", PriorityNormal, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"out.critical", "out.normal", "out.low-1", "out.low-2"}, got)

	// The log keeps publish order regardless of delivery priority.
	var logged []string
	for _, m := range s.Log().ByTopic("out.") {
		logged = append(logged, m.Topic)
	}
	assert.Equal(t, []string{"out.low-1", "out.low-2", "out.critical", "out.normal"}, logged)
}

func TestReentrantPublish(t *testing.T) {
	t.Run("publish from callback is queued not recursed", func(t *testing.T) {
		s := newTestSession(t)

		echo := s.Port("echo")
		var depth, maxDepth int
		_, err := s.Subscribe("echo", MessageTypeFinding, "ping", func(m *Message) {
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
			echo.Publish(MessageTypeFinding, "pong", PriorityNormal, nil)
			depth--
		})
		require.NoError(t, err)

		var pongs int
		_, err = s.Subscribe("observer", MessageTypeFinding, "pong", func(*Message) { pongs++ })
		require.NoError(t, err)

		_, err = s.Publish("driver", MessageTypeFinding, "ping", PriorityNormal, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, pongs)
		assert.Equal(t, 1, maxDepth, "nested publish must not recurse into delivery")
	})

	t.Run("chained republish terminates cleanly", func(t *testing.T) {
		s := newTestSession(t)

		alice := s.Port("alice")
		bob := s.Port("bob")
		hops := 0

		_, err := s.Subscribe("alice", MessageTypeFinding, "chain.to-alice", func(*Message) {
			if hops < 10 {
				hops++
				alice.Publish(MessageTypeFinding, "chain.to-bob", PriorityNormal, nil)
			}
		})
		require.NoError(t, err)

		_, err = s.Subscribe("bob", MessageTypeFinding, "chain.to-bob", func(*Message) {
			if hops < 10 {
				hops++
				bob.Publish(MessageTypeFinding, "chain.to-alice", PriorityNormal, nil)
			}
		})
		require.NoError(t, err)

		_, err = s.Publish("driver", MessageTypeFinding, "chain.to-alice", PriorityNormal, nil)
		require.NoError(t, err)

		assert.Equal(t, 10, hops)
		assert.Equal(t, 11, len(s.Log().ByTopic("chain.")))
	})
}

func TestSubscriberIsolation(t *testing.T) {
	// A subscriber that always fails must not prevent delivery to others
	// or corrupt the log entries of the messages it failed on.
	s := newTestSession(t)

	var before, after int
	_, err := s.Subscribe("healthy-1", MessageTypeFinding, "", func(*Message) { before++ })
	require.NoError(t, err)

	_, err = s.Subscribe("faulty", MessageTypeFinding, "", func(*Message) {
		panic("simulated agent crash")
	})
	require.NoError(t, err)

	_, err = s.Subscribe("healthy-2", MessageTypeFinding, "", func(*Message) { after++ })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := s.Publish("labs", MessageTypeFinding, "labs.cbc", PriorityNormal, nil)
		require.NoError(t, err, "publisher must not see subscriber failures")
	}

	assert.Equal(t, 3, before)
	assert.Equal(t, 3, after)

	// Each failure is recorded as a diagnostic alert in the log.
	diagnostics := s.Log().ByTopic(TopicDeliveryFailure)
	require.Len(t, diagnostics, 3)
	for _, d := range diagnostics {
		assert.Equal(t, MessageTypeAlert, d.Type)
		assert.Equal(t, BusSender, d.Sender)
		assert.Equal(t, "faulty", d.Payload["subscriber"])
	}

	// Original findings are intact.
	assert.Len(t, s.Log().ByTopic("labs.cbc"), 3)
}

func TestDeliveryFailureCascadeGuard(t *testing.T) {
	// A subscriber that faults on the diagnostics themselves must not
	// generate an unbounded alert cascade.
	s := newTestSession(t)

	_, err := s.Subscribe("doomed", TypeAny, "", func(*Message) {
		panic("fails on everything, including diagnostics")
	})
	require.NoError(t, err)

	_, err = s.Publish("labs", MessageTypeFinding, "labs.cbc", PriorityNormal, nil)
	require.NoError(t, err)

	// One finding, one diagnostic for it - and nothing for the diagnostic.
	assert.Equal(t, 2, s.Log().Len())
}
