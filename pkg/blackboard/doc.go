// Package blackboard implements the coordination bus through which a fixed
// set of autonomous analysis agents exchange typed, prioritized messages,
// ask each other correlated questions, and converge on joint decisions via
// an opinion/consensus protocol.
//
// # Overview
//
// The bus follows the blackboard pattern: agents never call each other
// directly. Every interaction is a Message published to a Session, which
// timestamps and sequences it, appends it to the append-only conversation
// log, and delivers it to matching subscribers. The bus routes, orders and
// records; it never interprets a payload. Medical inference, file handling
// and any network transport live outside this package.
//
// # Core Concepts
//
// Messages are immutable. The delivery engine assigns each one a unique id,
// a monotonically increasing sequence that defines the global total order,
// and a wall-clock timestamp used only for display. Delivery scheduling
// honors priority (critical > high > normal > low) among messages pending
// at the same dispatch instant; the conversation log is always in strict
// sequence order regardless of priority.
//
// Questions are correlated: Ask publishes a QUESTION and registers a
// pending entry, Answer publishes a RESPONSE carrying the question's id as
// its correlation id. A background sweep expires unanswered questions past
// their deadline and publishes a timeout alert, so nothing ever blocks
// waiting for an answer.
//
// Opinions feed per-topic OpinionSets with pluggable resolution policies.
// The unanimous-safe policy waits for all required voters and resolves
// disagreement to the most severe configured stance; the quorum-weighted
// policy resolves once enough required voters agree, breaking ties by
// aggregate confidence then severity. Resolution publishes one CONSENSUS
// message and is final.
//
// # Sessions
//
// All bus state is owned by one Session with an explicit open -> active ->
// closed lifecycle. There is no process-wide singleton, so concurrent
// analysis sessions coexist without interference. Close force-expires open
// questions and makes every later operation fail with ErrSessionClosed;
// the conversation log stays readable for transcripts and audit.
//
// # Usage Example
//
//	session, err := blackboard.NewSession(blackboard.SessionConfig{
//		Name: "case-4711",
//		Consensus: []blackboard.ConsensusTopicConfig{{
//			Topic:          "disposition",
//			Policy:         blackboard.PolicyUnanimousSafe,
//			RequiredVoters: []string{"labs", "imaging", "risk"},
//			SeverityOrder:  []string{"discharge", "observe", "admit", "icu"},
//		}},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer session.Close()
//
//	labs := session.Port("labs")
//	labs.Subscribe(blackboard.MessageTypeQuestion, "labs.", func(m *blackboard.Message) {
//		labs.Answer(m.ID, map[string]any{"wbc": 15.2})
//	})
//	labs.Publish(blackboard.MessageTypeFinding, "labs.infection",
//		blackboard.PriorityHigh, map[string]any{"marker": "elevated"})
//
// # Design Principles
//
//   - Type safety: message kinds, priorities and lifecycle states are
//     validated enums, not ad-hoc strings inspected by subscribers.
//   - Immutability: messages and log entries never change after publish.
//   - Isolation: one faulting subscriber never affects another, the log,
//     or the publisher.
//   - Liveness: no operation blocks on another agent; timeouts are state
//     transitions, not errors.
package blackboard
