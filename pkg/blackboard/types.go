// Package blackboard provides the in-memory coordination bus ("blackboard")
// through which autonomous analysis agents exchange typed, prioritized
// messages, ask each other correlated questions, and converge on joint
// decisions via an opinion/consensus protocol.
//
// All state is scoped to a single Session and discarded when the session
// closes. The bus never interprets payloads - it routes, orders, and records.
package blackboard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message represents one immutable unit of agent communication.
// Fields are assigned once at publish time and never change afterwards.
// Payload maps are shared, not copied per subscriber - treat them as read-only.
type Message struct {
	ID            string         `json:"id"`                       // UUID assigned at publish time
	Sequence      int64          `json:"sequence"`                 // Global total order, assigned by the delivery engine
	Type          MessageType    `json:"type"`                     // Message kind (finding, question, ...)
	Sender        string         `json:"sender"`                   // Publishing agent identifier
	Topic         string         `json:"topic"`                    // Hierarchical routing key, e.g. "labs.infection"
	Priority      Priority       `json:"priority"`                 // Delivery scheduling urgency
	Payload       map[string]any `json:"payload,omitempty"`        // Opaque structured data, interpreted only by agents
	CorrelationID string         `json:"correlation_id,omitempty"` // On responses: the ID of the question being answered
	Timestamp     time.Time      `json:"timestamp"`                // Wall-clock creation time (display/audit only)
}

// MessageType defines the kind of a message on the bus.
type MessageType string

const (
	// MessageTypeFinding represents an analysis result published for other agents
	MessageTypeFinding MessageType = "finding"

	// MessageTypeQuestion represents a correlated question to one or all agents
	MessageTypeQuestion MessageType = "question"

	// MessageTypeResponse represents an answer to a previously asked question
	MessageTypeResponse MessageType = "response"

	// MessageTypeOpinion represents an agent's stance submitted for consensus
	MessageTypeOpinion MessageType = "opinion"

	// MessageTypeAlert represents an urgent notice, including bus-internal diagnostics
	MessageTypeAlert MessageType = "alert"

	// MessageTypeConsensus represents a resolved opinion set published by the bus
	MessageTypeConsensus MessageType = "consensus"
)

// TypeAny is the wildcard type pattern accepted by Subscribe.
// A subscription with TypeAny matches every message type.
const TypeAny MessageType = "*"

// Priority is the coarse urgency tag governing delivery scheduling among
// concurrently pending messages. It never affects the conversation log order.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// BusSender is the sender identifier used on messages the bus itself
// publishes (timeout alerts, delivery failure diagnostics, consensus).
const BusSender = "blackboard"

// Validate checks if the MessageType is a valid enum value.
// TypeAny is a subscription pattern, not a publishable type.
func (mt MessageType) Validate() error {
	switch mt {
	case MessageTypeFinding, MessageTypeQuestion, MessageTypeResponse,
		MessageTypeOpinion, MessageTypeAlert, MessageTypeConsensus:
		return nil
	default:
		return fmt.Errorf("unknown message type: %q", mt)
	}
}

// Validate checks if the Priority is a valid enum value.
func (p Priority) Validate() error {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow:
		return nil
	default:
		return fmt.Errorf("unknown priority: %q", p)
	}
}

// rank maps a priority to its dispatch ordering value. Lower dispatches first.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// Validate checks the fields the bus itself depends on.
// Payload content is opaque and never validated.
func (m *Message) Validate() error {
	if !isValidUUID(m.ID) {
		return fmt.Errorf("invalid message ID: not a valid UUID")
	}

	if m.Sequence < 1 {
		return fmt.Errorf("invalid sequence: must be >= 1, got %d", m.Sequence)
	}

	if err := m.Type.Validate(); err != nil {
		return fmt.Errorf("invalid type: %w", err)
	}

	if m.Sender == "" {
		return fmt.Errorf("sender cannot be empty")
	}

	if err := m.Priority.Validate(); err != nil {
		return fmt.Errorf("invalid priority: %w", err)
	}

	if m.Type == MessageTypeResponse && m.CorrelationID == "" {
		return fmt.Errorf("response message missing correlation ID")
	}

	if m.Type != MessageTypeResponse && m.CorrelationID != "" {
		return fmt.Errorf("correlation ID only allowed on response messages")
	}

	return nil
}

// QuestionState defines the lifecycle state of a pending question.
// Questions progress OPEN -> ANSWERED or OPEN -> EXPIRED; terminal states
// are final and an expired question can never become answered.
type QuestionState string

const (
	QuestionStateOpen     QuestionState = "open"
	QuestionStateAnswered QuestionState = "answered"
	QuestionStateExpired  QuestionState = "expired"
)

// Validate checks if the QuestionState is a valid enum value.
func (qs QuestionState) Validate() error {
	switch qs {
	case QuestionStateOpen, QuestionStateAnswered, QuestionStateExpired:
		return nil
	default:
		return fmt.Errorf("unknown question state: %q", qs)
	}
}

// TargetBroadcast addresses a question to all agents rather than one.
const TargetBroadcast = "*"

// PendingQuestion tracks one outstanding question on the bus.
// The zero deadline never occurs: Ask requires a positive timeout.
type PendingQuestion struct {
	QuestionID string        `json:"question_id"` // Message ID of the published question
	Asker      string        `json:"asker"`       // Agent that asked
	Target     string        `json:"target"`      // Specific agent or TargetBroadcast
	Topic      string        `json:"topic"`       // Topic the question was published under
	State      QuestionState `json:"state"`       // open, answered or expired
	Responder  string        `json:"responder,omitempty"` // First agent whose response was accepted
	CreatedAt  time.Time     `json:"created_at"`
	Deadline   time.Time     `json:"deadline"`
}

// Outcome reports how the correlator classified a response.
type Outcome string

const (
	// OutcomeAnswered means the response resolved an open question.
	OutcomeAnswered Outcome = "answered"

	// OutcomeLateOrDuplicate means the question was already answered or
	// expired; the response was still published for log completeness.
	OutcomeLateOrDuplicate Outcome = "late_or_duplicate"
)

// Validate checks if the Outcome is a valid enum value.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeAnswered, OutcomeLateOrDuplicate:
		return nil
	default:
		return fmt.Errorf("unknown outcome: %q", o)
	}
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
