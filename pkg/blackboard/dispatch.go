package blackboard

import (
	"container/heap"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// TopicDeliveryFailure is the topic under which the bus records subscriber
// callback failures as diagnostic alerts.
const TopicDeliveryFailure = "bus.delivery_failure"

// draft is a message missing the fields the delivery engine assigns.
type draft struct {
	Type          MessageType
	Sender        string
	Topic         string
	Priority      Priority
	Payload       map[string]any
	CorrelationID string
}

// messageQueue orders pending messages by priority rank, then by sequence.
// It implements container/heap so the drain loop always dispatches the
// most urgent message admitted so far.
type messageQueue []*Message

func (q messageQueue) Len() int { return len(q) }

func (q messageQueue) Less(i, j int) bool {
	ri, rj := q[i].Priority.rank(), q[j].Priority.rank()
	if ri != rj {
		return ri < rj
	}
	return q[i].Sequence < q[j].Sequence
}

func (q messageQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *messageQueue) Push(x any) { *q = append(*q, x.(*Message)) }

func (q *messageQueue) Pop() any {
	old := *q
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return m
}

// admitLocked validates a draft, assigns id/sequence/timestamp, appends the
// completed message to the conversation log and queues it for dispatch.
// Sequence assignment and log append happen atomically under s.mu, so two
// concurrent publishes can never share a sequence or interleave appends.
//
// Returns ErrSessionClosed after teardown and a ValidationError for
// malformed drafts; in both cases nothing is published.
func (s *Session) admitLocked(d draft) (*Message, error) {
	if s.state == SessionStateClosed {
		return nil, ErrSessionClosed
	}

	if d.Priority == "" {
		d.Priority = PriorityNormal
	}

	if err := d.Type.Validate(); err != nil {
		return nil, validationErrorf("publish", "%v", err)
	}
	if err := d.Priority.Validate(); err != nil {
		return nil, validationErrorf("publish", "%v", err)
	}
	if d.Sender == "" {
		return nil, validationErrorf("publish", "sender cannot be empty")
	}
	if d.Type == MessageTypeResponse && d.CorrelationID == "" {
		return nil, validationErrorf("publish", "response message missing correlation ID")
	}
	if d.Type != MessageTypeResponse && d.CorrelationID != "" {
		return nil, validationErrorf("publish", "correlation ID only allowed on response messages")
	}

	msg := &Message{
		ID:            uuid.New().String(),
		Sequence:      s.nextSeq,
		Type:          d.Type,
		Sender:        d.Sender,
		Topic:         d.Topic,
		Priority:      d.Priority,
		Payload:       d.Payload,
		CorrelationID: d.CorrelationID,
		Timestamp:     time.Now(),
	}
	s.nextSeq++

	if s.state == SessionStateOpen {
		s.state = SessionStateActive
	}

	s.log.append(msg)
	heap.Push(&s.pending, msg)
	return msg, nil
}

// drainLocked dispatches every pending message. Called with s.mu held.
//
// If a drain is already running further up the call stack (an agent
// published from inside its callback), the message is left queued for that
// drain to pick up - this keeps the call stack flat and makes recursive
// publishes safe at any depth.
//
// The mutex is released around callback invocations so handlers can call
// back into the session; priority ordering applies to whatever is pending
// at each pop, which is exactly the "pending at the same dispatch instant"
// rule: a critical message admitted during a delivery overtakes queued
// normal traffic.
func (s *Session) drainLocked() {
	if s.dispatching {
		return
	}
	s.dispatching = true
	defer func() { s.dispatching = false }()

	for s.pending.Len() > 0 {
		// Teardown during a drain: drop undelivered messages. They are
		// already in the log; only delivery is abandoned.
		if s.state == SessionStateClosed {
			s.pending = nil
			return
		}

		msg := heap.Pop(&s.pending).(*Message)
		recipients := s.registry.recipients(msg)

		s.mu.Unlock()
		var failures []deliveryFailure
		for _, r := range recipients {
			if err := safeDeliver(r.handler, msg); err != nil {
				log.Printf("[Blackboard] Delivery to %s failed for message %s: %v", r.agent, msg.ID, err)
				failures = append(failures, deliveryFailure{agent: r.agent, err: err})
			}
		}
		s.mu.Lock()

		for _, f := range failures {
			s.recordDeliveryFailureLocked(msg, f)
		}
	}
}

// deliveryFailure captures one failed callback invocation.
type deliveryFailure struct {
	agent string
	err   error
}

// safeDeliver invokes a handler, converting a panic into an error so one
// faulting subscriber cannot take down the dispatch loop or the publisher.
func safeDeliver(h Handler, m *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("subscriber panicked: %v", r)
		}
	}()
	h(m)
	return nil
}

// recordDeliveryFailureLocked appends a diagnostic alert for a failed
// delivery. Failures while delivering a diagnostic itself are only logged,
// never re-published, so a subscriber that always faults cannot generate an
// unbounded alert cascade.
func (s *Session) recordDeliveryFailureLocked(msg *Message, f deliveryFailure) {
	if msg.Sender == BusSender && msg.Topic == TopicDeliveryFailure {
		return
	}

	_, err := s.admitLocked(draft{
		Type:     MessageTypeAlert,
		Sender:   BusSender,
		Topic:    TopicDeliveryFailure,
		Priority: PriorityHigh,
		Payload: map[string]any{
			"subscriber": f.agent,
			"message_id": msg.ID,
			"sequence":   msg.Sequence,
			"error":      f.err.Error(),
		},
	})
	if err != nil {
		// Session closed mid-drain; nothing left to record.
		log.Printf("[Blackboard] Could not record delivery failure: %v", err)
	}
}
