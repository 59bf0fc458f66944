package blackboard

import (
	"context"
	"time"
)

// TopicQuestionTimeout is the topic prefix for timeout alerts published by
// the correlator sweep. The full topic is this prefix, a dot, then the
// original question's topic.
const TopicQuestionTimeout = "question.timeout"

// Ask publishes a QUESTION message on behalf of asker and registers a
// pending entry keyed by the message's id. It never blocks waiting for the
// answer: the caller learns the outcome through its own subscription to
// RESPONSE and ALERT messages.
//
// Target is a specific agent identifier or TargetBroadcast. A zero timeout
// uses the session's configured default; if neither is set the call is
// rejected, since an unbounded question could stall consensus forever.
func (s *Session) Ask(asker, target, topic string, payload map[string]any, timeout time.Duration) (*PendingQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionStateClosed {
		return nil, ErrSessionClosed
	}

	if timeout == 0 {
		timeout = s.cfg.QuestionTimeout
	}
	if timeout <= 0 {
		return nil, validationErrorf("ask", "timeout must be positive")
	}
	if target == "" {
		return nil, validationErrorf("ask", "target cannot be empty (use TargetBroadcast for all agents)")
	}

	msg, err := s.admitLocked(draft{
		Type:    MessageTypeQuestion,
		Sender:  asker,
		Topic:   topic,
		Payload: payload,
	})
	if err != nil {
		return nil, err
	}

	// Register before draining: a subscriber may answer from inside its
	// delivery callback and the correlator must already know the question.
	q := &PendingQuestion{
		QuestionID: msg.ID,
		Asker:      asker,
		Target:     target,
		Topic:      topic,
		State:      QuestionStateOpen,
		CreatedAt:  msg.Timestamp,
		Deadline:   msg.Timestamp.Add(timeout),
	}
	s.questions[q.QuestionID] = q

	s.drainLocked()

	snapshot := *q
	return &snapshot, nil
}

// Answer publishes a RESPONSE for the question identified by correlationID
// on behalf of responder. If the question is still open it transitions to
// answered and the outcome is OutcomeAnswered; if it was already answered
// or has expired, the response is still published for transparency and log
// completeness but the outcome is OutcomeLateOrDuplicate. Broadcast
// questions are won by the first responder.
//
// An unknown correlation id is rejected as a validation error and nothing
// is published.
func (s *Session) Answer(correlationID, responder string, payload map[string]any) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionStateClosed {
		return "", ErrSessionClosed
	}

	q, ok := s.questions[correlationID]
	if !ok {
		return "", validationErrorf("answer", "unknown correlation ID %q", correlationID)
	}

	// Admit before touching the pending entry: a rejected response must
	// leave the question open for the real answer.
	if _, err := s.admitLocked(draft{
		Type:          MessageTypeResponse,
		Sender:        responder,
		Topic:         q.Topic,
		Payload:       payload,
		CorrelationID: correlationID,
	}); err != nil {
		return "", err
	}

	outcome := OutcomeLateOrDuplicate
	if q.State == QuestionStateOpen {
		q.State = QuestionStateAnswered
		q.Responder = responder
		outcome = OutcomeAnswered
	}

	s.drainLocked()
	return outcome, nil
}

// Question returns a snapshot of the pending entry for the given question
// id, or false if the id is unknown.
func (s *Session) Question(questionID string) (*PendingQuestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[questionID]
	if !ok {
		return nil, false
	}
	snapshot := *q
	return &snapshot, true
}

// sweepLoop periodically expires overdue questions until the session
// closes. The interval bounds how late an expiry alert can be relative to
// the question's deadline.
func (s *Session) sweepLoop(ctx context.Context, interval time.Duration) {
	defer close(s.sweepDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.expireDue(now)
		}
	}
}

// expireDue transitions every open question past its deadline to expired
// and publishes a timeout alert for each, so downstream consensus logic can
// proceed with incomplete information instead of stalling. Expiry is a
// state transition, not an error: the asker sees it as an ALERT message.
func (s *Session) expireDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionStateClosed {
		return
	}

	admitted := false
	for _, q := range s.questions {
		if q.State != QuestionStateOpen || now.Before(q.Deadline) {
			continue
		}
		q.State = QuestionStateExpired

		if _, err := s.admitLocked(draft{
			Type:     MessageTypeAlert,
			Sender:   BusSender,
			Topic:    TopicQuestionTimeout + "." + q.Topic,
			Priority: PriorityHigh,
			Payload: map[string]any{
				"question_id": q.QuestionID,
				"asker":       q.Asker,
				"target":      q.Target,
				"topic":       q.Topic,
				"reason":      "timeout_expired",
			},
		}); err != nil {
			return
		}
		admitted = true
	}

	if admitted {
		s.drainLocked()
	}
}
