package blackboard

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SessionState defines the lifecycle state of a session.
// Sessions progress open -> active -> closed; closed is final.
type SessionState string

const (
	// SessionStateOpen indicates the session accepts subscriptions but no
	// message has been published yet.
	SessionStateOpen SessionState = "open"

	// SessionStateActive indicates at least one message has been published.
	SessionStateActive SessionState = "active"

	// SessionStateClosed indicates the session has been torn down. All
	// further operations fail with ErrSessionClosed.
	SessionStateClosed SessionState = "closed"
)

// Validate checks if the SessionState is a valid enum value.
func (ss SessionState) Validate() error {
	switch ss {
	case SessionStateOpen, SessionStateActive, SessionStateClosed:
		return nil
	default:
		return fmt.Errorf("unknown session state: %q", ss)
	}
}

// defaultSweepInterval is how often the correlator checks for expired
// questions when the config doesn't override it.
const defaultSweepInterval = 100 * time.Millisecond

// SessionConfig configures one analysis session.
type SessionConfig struct {
	// Name identifies the session, e.g. a case or encounter ID.
	// Must not be empty.
	Name string

	// QuestionTimeout is the default deadline applied when Ask is called
	// with a zero timeout. Optional; if zero, Ask requires an explicit
	// positive timeout.
	QuestionTimeout time.Duration

	// SweepInterval is the question timeout sweep period.
	// Defaults to 100ms.
	SweepInterval time.Duration

	// Consensus lists the topics tracked for consensus and their
	// resolution policies. Opinions on unlisted topics are logged but
	// never resolve.
	Consensus []ConsensusTopicConfig
}

// Validate performs strict validation on the session configuration.
func (c *SessionConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	if c.QuestionTimeout < 0 {
		return fmt.Errorf("question_timeout cannot be negative")
	}

	if c.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval cannot be negative")
	}

	topicsSeen := make(map[string]bool)
	for _, tc := range c.Consensus {
		if err := tc.Validate(); err != nil {
			return err
		}
		if topicsSeen[tc.Topic] {
			return fmt.Errorf("duplicate consensus topic %q", tc.Topic)
		}
		topicsSeen[tc.Topic] = true
	}

	return nil
}

// Session is the coordination bus for one analysis run. It exclusively owns
// the conversation log, subscription registry, pending-question table and
// per-topic opinion sets for its lifetime; agents hold no authoritative
// state about any of these. All methods are safe for concurrent use from
// any number of agents.
type Session struct {
	name string
	cfg  SessionConfig

	log      *ConversationLog
	registry *registry

	// mu serializes sequence assignment, log append ordering, dispatch
	// scheduling, and all question/opinion state transitions.
	mu          sync.Mutex
	state       SessionState
	nextSeq     int64
	pending     messageQueue
	dispatching bool
	questions   map[string]*PendingQuestion
	opinions    map[string]*OpinionSet

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewSession creates a session in the open state and starts its question
// timeout sweeper. The caller must Close the session when the analysis run
// ends; nothing persists across sessions.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaultSweepInterval
	}

	s := &Session{
		name:      cfg.Name,
		cfg:       cfg,
		log:       newConversationLog(),
		registry:  newRegistry(),
		state:     SessionStateOpen,
		nextSeq:   1,
		questions: make(map[string]*PendingQuestion),
		opinions:  make(map[string]*OpinionSet),
	}

	for _, tc := range cfg.Consensus {
		s.opinions[tc.Topic] = newOpinionSet(tc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})
	go s.sweepLoop(ctx, cfg.SweepInterval)

	return s, nil
}

// Name returns the session identifier.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Log returns the session's conversation log. The log remains readable
// after the session closes.
func (s *Session) Log() *ConversationLog {
	return s.log
}

// Close tears the session down: all open questions are force-expired, the
// timeout sweeper stops, and every subsequent operation fails fast with
// ErrSessionClosed. Closing an already-closed session is a no-op.
// The conversation log stays readable for audit and transcript rendering.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == SessionStateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = SessionStateClosed

	// Force-expire without publishing alerts - the session is over and
	// no agent is left to react to them.
	for _, q := range s.questions {
		if q.State == QuestionStateOpen {
			q.State = QuestionStateExpired
		}
	}
	s.mu.Unlock()

	s.sweepCancel()
	<-s.sweepDone
	return nil
}

// Publish validates and publishes a message on behalf of sender, assigning
// its id, sequence and timestamp, appending it to the conversation log and
// delivering it to all matching subscribers in priority-then-sequence
// order. An empty priority defaults to PriorityNormal.
//
// Publish is safe to call from inside a delivery callback: the message is
// queued and dispatched after the triggering delivery completes.
func (s *Session) Publish(sender string, mt MessageType, topic string, priority Priority, payload map[string]any) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, err := s.admitLocked(draft{
		Type:     mt,
		Sender:   sender,
		Topic:    topic,
		Priority: priority,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	s.drainLocked()
	return msg, nil
}

// Subscribe registers an agent callback for messages matching the exact
// type (or TypeAny) and topic prefix. An empty prefix matches every topic
// of the given type. Agents may hold multiple overlapping subscriptions;
// the delivery engine still invokes each agent at most once per message.
func (s *Session) Subscribe(agent string, typePattern MessageType, topicPrefix string, fn Handler) (SubscriptionHandle, error) {
	s.mu.Lock()
	closed := s.state == SessionStateClosed
	s.mu.Unlock()

	if closed {
		return SubscriptionHandle{}, ErrSessionClosed
	}

	if agent == "" {
		return SubscriptionHandle{}, validationErrorf("subscribe", "agent cannot be empty")
	}
	if fn == nil {
		return SubscriptionHandle{}, validationErrorf("subscribe", "callback cannot be nil")
	}
	if typePattern != TypeAny {
		if err := typePattern.Validate(); err != nil {
			return SubscriptionHandle{}, validationErrorf("subscribe", "%v", err)
		}
	}

	return s.registry.add(agent, typePattern, topicPrefix, fn), nil
}

// Unsubscribe removes a subscription. Unknown handles are a no-op.
func (s *Session) Unsubscribe(h SubscriptionHandle) error {
	s.mu.Lock()
	closed := s.state == SessionStateClosed
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}

	s.registry.remove(h)
	return nil
}
