package blackboard

import "time"

// The capability interfaces describe the narrow slices of the bus an agent
// may depend on. Concrete agents compose the capabilities they need rather
// than inheriting shared publish/subscribe behavior; a Port implements all
// of them with its sender identity bound.

// Publisher publishes findings, alerts and other messages to the bus.
type Publisher interface {
	Publish(mt MessageType, topic string, priority Priority, payload map[string]any) (*Message, error)
}

// Subscriber registers callbacks for matching messages.
type Subscriber interface {
	Subscribe(typePattern MessageType, topicPrefix string, fn Handler) (SubscriptionHandle, error)
	Unsubscribe(h SubscriptionHandle) error
}

// Asker asks correlated questions of other agents.
type Asker interface {
	Ask(target, topic string, payload map[string]any, timeout time.Duration) (*PendingQuestion, error)
}

// Responder answers questions asked by other agents.
type Responder interface {
	Answer(correlationID string, payload map[string]any) (Outcome, error)
}

// Voter submits opinions for consensus building.
type Voter interface {
	SubmitOpinion(topic, stance string, confidence float64, rationale string) (*Message, error)
}

// Port is an agent's bound view of the session: every operation carries the
// agent's identity as the sender. Ports are cheap and stateless; create one
// per agent when it joins the session.
type Port struct {
	session *Session
	agent   string
}

var (
	_ Publisher  = (*Port)(nil)
	_ Subscriber = (*Port)(nil)
	_ Asker      = (*Port)(nil)
	_ Responder  = (*Port)(nil)
	_ Voter      = (*Port)(nil)
)

// Port returns a capability port bound to the given agent identity.
func (s *Session) Port(agent string) *Port {
	return &Port{session: s, agent: agent}
}

// Agent returns the identity this port publishes as.
func (p *Port) Agent() string {
	return p.agent
}

// Publish publishes a message with this port's agent as the sender.
func (p *Port) Publish(mt MessageType, topic string, priority Priority, payload map[string]any) (*Message, error) {
	return p.session.Publish(p.agent, mt, topic, priority, payload)
}

// Subscribe registers a callback for this port's agent.
func (p *Port) Subscribe(typePattern MessageType, topicPrefix string, fn Handler) (SubscriptionHandle, error) {
	return p.session.Subscribe(p.agent, typePattern, topicPrefix, fn)
}

// Unsubscribe removes a subscription previously created through any port.
func (p *Port) Unsubscribe(h SubscriptionHandle) error {
	return p.session.Unsubscribe(h)
}

// Ask asks a question on behalf of this port's agent.
func (p *Port) Ask(target, topic string, payload map[string]any, timeout time.Duration) (*PendingQuestion, error) {
	return p.session.Ask(p.agent, target, topic, payload, timeout)
}

// Answer answers a question on behalf of this port's agent.
func (p *Port) Answer(correlationID string, payload map[string]any) (Outcome, error) {
	return p.session.Answer(correlationID, p.agent, payload)
}

// SubmitOpinion submits an opinion on behalf of this port's agent.
func (p *Port) SubmitOpinion(topic, stance string, confidence float64, rationale string) (*Message, error) {
	return p.session.SubmitOpinion(p.agent, topic, stance, confidence, rationale)
}
