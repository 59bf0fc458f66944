package blackboard

import (
	"strings"
	"sync"
)

// Handler is the callback invoked by the delivery engine for each matching
// message. Handlers run on the publishing goroutine's call path; they must
// not assume they run synchronously with any particular publisher, and they
// may publish new messages (re-entrant publishes are queued, not recursed).
type Handler func(*Message)

// SubscriptionHandle identifies one active subscription for Unsubscribe.
type SubscriptionHandle struct {
	id int
}

// subscription is one registered (agent, pattern, callback) entry.
type subscription struct {
	id          int
	agent       string
	typePattern MessageType // exact type or TypeAny
	topicPrefix string      // empty prefix matches all topics
	handler     Handler
}

// registry maps type/topic patterns to interested agents.
// It has its own lock so dispatch can resolve recipients without holding
// the session mutex across callback invocations.
type registry struct {
	mu     sync.RWMutex
	nextID int
	subs   []*subscription
}

func newRegistry() *registry {
	return &registry{}
}

// add registers a subscription and returns its handle.
func (r *registry) add(agent string, typePattern MessageType, topicPrefix string, fn Handler) SubscriptionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.subs = append(r.subs, &subscription{
		id:          r.nextID,
		agent:       agent,
		typePattern: typePattern,
		topicPrefix: topicPrefix,
		handler:     fn,
	})

	return SubscriptionHandle{id: r.nextID}
}

// remove deletes the subscription for the given handle.
// Returns false if the handle is unknown or already removed.
func (r *registry) remove(h SubscriptionHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, sub := range r.subs {
		if sub.id == h.id {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// delivery is one resolved recipient for a message.
type delivery struct {
	agent   string
	handler Handler
}

// recipients resolves the subscriber set for a message.
//
// Matching is exact on type (or TypeAny) plus prefix match on topic. The
// sender never receives its own message, and an agent with several
// overlapping subscriptions is invoked at most once per message - the
// earliest matching subscription wins.
func (r *registry) recipients(m *Message) []delivery {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []delivery
	seen := make(map[string]bool)

	for _, sub := range r.subs {
		if sub.agent == m.Sender || seen[sub.agent] {
			continue
		}
		if sub.typePattern != TypeAny && sub.typePattern != m.Type {
			continue
		}
		if !strings.HasPrefix(m.Topic, sub.topicPrefix) {
			continue
		}

		seen[sub.agent] = true
		out = append(out, delivery{agent: sub.agent, handler: sub.handler})
	}

	return out
}
