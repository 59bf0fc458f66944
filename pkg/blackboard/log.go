package blackboard

import (
	"strings"
	"sync"
)

// ConversationLog is the append-only, globally ordered history of every
// message published in a session. Entries are strictly increasing in
// sequence regardless of delivery priority, and are never reordered or
// mutated after append. The log stays readable after the session closes.
type ConversationLog struct {
	mu      sync.RWMutex
	entries []*Message
}

func newConversationLog() *ConversationLog {
	return &ConversationLog{}
}

// append records a completed message. Only the delivery engine calls this,
// under the session's publish critical section, so appends are already
// serialized in sequence order.
func (l *ConversationLog) append(m *Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, m)
}

// Len returns the number of logged messages.
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns all logged messages in sequence order.
func (l *ConversationLog) Snapshot() []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Since returns all messages with a sequence strictly greater than seq.
// Pass the highest sequence already seen to poll for new entries; pass 0
// for the full history.
func (l *ConversationLog) Since(seq int64) []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// Entries are sequence-ordered, so binary-search style scanning is
	// unnecessary at session scale - a linear cut is fine.
	for i, m := range l.entries {
		if m.Sequence > seq {
			out := make([]*Message, len(l.entries)-i)
			copy(out, l.entries[i:])
			return out
		}
	}
	return nil
}

// ByType returns all messages of the given type in sequence order.
func (l *ConversationLog) ByType(mt MessageType) []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Message
	for _, m := range l.entries {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

// ByTopic returns all messages whose topic starts with the given prefix,
// in sequence order. An empty prefix returns everything.
func (l *ConversationLog) ByTopic(prefix string) []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Message
	for _, m := range l.entries {
		if strings.HasPrefix(m.Topic, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// BySender returns all messages published by the given agent, in sequence
// order. Useful for per-agent transcript views.
func (l *ConversationLog) BySender(agent string) []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Message
	for _, m := range l.entries {
		if m.Sender == agent {
			out = append(out, m)
		}
	}
	return out
}

// CriticalAlerts returns every critical-priority message, in sequence order.
func (l *ConversationLog) CriticalAlerts() []*Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Message
	for _, m := range l.entries {
		if m.Priority == PriorityCritical {
			out = append(out, m)
		}
	}
	return out
}

// HasAlert reports whether a critical-priority message exists for the
// exact topic.
func (l *ConversationLog) HasAlert(topic string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, m := range l.entries {
		if m.Priority == PriorityCritical && m.Topic == topic {
			return true
		}
	}
	return false
}

// LatestByTopic returns the most recent message published under the exact
// topic, or nil if none exists.
func (l *ConversationLog) LatestByTopic(topic string) *Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Topic == topic {
			return l.entries[i]
		}
	}
	return nil
}
