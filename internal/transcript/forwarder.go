package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// forwardBuffer bounds how many transcript events can be in flight between
// the bus callback and the Redis publisher before events are dropped.
// Display transport is best-effort; the authoritative record is the
// session's conversation log.
const forwardBuffer = 256

// Forwarder pushes every message published on a session onto the session's
// Redis transcript channel. It observes the bus through a wildcard
// subscription, hands messages to a buffered channel inside the delivery
// callback, and does all Redis I/O on its own goroutine so a slow or
// unreachable Redis can never stall dispatch.
type Forwarder struct {
	session *blackboard.Session
	rdb     *redis.Client
	events  chan *blackboard.Message
	handle  blackboard.SubscriptionHandle

	// Set by Start, consumed by Flush/Close on the same goroutine that
	// called Start.
	runCancel context.CancelFunc
	runDone   chan struct{}
}

// observerAgent is the subscriber identity the forwarder registers under.
const observerAgent = "transcript-forwarder"

// NewForwarder attaches a forwarder to the session.
// Call Start to begin forwarding and Close when done.
func NewForwarder(session *blackboard.Session, redisOpts *redis.Options) (*Forwarder, error) {
	f := &Forwarder{
		session: session,
		rdb:     redis.NewClient(redisOpts),
		events:  make(chan *blackboard.Message, forwardBuffer),
	}

	handle, err := session.Subscribe(observerAgent, blackboard.TypeAny, "", f.onMessage)
	if err != nil {
		f.rdb.Close()
		return nil, fmt.Errorf("failed to subscribe forwarder: %w", err)
	}
	f.handle = handle

	return f, nil
}

// Ping verifies Redis connectivity. Useful before starting a session so a
// bad --redis address fails fast instead of silently dropping events.
func (f *Forwarder) Ping(ctx context.Context) error {
	return f.rdb.Ping(ctx).Err()
}

// onMessage runs inside the bus delivery path: it must never block.
func (f *Forwarder) onMessage(m *blackboard.Message) {
	select {
	case f.events <- m:
	default:
		log.Printf("[Transcript] Buffer full, dropping event seq=%d", m.Sequence)
	}
}

// Start launches the background goroutine that publishes buffered events
// to Redis. It runs until the context is cancelled or Flush/Close stops
// it. Marshal or publish errors are logged and the event skipped - the
// forwarder keeps going, the conversation log is still complete.
func (f *Forwarder) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	f.runCancel = cancel
	f.runDone = make(chan struct{})

	go func() {
		defer close(f.runDone)
		f.run(runCtx)
	}()
}

func (f *Forwarder) run(ctx context.Context) {
	channel := EventsChannel(f.session.Name())

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-f.events:
			payload, err := json.Marshal(m)
			if err != nil {
				log.Printf("[Transcript] Failed to marshal event seq=%d: %v", m.Sequence, err)
				continue
			}
			if err := f.rdb.Publish(ctx, channel, payload).Err(); err != nil {
				log.Printf("[Transcript] Failed to publish event seq=%d: %v", m.Sequence, err)
			}
		}
	}
}

// Flush synchronously publishes any events still buffered. Call after the
// session has gone quiet (e.g. at end of a scripted run) so the tail side
// sees the complete transcript before shutdown.
//
// Flush is terminal: it stops the Start goroutine first so only one
// consumer drains the buffer and delivery order is preserved.
func (f *Forwarder) Flush(ctx context.Context) error {
	f.stop()

	channel := EventsChannel(f.session.Name())

	for {
		select {
		case m := <-f.events:
			payload, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("failed to marshal event seq=%d: %w", m.Sequence, err)
			}
			if err := f.rdb.Publish(ctx, channel, payload).Err(); err != nil {
				return fmt.Errorf("failed to publish event seq=%d: %w", m.Sequence, err)
			}
		default:
			return nil
		}
	}
}

// stop cancels the Start goroutine and waits for it to exit. No-op if
// Start was never called or it has already stopped.
func (f *Forwarder) stop() {
	if f.runCancel == nil {
		return
	}
	f.runCancel()
	<-f.runDone
}

// Close detaches from the session, stops the background publisher and
// closes the Redis connection. Implements io.Closer.
func (f *Forwarder) Close() error {
	// Unsubscribe fails once the session is closed; at that point the
	// subscription is already dead, so the error is ignored.
	_ = f.session.Unsubscribe(f.handle)
	f.stop()
	return f.rdb.Close()
}
