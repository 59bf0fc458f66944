package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/chandana-solix/healthcare-ai-multiagent-system/pkg/blackboard"
)

// Subscription represents an active tail of a session's transcript channel.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *blackboard.Message
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of transcript messages.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan *blackboard.Message {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - malformed events are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Tail subscribes to a session's transcript channel and delivers decoded
// messages. Caller must call subscription.Close() when done; context
// cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// Redis Pub/Sub is at-most-once: a tail started mid-session sees only
// events published after it attached.
func Tail(ctx context.Context, rdb *redis.Client, sessionName string) (*Subscription, error) {
	if sessionName == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	channel := EventsChannel(sessionName)
	pubsub := rdb.Subscribe(ctx, channel)

	// Create buffered channels for events and errors
	eventsChan := make(chan *blackboard.Message, 10)
	errorsChan := make(chan error, 10)

	// Create cancellation context
	subCtx, cancelFunc := context.WithCancel(ctx)

	// Start goroutine to process messages
	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var entry blackboard.Message
				if err := json.Unmarshal([]byte(msg.Payload), &entry); err != nil {
					// Send error on error channel, skip message
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal transcript event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &entry:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}
