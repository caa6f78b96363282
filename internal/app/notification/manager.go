// Package notification provides the notification manager for broadcasting events.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// DefaultSendTimeout bounds a single sink delivery.
const DefaultSendTimeout = 500 * time.Millisecond

// Sink receives broadcast events.
type Sink interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id   string
	sink Sink
}

// DefaultQueueSize bounds the events waiting for delivery.
const DefaultQueueSize = 256

// Manager manages notification subscriptions and broadcasting. Events are
// delivered in publish order by a single goroutine.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sendTimeout   time.Duration
	now           func() time.Time

	queueMu    sync.Mutex
	queue      chan Event
	sequenceNo uint64
	closed     bool
	done       chan struct{}
}

// NewManager creates a new notification manager and starts delivery.
func NewManager() *Manager {
	m := &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   DefaultSendTimeout,
		now:           time.Now,
		queue:         make(chan Event, DefaultQueueSize),
		done:          make(chan struct{}),
	}
	go m.deliverLoop()
	return m
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(sink Sink) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:   id,
		sink: sink,
	}
	zlog.Debug().Msgf("notification: subscribed: id=%s sink=%s", id, sink.Name())
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Publish stamps the event and queues it for delivery. It never waits
// for sinks. Events published after Close, or while the queue is full,
// are dropped.
func (m *Manager) Publish(e Event) {
	m.queueMu.Lock()
	defer m.queueMu.Unlock()
	if m.closed {
		return
	}

	m.sequenceNo++
	e.SequenceNo = m.sequenceNo
	if e.Time.IsZero() {
		e.Time = m.now()
	}

	select {
	case m.queue <- e:
	default:
		zlog.Warn().Msgf("notification: queue full, event dropped: event=%s sample=%s", e.Type, e.Sample)
	}
}

func (m *Manager) deliverLoop() {
	defer close(m.done)
	for e := range m.queue {
		m.deliver(e)
	}
}

// deliver sends one event to all subscribers in parallel. Each send is
// bounded by the send timeout.
func (m *Manager) deliver(e Event) {
	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.sink.Send(ctx, e)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed: sink=%s event=%s err=%v", s.sink.Name(), e.Type, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out: sink=%s event=%s", s.sink.Name(), e.Type)
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close delivers the queued events, stops delivery and removes all
// subscriptions.
func (m *Manager) Close() {
	m.queueMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.queueMu.Unlock()
	<-m.done

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
