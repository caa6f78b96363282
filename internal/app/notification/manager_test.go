package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
	block  bool
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) Send(ctx context.Context, e Event) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func (s *captureSink) received() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestManager_Publish(t *testing.T) {
	m := NewManager()
	a := &captureSink{}
	b := &captureSink{err: errors.New("unreachable")}
	m.Subscribe(a)
	m.Subscribe(b)
	require.Equal(t, 2, m.SubscriberCount())

	m.Publish(Event{Type: EventSessionStarted, Sample: "bird.wav"})
	m.Publish(Event{Type: EventSessionEnded, Sample: "bird.wav", Reason: ReasonStopped})
	m.Close()

	got := a.received()
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].SequenceNo)
	assert.Equal(t, uint64(2), got[1].SequenceNo)
	assert.False(t, got[0].Time.IsZero(), "publish stamps the event time")
	assert.Equal(t, ReasonStopped, got[1].Reason)
	assert.Len(t, b.received(), 2, "a failing sink still receives every event")
}

func TestManager_PublishDoesNotWaitForSinks(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 200 * time.Millisecond
	fast := &captureSink{}
	m.Subscribe(&captureSink{block: true})
	m.Subscribe(fast)

	start := time.Now()
	m.Publish(Event{Type: EventStopRequested, Sample: "bird"})
	m.Publish(Event{Type: EventFadeStarted, Sample: "bird"})
	assert.Less(t, time.Since(start), 50*time.Millisecond, "a blocked sink never delays the publisher")

	assert.Eventually(t, func() bool { return len(fast.received()) == 2 }, 2*time.Second, 5*time.Millisecond)
	got := fast.received()
	assert.Equal(t, EventStopRequested, got[0].Type, "events arrive in publish order")
	assert.Equal(t, EventFadeStarted, got[1].Type)
	m.Close()
}

func TestManager_PublishAfterClose(t *testing.T) {
	m := NewManager()
	s := &captureSink{}
	m.Subscribe(s)
	m.Close()

	assert.NotPanics(t, func() { m.Publish(Event{Type: EventSessionStarted}) })
	assert.NotPanics(t, m.Close)
	assert.Empty(t, s.received())
}

func TestManager_Unsubscribe(t *testing.T) {
	m := NewManager()
	s := &captureSink{}
	id := m.Subscribe(s)
	m.Unsubscribe(id)

	m.Publish(Event{Type: EventSessionStarted})
	m.Close()
	assert.Empty(t, s.received())
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestEventType_String(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{EventSessionStarted, "session_started"},
		{EventSessionRejected, "session_rejected"},
		{EventAlreadyPlaying, "already_playing"},
		{EventStopRequested, "stop_requested"},
		{EventFadeStarted, "fade_started"},
		{EventSessionLooped, "session_looped"},
		{EventSessionEnded, "session_ended"},
		{EventSessionFailed, "session_failed"},
		{EventType(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.typ.String())
	}
}

func TestLogSink(t *testing.T) {
	assert.Equal(t, "log", LogSink{}.Name())
	assert.NoError(t, LogSink{}.Send(context.Background(), Event{Type: EventSessionFailed, Reason: "boom"}))
}
