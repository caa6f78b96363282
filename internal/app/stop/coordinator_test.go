package stop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/raveforest/internal/app/notification"
	"github.com/osa030/raveforest/internal/app/registry"
)

type capturePublisher struct {
	mu     sync.Mutex
	events []notification.Event
}

func (p *capturePublisher) Publish(e notification.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func TestCoordinator_Request(t *testing.T) {
	tests := []struct {
		name    string
		policy  registry.EarlyStopPolicy
		playing []string
		calls   []string
		want    []Outcome
	}{
		{
			name:    "stop of playing sample",
			playing: []string{"bird.wav"},
			calls:   []string{"bird.wav"},
			want:    []Outcome{registry.StopRecorded},
		},
		{
			name:    "repeated stop is a duplicate",
			playing: []string{"bird.wav"},
			calls:   []string{"bird.wav", "bird.wav"},
			want:    []Outcome{registry.StopRecorded, registry.StopDuplicate},
		},
		{
			name:  "stop without session is dropped",
			calls: []string{"bird.wav"},
			want:  []Outcome{registry.StopDropped},
		},
		{
			name:   "stop without session is retained",
			policy: registry.EarlyStopRetain,
			calls:  []string{"bird.wav"},
			want:   []Outcome{registry.StopPending},
		},
		{
			name:    "invalid names are dropped",
			policy:  registry.EarlyStopRetain,
			playing: []string{"bird.wav"},
			calls:   []string{"", "../bird.wav"},
			want:    []Outcome{registry.StopDropped, registry.StopDropped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := registry.New(tt.policy)
			for _, name := range tt.playing {
				_, ok := reg.MarkPlaying(name)
				require.True(t, ok)
			}

			c := NewCoordinator(reg, nil)
			got := make([]Outcome, 0, len(tt.calls))
			for _, name := range tt.calls {
				got = append(got, c.Request(name))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoordinator_PublishesOutcome(t *testing.T) {
	reg := registry.New(registry.EarlyStopDiscard)
	_, ok := reg.MarkPlaying("bird.wav")
	require.True(t, ok)

	pub := &capturePublisher{}
	c := NewCoordinator(reg, pub)
	c.Request("bird.wav")
	c.Request("traffic.wav")
	c.Request("")

	require.Len(t, pub.events, 2, "invalid names are not published")
	assert.Equal(t, notification.EventStopRequested, pub.events[0].Type)
	assert.Equal(t, "bird.wav", pub.events[0].Sample)
	assert.Equal(t, "recorded", pub.events[0].Reason)
	assert.Equal(t, "dropped", pub.events[1].Reason)
	assert.Equal(t, registry.StateStopRequested, reg.StateOf("bird.wav"))
}
