package osc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	gosc "github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/raveforest/internal/app/clock"
	"github.com/osa030/raveforest/internal/app/playback"
	"github.com/osa030/raveforest/internal/app/registry"
	"github.com/osa030/raveforest/internal/app/stop"
	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/engine/enginetest"
)

func defaultConfig() Config {
	return Config{
		StartAddresses: []string{"/start", "/play"},
		StopAddresses:  []string{"/stop"},
		QueueSize:      16,
	}
}

type harness struct {
	reg    *registry.Registry
	eng    *enginetest.Recorder
	sup    *playback.Supervisor
	client *gosc.Client
	addr   string
	done   chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk, err := clock.New(6000)
	require.NoError(t, err)

	h := &harness{
		reg:  registry.New(registry.EarlyStopDiscard),
		eng:  enginetest.New(),
		done: make(chan error, 1),
	}
	h.eng.SetDuration("bird", 10*time.Second)
	h.sup = playback.NewSupervisor(h.reg, h.eng, clk, nil, nil, playback.Config{
		Params: sample.Params{Dir: "/srv/samples", Finish: 1, Amp: 1, Rate: 1, FadeBeats: 1},
	})

	d, err := NewDispatcher(h.sup, stop.NewCoordinator(h.reg, nil), defaultConfig())
	require.NoError(t, err)

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	h.addr = conn.LocalAddr().String()
	h.client = gosc.NewClient("127.0.0.1", conn.LocalAddr().(*net.UDPAddr).Port)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- d.Serve(ctx, conn) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-h.done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("dispatcher did not stop")
		}
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer scancel()
		assert.NoError(t, h.sup.Shutdown(sctx))
	})
	return h
}

func (h *harness) send(t *testing.T, addr string, args ...interface{}) {
	t.Helper()
	require.NoError(t, h.client.Send(gosc.NewMessage(addr, args...)))
}

func TestDispatcher_StartStartStopStop(t *testing.T) {
	h := newHarness(t)

	h.send(t, "/start", "bird")
	assert.Eventually(t, func() bool { return h.eng.Starts("bird") == 1 }, 2*time.Second, 5*time.Millisecond)

	h.send(t, "/play", "bird")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.eng.Starts("bird"), "second start is ignored while playing")
	assert.True(t, h.reg.IsPlaying("bird"))

	h.send(t, "/stop", "bird")
	assert.Eventually(t, func() bool { return !h.reg.IsPlaying("bird") }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, h.eng.Fades("bird"))

	h.send(t, "/stop", "bird")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.eng.Fades("bird"), "stop without a session does not touch the engine")
	assert.Equal(t, 0, h.reg.Len())
}

func TestDispatcher_MalformedMessagesDropped(t *testing.T) {
	h := newHarness(t)

	h.send(t, "/start")
	h.send(t, "/start", int32(3))
	h.send(t, "/start", "")
	h.send(t, "/start", "../etc/passwd")
	h.send(t, "/unknown", "bird")

	// A packet that is not OSC at all
	conn, err := net.Dial("udp", h.addr)
	require.NoError(t, err)
	_, err = conn.Write([]byte("not osc"))
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, h.eng.Calls())

	h.send(t, "/start", "bird")
	assert.Eventually(t, func() bool { return h.eng.Starts("bird") == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestDispatcher_QueueFull(t *testing.T) {
	cfg := defaultConfig()
	cfg.QueueSize = 1
	d, err := NewDispatcher(nil, nil, cfg)
	require.NoError(t, err)

	handler := d.enqueue(d.starts, "start")
	handler(gosc.NewMessage("/start", "bird"))
	handler(gosc.NewMessage("/start", "traffic"))

	require.Len(t, d.starts, 1)
	assert.Equal(t, "bird", <-d.starts)
}

type orderRecorder struct {
	mu     sync.Mutex
	starts []string
	stops  []string
}

func (r *orderRecorder) Start(_ context.Context, name string) (playback.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, name)
	return playback.Outcome{Status: playback.StatusStarted}, nil
}

func (r *orderRecorder) Request(name string) stop.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, name)
	return registry.StopRecorded
}

func (r *orderRecorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.starts...), append([]string(nil), r.stops...)
}

func TestDispatcher_PreservesArrivalOrder(t *testing.T) {
	tests := []struct {
		name      string
		addresses []string
		wantStart bool
	}{
		{"start queue", []string{"/start", "/play"}, true},
		{"stop queue", []string{"/stop"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &orderRecorder{}
			cfg := defaultConfig()
			cfg.QueueSize = 128
			d, err := NewDispatcher(rec, rec, cfg)
			require.NoError(t, err)

			conn, err := net.ListenPacket("udp", "127.0.0.1:0")
			require.NoError(t, err)
			client := gosc.NewClient("127.0.0.1", conn.LocalAddr().(*net.UDPAddr).Port)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- d.Serve(ctx, conn) }()
			defer func() {
				cancel()
				assert.NoError(t, <-done)
			}()

			var want []string
			for i := 0; i < 64; i++ {
				name := fmt.Sprintf("sample-%02d", i)
				want = append(want, name)
				addr := tt.addresses[i%len(tt.addresses)]
				require.NoError(t, client.Send(gosc.NewMessage(addr, name)))
			}

			assert.Eventually(t, func() bool {
				starts, stops := rec.snapshot()
				if tt.wantStart {
					return len(starts) == len(want)
				}
				return len(stops) == len(want)
			}, 2*time.Second, 5*time.Millisecond)

			starts, stops := rec.snapshot()
			if tt.wantStart {
				assert.Equal(t, want, starts)
				assert.Empty(t, stops)
			} else {
				assert.Equal(t, want, stops)
				assert.Empty(t, starts)
			}
		})
	}
}

func TestNewDispatcher_DuplicateAddress(t *testing.T) {
	cfg := defaultConfig()
	cfg.StopAddresses = []string{"/start"}
	_, err := NewDispatcher(nil, nil, cfg)
	assert.Error(t, err)
}

func TestDecodeName(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want string
		ok   bool
	}{
		{name: "string", args: []interface{}{"bird"}, want: "bird", ok: true},
		{name: "extra args ignored", args: []interface{}{"bird", int32(1)}, want: "bird", ok: true},
		{name: "no args", args: nil},
		{name: "int", args: []interface{}{int32(1)}},
		{name: "empty", args: []interface{}{""}},
		{name: "path", args: []interface{}{"a/b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeName(gosc.NewMessage("/start", tt.args...))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
