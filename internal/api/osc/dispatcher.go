// Package osc receives start and stop requests over OSC.
package osc

import (
	"context"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	gosc "github.com/hypebeast/go-osc/osc"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/app/playback"
	"github.com/osa030/raveforest/internal/app/stop"
	"github.com/osa030/raveforest/internal/domain/sample"
)

// Starter handles start requests.
type Starter interface {
	Start(ctx context.Context, name string) (playback.Outcome, error)
}

// Stopper handles stop requests.
type Stopper interface {
	Request(name string) stop.Outcome
}

// Config holds dispatcher configuration.
type Config struct {
	StartAddresses []string
	StopAddresses  []string
	QueueSize      int
}

// Dispatcher decodes OSC messages into two bounded queues, one for start
// and one for stop requests, each drained by its own listener.
type Dispatcher struct {
	starter Starter
	stopper Stopper
	config  Config

	starts chan string
	stops  chan string

	osc *gosc.StandardDispatcher
}

// NewDispatcher creates a dispatcher handling the configured addresses.
func NewDispatcher(starter Starter, stopper Stopper, config Config) (*Dispatcher, error) {
	if config.QueueSize <= 0 {
		config.QueueSize = 1
	}
	d := &Dispatcher{
		starter: starter,
		stopper: stopper,
		config:  config,
		starts:  make(chan string, config.QueueSize),
		stops:   make(chan string, config.QueueSize),
		osc:     gosc.NewStandardDispatcher(),
	}

	for _, addr := range config.StartAddresses {
		if err := d.osc.AddMsgHandler(addr, d.enqueue(d.starts, "start")); err != nil {
			return nil, errors.Wrapf(err, "failed to add start handler %s", addr)
		}
	}
	for _, addr := range config.StopAddresses {
		if err := d.osc.AddMsgHandler(addr, d.enqueue(d.stops, "stop")); err != nil {
			return nil, errors.Wrapf(err, "failed to add stop handler %s", addr)
		}
	}
	return d, nil
}

// ListenAndServe listens on addr (UDP) and serves until ctx is done.
func (d *Dispatcher) ListenAndServe(ctx context.Context, addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return d.Serve(ctx, conn)
}

// Serve reads OSC packets from conn until ctx is done. conn is closed on return.
func (d *Dispatcher) Serve(ctx context.Context, conn net.PacketConn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.listen(ctx, d.starts, d.handleStart)
	}()
	go func() {
		defer wg.Done()
		d.listen(ctx, d.stops, d.handleStop)
	}()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	zlog.Info().Msgf("osc: listening: addr=%s start=%v stop=%v", conn.LocalAddr(), d.config.StartAddresses, d.config.StopAddresses)

	// Packets are dispatched on this goroutine so each queue keeps arrival order.
	server := &gosc.Server{}
	var serveErr error
	for {
		packet, err := server.ReceivePacket(conn)
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, net.ErrClosed) {
			serveErr = errors.Wrap(err, "osc connection closed")
			break
		}
		if err != nil {
			zlog.Debug().Msgf("osc: dropped packet: err=%v", err)
			continue
		}
		d.osc.Dispatch(packet)
	}

	cancel()
	wg.Wait()
	zlog.Info().Msgf("osc: stopped")
	return serveErr
}

func (d *Dispatcher) enqueue(queue chan<- string, kind string) gosc.HandlerFunc {
	return func(msg *gosc.Message) {
		name, ok := decodeName(msg)
		if !ok {
			zlog.Debug().Msgf("osc: malformed %s message dropped: addr=%s args=%v", kind, msg.Address, msg.Arguments)
			return
		}
		select {
		case queue <- name:
		default:
			zlog.Warn().Msgf("osc: %s queue full, message dropped: sample=%s", kind, name)
		}
	}
}

func (d *Dispatcher) listen(ctx context.Context, queue <-chan string, handle func(context.Context, string)) {
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-queue:
			handle(ctx, name)
		}
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, name string) {
	outcome, err := d.starter.Start(ctx, name)
	if err != nil {
		zlog.Warn().Msgf("osc: start failed: sample=%s err=%v", name, err)
		return
	}
	zlog.Debug().Msgf("osc: start: sample=%s status=%s", name, outcome.Status)
}

func (d *Dispatcher) handleStop(_ context.Context, name string) {
	outcome := d.stopper.Request(name)
	zlog.Debug().Msgf("osc: stop: sample=%s outcome=%s", name, outcome)
}

// decodeName returns the sample name carried by the first argument.
func decodeName(msg *gosc.Message) (string, bool) {
	if len(msg.Arguments) == 0 {
		return "", false
	}
	name, ok := msg.Arguments[0].(string)
	if !ok {
		return "", false
	}
	if err := sample.ValidateName(name); err != nil {
		return "", false
	}
	return name, true
}
