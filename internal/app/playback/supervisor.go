package playback

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/app/clock"
	"github.com/osa030/raveforest/internal/app/filter"
	"github.com/osa030/raveforest/internal/app/notification"
	"github.com/osa030/raveforest/internal/app/registry"
	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/engine"
)

// Errors
var (
	ErrClosed = errors.New("supervisor is shut down")
)

// Config holds supervisor configuration.
type Config struct {
	Params        sample.Params // Fixed parameters of every session
	StopDetection StopDetection
	MaxVoices     int // Cap on concurrent sessions, 0 for none
}

// Publisher receives session events.
type Publisher interface {
	Publish(e notification.Event)
}

// Supervisor admits start requests and runs one session per playing sample.
type Supervisor struct {
	registry  *registry.Registry
	engine    engine.Engine
	clock     *clock.Clock
	chain     *filter.Chain
	publisher Publisher
	config    Config

	// Sessions run on this context, not on the context of the request
	// that started them.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSupervisor creates a new playback supervisor. chain and publisher may be nil.
func NewSupervisor(
	reg *registry.Registry,
	eng engine.Engine,
	clk *clock.Clock,
	chain *filter.Chain,
	publisher Publisher,
	config Config,
) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	if chain == nil {
		chain = filter.NewChain()
	}
	reg.SetCapacity(config.MaxVoices)
	return &Supervisor{
		registry:  reg,
		engine:    eng,
		clock:     clk,
		chain:     chain,
		publisher: publisher,
		config:    config,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start handles a start request received over OSC.
func (s *Supervisor) Start(ctx context.Context, name string) (Outcome, error) {
	return s.StartFrom(ctx, name, filter.SourceOSC)
}

// StartFrom handles a start request from the given source. A sample that
// already has a session is left alone and no engine call is made.
func (s *Supervisor) StartFrom(ctx context.Context, name string, source filter.Source) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if err := sample.ValidateName(name); err != nil {
		return s.reject(name, "invalid_name"), nil
	}

	if s.registry.IsPlaying(name) {
		return s.alreadyPlaying(name), nil
	}

	result := s.chain.Execute(ctx, filter.StartRequest{
		Sample: name,
		Dir:    s.config.Params.Dir,
		Source: source,
	})
	if !result.Accepted {
		return s.reject(name, result.Code), nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Outcome{}, ErrClosed
	}
	sessionID, outcome := s.registry.Claim(name)
	if outcome == registry.ClaimStarted {
		s.wg.Add(1)
		go s.run(&session{
			name:   name,
			id:     sessionID,
			ref:    s.config.Params.Ref(name),
			params: s.config.Params,
		})
	}
	s.mu.Unlock()

	switch outcome {
	case registry.ClaimAlreadyPlaying:
		return s.alreadyPlaying(name), nil
	case registry.ClaimFull:
		return s.reject(name, filter.CodeMaxVoices), nil
	}
	return Outcome{Status: StatusStarted, SessionID: sessionID}, nil
}

func (s *Supervisor) alreadyPlaying(name string) Outcome {
	zlog.Debug().Msgf("playback: already playing: sample=%s", name)
	s.publish(notification.Event{
		Type:   notification.EventAlreadyPlaying,
		Sample: name,
	})
	return Outcome{Status: StatusAlreadyPlaying}
}

func (s *Supervisor) reject(name, code string) Outcome {
	zlog.Debug().Msgf("playback: start rejected: sample=%q code=%s", name, code)
	s.publish(notification.Event{
		Type:   notification.EventSessionRejected,
		Sample: name,
		Reason: code,
	})
	return Outcome{Status: StatusRejected, Code: code}
}

// Wait blocks until every session has cleared its registry entry.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

// Shutdown stops admitting sessions and fades out the running ones.
// It returns ctx.Err() if sessions are still fading when ctx is done.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "sessions still running: %d", s.registry.Len())
	}
}

// Config returns the supervisor configuration.
func (s *Supervisor) Config() Config {
	return s.config
}

// Filters returns the admission filter chain.
func (s *Supervisor) Filters() *filter.Chain {
	return s.chain
}

func (s *Supervisor) publish(e notification.Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}
