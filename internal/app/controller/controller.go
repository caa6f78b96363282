// Package controller wires the playback components together and exposes
// the operations used by the OSC and HTTP surfaces.
package controller

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/osa030/raveforest/internal/app/clock"
	"github.com/osa030/raveforest/internal/app/filter"
	"github.com/osa030/raveforest/internal/app/notification"
	"github.com/osa030/raveforest/internal/app/playback"
	"github.com/osa030/raveforest/internal/app/registry"
	"github.com/osa030/raveforest/internal/app/stop"
	"github.com/osa030/raveforest/internal/infra/config"
	"github.com/osa030/raveforest/internal/infra/engine"
	"github.com/osa030/raveforest/internal/infra/feedback"
	"github.com/osa030/raveforest/internal/infra/metrics"
	"github.com/osa030/raveforest/internal/infra/samples"
)

// Controller owns the registry, the engine and the session supervisor.
type Controller struct {
	config *config.Config

	registry     *registry.Registry
	clock        *clock.Clock
	library      *samples.Library
	engine       engine.Engine
	notification *notification.Manager
	metrics      *metrics.Sink
	supervisor   *playback.Supervisor
	stopper      *stop.Coordinator

	mu        sync.RWMutex
	phase     Phase
	startedAt time.Time

	// Background work such as the sample watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// New creates a controller using the engine named in the configuration.
func New(cfg *config.Config) (*Controller, error) {
	lib := samples.NewLibrary()
	eng, err := engine.New(cfg.Engine, lib)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create engine")
	}
	return NewWithEngine(cfg, eng, lib)
}

// NewWithEngine creates a controller driving eng.
func NewWithEngine(cfg *config.Config, eng engine.Engine, lib *samples.Library) (*Controller, error) {
	policy, ok := registry.ParseEarlyStopPolicy(cfg.Playback.EarlyStop)
	if !ok {
		return nil, errors.Newf("unknown early stop policy: %s", cfg.Playback.EarlyStop)
	}
	detection, ok := playback.ParseStopDetection(cfg.Playback.StopDetection)
	if !ok {
		return nil, errors.Newf("unknown stop detection: %s", cfg.Playback.StopDetection)
	}
	clk, err := clock.New(cfg.Clock.BPM)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create clock")
	}
	if lib == nil {
		lib = samples.NewLibrary()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		config:       cfg,
		registry:     registry.New(policy),
		clock:        clk,
		library:      lib,
		engine:       eng,
		notification: notification.NewManager(),
		ctx:          ctx,
		cancel:       cancel,
	}

	c.metrics = metrics.New(c.registry.Len)
	c.notification.Subscribe(notification.LogSink{})
	c.notification.Subscribe(c.metrics)
	if cfg.Feedback.Addr != "" {
		sink, err := feedback.New(cfg.Feedback.Addr)
		if err != nil {
			cancel()
			c.notification.Close()
			return nil, errors.Wrap(err, "failed to create feedback sink")
		}
		c.notification.Subscribe(sink)
		zlog.Info().Msgf("controller: osc feedback enabled: addr=%s", sink.Addr())
	}

	chain, maxVoices, err := c.setupFilters()
	if err != nil {
		cancel()
		c.notification.Close()
		return nil, err
	}

	c.supervisor = playback.NewSupervisor(c.registry, eng, clk, chain, c.notification, playback.Config{
		Params:        cfg.PlaybackParams(),
		StopDetection: detection,
		MaxVoices:     maxVoices,
	})
	c.stopper = stop.NewCoordinator(c.registry, c.notification)
	return c, nil
}

// setupFilters builds the admission chain. The sample name filter is always on.
// It also returns the voice cap enforced when a session is claimed.
func (c *Controller) setupFilters() (*filter.Chain, int, error) {
	cfg := c.config
	chain := filter.NewChain()
	chain.Add(&filter.SampleNameFilter{})
	maxVoices := 0

	// SampleExistsFilter
	if cfg.IsFilterEnabled("sample_exists_filter") {
		chain.Add(filter.NewSampleExistsFilter(samples.Exists))
	}

	// MaxVoicesFilter
	if cfg.IsFilterEnabled("max_voices_filter") {
		f := filter.NewMaxVoicesFilter(c.registry)
		if err := f.ValidateConfig(cfg.FilterSettings("max_voices_filter")); err != nil {
			return nil, 0, errors.Wrap(err, "invalid max_voices_filter settings")
		}
		chain.Add(f)
		maxVoices = f.Limit()
	}

	// AllowlistFilter
	if cfg.IsFilterEnabled("allowlist_filter") {
		f := &filter.AllowlistFilter{}
		if err := f.ValidateConfig(cfg.FilterSettings("allowlist_filter")); err != nil {
			return nil, 0, errors.Wrap(err, "invalid allowlist_filter settings")
		}
		chain.Add(f)
	}

	for name := range cfg.Filters {
		if _, ok := filter.GetRegistered()[name]; !ok {
			zlog.Warn().Msgf("controller: unknown filter in config: %s", name)
		}
	}
	zlog.Info().Msgf("controller: filters: %v", chain.Names())
	return chain, maxVoices, nil
}

// Run prepares the sample library. It preloads samples and starts the
// directory watcher when configured.
func (c *Controller) Run(ctx context.Context) error {
	dir := c.config.Samples.Dir

	if c.config.Samples.Preload {
		n, err := c.library.Preload(dir)
		if err != nil {
			return errors.Wrap(err, "failed to preload samples")
		}
		zlog.Info().Msgf("controller: preloaded samples: count=%d dir=%s", n, dir)
	}

	if c.config.Samples.Watch {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.library.Watch(c.ctx, dir); err != nil {
				zlog.Error().Msgf("controller: sample watcher stopped: %v", err)
			}
		}()
	}

	c.setPhase(PhaseRunning)
	zlog.Info().Msgf("controller: ready: engine=%s bpm=%v stop_detection=%s early_stop=%s",
		c.engine.Name(), c.clock.BPM(), c.supervisor.Config().StopDetection, c.registry.Policy())
	return nil
}

// Start handles a start request received over OSC.
func (c *Controller) Start(ctx context.Context, name string) (playback.Outcome, error) {
	return c.supervisor.Start(ctx, name)
}

// StartFrom handles a start request from the given source.
func (c *Controller) StartFrom(ctx context.Context, name string, source filter.Source) (playback.Outcome, error) {
	return c.supervisor.StartFrom(ctx, name, source)
}

// Request handles a stop request.
func (c *Controller) Request(name string) stop.Outcome {
	return c.stopper.Request(name)
}

// Session is the status of one playing sample.
type Session struct {
	Sample    string    `json:"sample"`
	SessionID string    `json:"session_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// Status is a snapshot of the controller.
type Status struct {
	Phase         string    `json:"phase"`
	Engine        string    `json:"engine"`
	BPM           float64   `json:"bpm"`
	StopDetection string    `json:"stop_detection"`
	EarlyStop     string    `json:"early_stop"`
	Filters       []string  `json:"filters"`
	Sessions      []Session `json:"sessions"`
	CachedSamples int       `json:"cached_samples"`
	StartedAt     time.Time `json:"started_at"`
}

// Status returns the current playback state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	phase, startedAt := c.phase, c.startedAt
	c.mu.RUnlock()

	return Status{
		Phase:         phase.String(),
		Engine:        c.engine.Name(),
		BPM:           c.clock.BPM(),
		StopDetection: c.supervisor.Config().StopDetection.String(),
		EarlyStop:     c.registry.Policy().String(),
		Filters:       c.supervisor.Filters().Names(),
		Sessions: lo.Map(c.registry.Snapshot(), func(e registry.Entry, _ int) Session {
			return Session{
				Sample:    e.Name,
				SessionID: e.SessionID,
				State:     e.State.String(),
				StartedAt: e.StartedAt,
			}
		}),
		CachedSamples: c.library.Cached(),
		StartedAt:     startedAt,
	}
}

// Phase returns the lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p == PhaseRunning {
		c.startedAt = time.Now()
	}
	zlog.Info().Msgf("controller: phase changed: %s -> %s", c.phase, p)
	c.phase = p
}

// Samples lists the sample names available in the samples directory.
func (c *Controller) Samples() ([]string, error) {
	return samples.List(c.config.Samples.Dir)
}

// MetricsHandler returns the Prometheus handler.
func (c *Controller) MetricsHandler() http.Handler {
	return c.metrics.Handler()
}

// Subscribe adds a notification sink.
func (c *Controller) Subscribe(sink notification.Sink) string {
	return c.notification.Subscribe(sink)
}

// Wait blocks until every session has ended.
func (c *Controller) Wait() {
	c.supervisor.Wait()
}

// Shutdown fades out every session, then releases the engine.
func (c *Controller) Shutdown(ctx context.Context) error {
	var err error
	c.closeOnce.Do(func() {
		c.setPhase(PhaseShuttingDown)
		zlog.Info().Msgf("controller: shutting down: sessions=%d", c.registry.Len())
		err = c.supervisor.Shutdown(ctx)

		c.cancel()
		c.wg.Wait()
		c.notification.Close()

		if cerr := c.engine.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(cerr, "failed to close engine"))
		}
		c.setPhase(PhaseStopped)
	})
	return err
}
