// Package metrics provides Prometheus collectors fed by session events.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/raveforest/internal/app/notification"
)

const namespace = "raveforest"

// Sink counts session events. It implements notification.Sink.
type Sink struct {
	registry *prometheus.Registry

	startRequests *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	stopRequests  *prometheus.CounterVec
	sessionsEnded *prometheus.CounterVec
	failures      prometheus.Counter
	loops         prometheus.Counter
	sessionBeats  prometheus.Histogram
}

// New creates a sink with its own registry. active reports the number of
// live sessions at scrape time.
func New(active func() int) *Sink {
	s := &Sink{
		registry: prometheus.NewRegistry(),
		startRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "start_requests_total",
				Help:      "Count of start requests by result.",
			},
			[]string{"result"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "start_rejections_total",
				Help:      "Count of start requests rejected by a filter, by code.",
			},
			[]string{"code"},
		),
		stopRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stop_requests_total",
				Help:      "Count of stop requests by outcome.",
			},
			[]string{"outcome"},
		),
		sessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_ended_total",
				Help:      "Count of sessions that cleared their entry, by reason.",
			},
			[]string{"reason"},
		),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_failures_total",
			Help:      "Count of sessions ended by an engine failure.",
		}),
		loops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_loops_total",
			Help:      "Count of voices restarted by looping sessions.",
		}),
		sessionBeats: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_length_beats",
			Help:      "Quantized length of started sessions in beats.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}

	s.registry.MustRegister(
		s.startRequests,
		s.rejections,
		s.stopRequests,
		s.sessionsEnded,
		s.failures,
		s.loops,
		s.sessionBeats,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of samples currently playing.",
		}, func() float64 {
			return float64(active())
		}),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// Registry returns the registry holding the collectors.
func (s *Sink) Registry() *prometheus.Registry {
	return s.registry
}

// Handler returns the HTTP handler exposing the collectors.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

func (s *Sink) Name() string {
	return "metrics"
}

func (s *Sink) Send(ctx context.Context, e notification.Event) error {
	switch e.Type {
	case notification.EventSessionStarted:
		s.startRequests.WithLabelValues("started").Inc()
		s.sessionBeats.Observe(e.Beats)
	case notification.EventAlreadyPlaying:
		s.startRequests.WithLabelValues("already_playing").Inc()
	case notification.EventSessionRejected:
		s.startRequests.WithLabelValues("rejected").Inc()
		s.rejections.WithLabelValues(e.Reason).Inc()
	case notification.EventStopRequested:
		s.stopRequests.WithLabelValues(e.Reason).Inc()
	case notification.EventSessionLooped:
		s.loops.Inc()
	case notification.EventSessionEnded:
		s.sessionsEnded.WithLabelValues(e.Reason).Inc()
	case notification.EventSessionFailed:
		s.failures.Inc()
	}
	return nil
}
