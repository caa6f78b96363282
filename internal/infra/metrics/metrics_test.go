package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/raveforest/internal/app/notification"
)

func TestSink_Send(t *testing.T) {
	active := 2
	s := New(func() int { return active })
	ctx := context.Background()

	events := []notification.Event{
		{Type: notification.EventSessionStarted, Sample: "bird", Beats: 4},
		{Type: notification.EventSessionStarted, Sample: "traffic", Beats: 16},
		{Type: notification.EventAlreadyPlaying, Sample: "bird"},
		{Type: notification.EventSessionRejected, Sample: "x", Reason: "invalid_name"},
		{Type: notification.EventSessionRejected, Sample: "y", Reason: "max_voices"},
		{Type: notification.EventStopRequested, Sample: "bird", Reason: "recorded"},
		{Type: notification.EventStopRequested, Sample: "bird", Reason: "duplicate"},
		{Type: notification.EventSessionLooped, Sample: "traffic"},
		{Type: notification.EventSessionEnded, Sample: "bird", Reason: notification.ReasonStopped},
		{Type: notification.EventSessionFailed, Sample: "pigs"},
	}
	for _, e := range events {
		require.NoError(t, s.Send(ctx, e))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(s.startRequests.WithLabelValues("started")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.startRequests.WithLabelValues("already_playing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.startRequests.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.rejections.WithLabelValues("max_voices")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.stopRequests.WithLabelValues("duplicate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.sessionsEnded.WithLabelValues("stopped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.failures))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.loops))
	assert.Equal(t, 1, testutil.CollectAndCount(s.sessionBeats), "one histogram series")
	count, sum := histogramSamples(t, s, "raveforest_session_length_beats")
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, 20.0, sum)

	expected := `
# HELP raveforest_active_sessions Number of samples currently playing.
# TYPE raveforest_active_sessions gauge
raveforest_active_sessions 2
`
	assert.NoError(t, testutil.GatherAndCompare(s.Registry(), strings.NewReader(expected), "raveforest_active_sessions"))

	active = 0
	expected = strings.Replace(expected, "raveforest_active_sessions 2", "raveforest_active_sessions 0", 1)
	assert.NoError(t, testutil.GatherAndCompare(s.Registry(), strings.NewReader(expected), "raveforest_active_sessions"))
}

func TestSink_SessionBeats(t *testing.T) {
	tests := []struct {
		name      string
		beats     []float64
		wantCount uint64
		wantSum   float64
	}{
		{name: "none", wantCount: 0, wantSum: 0},
		{name: "one", beats: []float64{8}, wantCount: 1, wantSum: 8},
		{name: "several", beats: []float64{1, 4, 4, 600}, wantCount: 4, wantSum: 609},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(func() int { return 0 })
			for _, b := range tt.beats {
				require.NoError(t, s.Send(context.Background(), notification.Event{Type: notification.EventSessionStarted, Beats: b}))
			}
			count, sum := histogramSamples(t, s, "raveforest_session_length_beats")
			assert.Equal(t, tt.wantCount, count)
			assert.Equal(t, tt.wantSum, sum)
		})
	}
}

func histogramSamples(t *testing.T, s *Sink, name string) (uint64, float64) {
	t.Helper()
	families, err := s.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		require.Len(t, f.GetMetric(), 1)
		h := f.GetMetric()[0].GetHistogram()
		return h.GetSampleCount(), h.GetSampleSum()
	}
	t.Fatalf("metric family %s not gathered", name)
	return 0, 0
}

func TestSink_Handler(t *testing.T) {
	s := New(func() int { return 1 })
	require.NoError(t, s.Send(context.Background(), notification.Event{Type: notification.EventSessionFailed}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "raveforest_session_failures_total 1")
	assert.Contains(t, rec.Body.String(), "raveforest_active_sessions 1")
	assert.Equal(t, "metrics", s.Name())
}
