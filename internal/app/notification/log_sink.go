package notification

import (
	"context"

	zlog "github.com/rs/zerolog/log"
)

// LogSink writes every event to the global logger.
type LogSink struct{}

func (LogSink) Name() string {
	return "log"
}

func (LogSink) Send(ctx context.Context, e Event) error {
	switch e.Type {
	case EventSessionFailed:
		zlog.Error().Msgf("session: %s: sample=%s session=%s err=%s", e.Type, e.Sample, e.SessionID, e.Reason)
	case EventSessionStarted, EventSessionEnded:
		zlog.Info().Msgf("session: %s: sample=%s session=%s beats=%v reason=%s", e.Type, e.Sample, e.SessionID, e.Beats, e.Reason)
	default:
		zlog.Debug().Msgf("session: %s: sample=%s session=%s reason=%s", e.Type, e.Sample, e.SessionID, e.Reason)
	}
	return nil
}
