package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/app/clock"
	"github.com/osa030/raveforest/internal/app/notification"
	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/engine"
)

// engineCallTimeout bounds engine calls made after the session context is done.
const engineCallTimeout = 2 * time.Second

// session is the state of one playback session. It is owned by the
// goroutine running it.
type session struct {
	name   string
	id     string
	ref    sample.Ref
	params sample.Params

	voice  engine.VoiceID
	beats  int // quantized length of one pass
	passes int
	faded  bool

	fadeEnds time.Time // when the fade ramp finishes in the engine
}

// run plays the session and clears its registry entry however it ends.
// A stopped session clears its entry as soon as the fade is issued; the
// engine carries out the ramp.
func (s *Supervisor) run(ss *session) {
	defer s.wg.Done()

	reason, err := s.play(ss)
	if err != nil {
		s.registry.Clear(ss.name, ss.id)
		zlog.Error().Msgf("playback: session failed: sample=%s session=%s err=%v", ss.name, ss.id, err)
		s.publish(notification.Event{
			Type:      notification.EventSessionFailed,
			Sample:    ss.name,
			SessionID: ss.id,
			Reason:    err.Error(),
		})
		return
	}

	s.registry.Clear(ss.name, ss.id)
	zlog.Debug().Msgf("playback: session ended: sample=%s session=%s reason=%s passes=%d", ss.name, ss.id, reason, ss.passes)
	s.publish(notification.Event{
		Type:      notification.EventSessionEnded,
		Sample:    ss.name,
		SessionID: ss.id,
		Reason:    reason,
		Beats:     float64(ss.beats),
	})

	if ss.params.FreeOnStop && reason != notification.ReasonCompleted {
		if err := s.engine.FreeSample(ss.ref); err != nil {
			zlog.Warn().Msgf("playback: failed to free sample: sample=%s err=%v", ss.name, err)
		}
	}

	// On shutdown the engine is closed once every session returns, so hold
	// until the ramp has played out.
	if reason == notification.ReasonShutdown {
		if wait := time.Until(ss.fadeEnds); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			<-timer.C
		}
	}
}

// play starts the voice and waits for a stop with the configured strategy.
// It returns the end reason.
func (s *Supervisor) play(ss *session) (string, error) {
	if err := s.startVoice(s.ctx, ss); err != nil {
		if s.ctx.Err() != nil {
			return notification.ReasonShutdown, nil
		}
		return "", err
	}

	switch s.config.StopDetection {
	case StopDetectionSignal:
		return s.waitSignal(ss)
	default:
		return s.poll(ss)
	}
}

// startVoice measures the sample, quantizes its length and starts a voice
// at full amplitude.
func (s *Supervisor) startVoice(ctx context.Context, ss *session) error {
	p := ss.params

	d, err := s.engine.SampleDuration(ss.ref, p.Start, p.Finish)
	if err != nil {
		return errors.Wrap(err, "failed to get sample duration")
	}

	rate := p.Rate
	if rate <= 0 {
		rate = 1
	}
	natural := time.Duration(float64(d) / rate)
	ss.beats = clock.Quantize(s.clock.Beats(natural))

	if p.BeatStretch && natural > 0 {
		// Play the pass in exactly the quantized number of beats
		target := s.clock.Duration(float64(ss.beats))
		rate *= float64(natural) / float64(target)
	}

	id, err := s.engine.StartVoice(ctx, engine.Voice{
		Sample:  ss.ref,
		Start:   p.Start,
		Finish:  p.Finish,
		Amp:     p.Amp,
		Rate:    rate,
		Attack:  s.clock.Duration(p.Attack),
		Release: s.clock.Duration(p.Release),
	})
	if err != nil {
		return errors.Wrap(err, "failed to start voice")
	}
	ss.voice = id
	ss.passes++

	eventType := notification.EventSessionStarted
	if ss.passes > 1 {
		eventType = notification.EventSessionLooped
	}
	zlog.Debug().Msgf("playback: voice started: sample=%s session=%s voice=%s beats=%d rate=%.3f pass=%d",
		ss.name, ss.id, id, ss.beats, rate, ss.passes)
	s.publish(notification.Event{
		Type:      eventType,
		Sample:    ss.name,
		SessionID: ss.id,
		Beats:     float64(ss.beats),
	})
	return nil
}

// poll checks for a stop request once per beat. Without a stop the session
// ends, or loops, when the quantized length has elapsed.
func (s *Supervisor) poll(ss *session) (string, error) {
	for {
		for beat := 0; beat < ss.beats; beat++ {
			if err := s.clock.Wait(s.ctx, 1); err != nil {
				return s.fadeOut(ss, notification.ReasonShutdown)
			}
			if s.registry.ConsumeStopRequest(ss.name) {
				return s.fadeOut(ss, notification.ReasonStopped)
			}
		}

		if !ss.params.Loop {
			return notification.ReasonCompleted, nil
		}
		if err := s.startVoice(s.ctx, ss); err != nil {
			if s.ctx.Err() != nil {
				return notification.ReasonShutdown, nil
			}
			return "", err
		}
	}
}

// waitSignal blocks until the entry's stop signal fires. The session holds
// its entry after the natural end, restarting the voice when looping.
func (s *Supervisor) waitSignal(ss *session) (string, error) {
	stop := s.registry.StopSignal(ss.name)

	for {
		var (
			timer  *time.Timer
			passed <-chan time.Time
		)
		if ss.params.Loop {
			timer = time.NewTimer(s.clock.Duration(float64(ss.beats)))
			passed = timer.C
		}

		select {
		case <-stop:
			if timer != nil {
				timer.Stop()
			}
			s.registry.ConsumeStopRequest(ss.name)
			return s.fadeOut(ss, notification.ReasonStopped)

		case <-s.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return s.fadeOut(ss, notification.ReasonShutdown)

		case <-passed:
			if err := s.startVoice(s.ctx, ss); err != nil {
				if s.ctx.Err() != nil {
					return notification.ReasonShutdown, nil
				}
				return "", err
			}
		}
	}
}

// fadeOut starts the ramp to silence without waiting for it.
// A session fades at most once.
func (s *Supervisor) fadeOut(ss *session, reason string) (string, error) {
	if ss.faded {
		return reason, nil
	}
	ss.faded = true

	ramp := s.clock.Duration(ss.params.FadeBeats)

	// The session context may already be done on shutdown
	ctx, cancel := context.WithTimeout(context.Background(), engineCallTimeout)
	defer cancel()
	if err := s.engine.SetVoiceAmplitude(ctx, ss.voice, 0, ramp); err != nil {
		if errors.Is(err, engine.ErrUnknownVoice) {
			// The voice already reached its natural end
			return reason, nil
		}
		return "", errors.Wrap(err, "failed to fade out voice")
	}
	ss.fadeEnds = time.Now().Add(ramp)

	s.publish(notification.Event{
		Type:      notification.EventFadeStarted,
		Sample:    ss.name,
		SessionID: ss.id,
		Reason:    reason,
		Beats:     ss.params.FadeBeats,
	})
	return reason, nil
}
