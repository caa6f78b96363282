package engine

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/config"
	"github.com/osa030/raveforest/internal/infra/samples"
	"github.com/osa030/raveforest/internal/infra/samples/samplestest"
)

func TestNullEngine(t *testing.T) {
	dir := t.TempDir()
	samplestest.WriteWAV(t, dir, "bird.wav", 8000, 16000)
	e := NewNullEngine(NullConfig{DefaultDuration: 4 * time.Second}, samples.NewLibrary())
	ctx := context.Background()

	t.Run("duration from file", func(t *testing.T) {
		d, err := e.SampleDuration(sample.Ref{Dir: dir, Name: "bird"}, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, d)
	})

	t.Run("default duration for unreadable file", func(t *testing.T) {
		d, err := e.SampleDuration(sample.Ref{Dir: dir, Name: "ghost"}, 0, 0.5)
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, d)
	})

	t.Run("invalid name", func(t *testing.T) {
		_, err := e.SampleDuration(sample.Ref{Dir: dir, Name: "../etc"}, 0, 1)
		assert.True(t, errors.Is(err, sample.ErrInvalidName))
	})

	t.Run("voice lifecycle", func(t *testing.T) {
		id, err := e.StartVoice(ctx, Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}, Finish: 1, Amp: 1, Rate: 1})
		require.NoError(t, err)
		assert.Equal(t, 1, e.ActiveVoices())

		require.NoError(t, e.SetVoiceAmplitude(ctx, id, 0.5, 0))
		assert.Equal(t, 1, e.ActiveVoices())

		require.NoError(t, e.SetVoiceAmplitude(ctx, id, 0, time.Second))
		assert.Equal(t, 0, e.ActiveVoices())

		err = e.SetVoiceAmplitude(ctx, id, 0, time.Second)
		assert.True(t, errors.Is(err, ErrUnknownVoice))
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := e.StartVoice(cctx, Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNullEngine_VoicesPlayOut(t *testing.T) {
	dir := t.TempDir()
	samplestest.WriteWAV(t, dir, "bird.wav", 8000, 16000) // 2s
	e := NewNullEngine(NullConfig{DefaultDuration: 4 * time.Second}, samples.NewLibrary())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	e.now = func() time.Time { return now }
	ctx := context.Background()

	tests := []struct {
		name    string
		voice   Voice
		elapsed time.Duration
		active  bool
	}{
		{"before the end", Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}, Finish: 1, Rate: 1}, 1900 * time.Millisecond, true},
		{"at the end", Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}, Finish: 1, Rate: 1}, 2 * time.Second, false},
		{"double rate", Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}, Finish: 1, Rate: 2}, 1100 * time.Millisecond, false},
		{"reversed half rate", Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}, Finish: 1, Rate: -0.5}, 3 * time.Second, true},
		{"partial span", Voice{Sample: sample.Ref{Dir: dir, Name: "bird"}, Start: 0.5, Finish: 1, Rate: 1}, 1100 * time.Millisecond, false},
		{"default duration", Voice{Sample: sample.Ref{Dir: dir, Name: "ghost"}, Finish: 1, Rate: 1}, 3 * time.Second, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = base
			id, err := e.StartVoice(ctx, tt.voice)
			require.NoError(t, err)
			assert.Equal(t, 1, e.ActiveVoices())

			now = base.Add(tt.elapsed)
			if tt.active {
				assert.Equal(t, 1, e.ActiveVoices())
				require.NoError(t, e.SetVoiceAmplitude(ctx, id, 0, 0))
			} else {
				assert.Equal(t, 0, e.ActiveVoices())
				err := e.SetVoiceAmplitude(ctx, id, 0, time.Second)
				assert.True(t, errors.Is(err, ErrUnknownVoice))
			}
			assert.Equal(t, 0, e.ActiveVoices())
		})
	}
}

func TestNullEngine_LoopingDoesNotLeak(t *testing.T) {
	e := NewNullEngine(NullConfig{DefaultDuration: time.Second}, samples.NewLibrary())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }
	v := Voice{Sample: sample.Ref{Dir: t.TempDir(), Name: "loop"}, Finish: 1, Rate: 1}

	for i := 0; i < 100; i++ {
		_, err := e.StartVoice(context.Background(), v)
		require.NoError(t, err)
		now = now.Add(time.Second)
	}
	assert.Equal(t, 0, e.ActiveVoices())
	e.mu.Lock()
	assert.Empty(t, e.voices)
	e.mu.Unlock()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EngineConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "null with defaults",
			cfg:      config.EngineConfig{Type: "null"},
			wantName: "null",
		},
		{
			name: "null with duration string",
			cfg: config.EngineConfig{Type: "null", Settings: map[string]any{
				"default_duration": "8s",
			}},
			wantName: "null",
		},
		{
			name: "null with invalid duration",
			cfg: config.EngineConfig{Type: "null", Settings: map[string]any{
				"default_duration": "soon",
			}},
			wantErr: true,
		},
		{
			name: "beep with invalid sample rate",
			cfg: config.EngineConfig{Type: "beep", Settings: map[string]any{
				"sample_rate": 100,
			}},
			wantErr: true,
		},
		{
			name:    "unsupported type",
			cfg:     config.EngineConfig{Type: "scsynth"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, samples.NewLibrary())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, e.Name())
		})
	}
}

func TestDecodeSettings(t *testing.T) {
	var nc NullConfig
	require.NoError(t, decodeSettings(map[string]any{"default_duration": "8s"}, &nc))
	assert.Equal(t, 8*time.Second, nc.DefaultDuration)

	var bc BeepConfig
	require.NoError(t, decodeSettings(nil, &bc))
	assert.Equal(t, BeepConfig{SampleRate: 44100, BufferMs: 100, Quality: 4}, bc)
}
