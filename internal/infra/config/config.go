// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/raveforest/internal/domain/sample"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	OSC      OSCConfig               `yaml:"osc"`
	Clock    ClockConfig             `yaml:"clock"`
	Playback PlaybackConfig          `yaml:"playback"`
	Samples  SamplesConfig           `yaml:"samples"`
	Engine   EngineConfig            `yaml:"engine"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Feedback FeedbackConfig          `yaml:"feedback"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	OSCAddr            string      `yaml:"osc_addr" default:":4560" validate:"required"`
	HTTPAddr           string      `yaml:"http_addr"` // empty disables the status API
	ShutdownTimeoutSec int         `yaml:"shutdown_timeout_sec" default:"5" validate:"gte=0,lte=60"`
	Hooks              HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// OSCConfig represents the inbound OSC addresses.
type OSCConfig struct {
	StartAddresses []string `yaml:"start_addresses" default:"[\"/start\"]" validate:"min=1,dive,startswith=/"`
	StopAddresses  []string `yaml:"stop_addresses" default:"[\"/stop\"]" validate:"min=1,dive,startswith=/"`
	QueueSize      int      `yaml:"queue_size" default:"64" validate:"gte=1,lte=4096"`
}

// ClockConfig represents the beat clock configuration.
type ClockConfig struct {
	BPM float64 `yaml:"bpm" default:"60" validate:"gt=0,lte=999"`
}

// PlaybackConfig represents the fixed parameters of every playback session.
type PlaybackConfig struct {
	Start         float64 `yaml:"start" validate:"gte=0,lt=1"`
	Finish        float64 `yaml:"finish" default:"1" validate:"gt=0,lte=1"`
	Amp           float64 `yaml:"amp" default:"1" validate:"gt=0,lte=5"`
	Rate          float64 `yaml:"rate" default:"1" validate:"gt=0,lte=4"`
	Attack        float64 `yaml:"attack" default:"0.3" validate:"gte=0,lte=16"`
	Release       float64 `yaml:"release" default:"0.3" validate:"gte=0,lte=16"`
	FadeBeats     float64 `yaml:"fade_beats" default:"1" validate:"gt=0,lte=16"`
	StopDetection string  `yaml:"stop_detection" default:"poll" validate:"oneof=poll signal"`
	EarlyStop     string  `yaml:"early_stop" default:"discard" validate:"oneof=discard retain"`
	BeatStretch   bool    `yaml:"beat_stretch"`
	Loop          bool    `yaml:"loop"`
	FreeOnStop    bool    `yaml:"free_on_stop"`
}

// SamplesConfig represents the sample library configuration.
type SamplesConfig struct {
	Dir     string `yaml:"dir" validate:"required"`
	Preload bool   `yaml:"preload"`
	Watch   bool   `yaml:"watch"`
}

// EngineConfig represents the audio engine configuration.
type EngineConfig struct {
	Type     string         `yaml:"type" default:"beep" validate:"oneof=beep null"`
	Settings map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// FeedbackConfig represents the outbound OSC notification target.
type FeedbackConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for deployment-specific fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	return Parse(data)
}

// Parse parses configuration from YAML data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SAMPLES_DIR"); v != "" {
		c.Samples.Dir = v
	}
	if v := os.Getenv("OSC_ADDR"); v != "" {
		c.Server.OSCAddr = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("FEEDBACK_ADDR"); v != "" {
		c.Feedback.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Playback.Start >= c.Playback.Finish {
		return errors.Newf("playback start (%v) must be before finish (%v)", c.Playback.Start, c.Playback.Finish)
	}

	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// FilterSettings returns the settings of a filter.
func (c *Config) FilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}

// PlaybackParams returns the session parameters described by the configuration.
func (c *Config) PlaybackParams() sample.Params {
	p := c.Playback
	return sample.Params{
		Dir:         c.Samples.Dir,
		Start:       p.Start,
		Finish:      p.Finish,
		Amp:         p.Amp,
		Rate:        p.Rate,
		Attack:      p.Attack,
		Release:     p.Release,
		FadeBeats:   p.FadeBeats,
		BeatStretch: p.BeatStretch,
		Loop:        p.Loop,
		FreeOnStop:  p.FreeOnStop,
	}
}

// ShutdownTimeout returns the time allowed for sessions to fade out on shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}
