package filter

import (
	"context"

	zlog "github.com/rs/zerolog/log"
)

// CodeMaxVoices is returned when the voice cap is reached.
const CodeMaxVoices = "max_voices"

// MaxVoicesConfig represents the configuration for MaxVoicesFilter.
type MaxVoicesConfig struct {
	MaxVoices int `yaml:"max_voices" mapstructure:"max_voices" default:"8" validate:"gte=1,lte=256"`
}

// SessionCounter reports the number of live sessions.
type SessionCounter interface {
	Len() int
}

// MaxVoicesFilter caps the number of samples playing at once.
type MaxVoicesFilter struct {
	counter SessionCounter
	config  *MaxVoicesConfig
}

// NewMaxVoicesFilter creates a new max voices filter.
func NewMaxVoicesFilter(counter SessionCounter) *MaxVoicesFilter {
	return &MaxVoicesFilter{counter: counter}
}

func (f *MaxVoicesFilter) Name() string {
	return "max_voices_filter"
}

func (f *MaxVoicesFilter) Description() string {
	return "Rejects start requests while the configured number of samples are playing"
}

func (f *MaxVoicesFilter) ReturnCodes() []string {
	return []string{CodeMaxVoices}
}

func (f *MaxVoicesFilter) ValidateConfig(settings map[string]any) error {
	var config MaxVoicesConfig
	if err := decodeConfig(settings, &config); err != nil {
		return err
	}
	f.config = &config
	zlog.Info().Msgf("max voices filter config: %+v", config)
	return nil
}

// Limit returns the configured cap, or 0 before configuration.
func (f *MaxVoicesFilter) Limit() int {
	if f.config == nil {
		return 0
	}
	return f.config.MaxVoices
}

func (f *MaxVoicesFilter) AppliesTo(source Source) bool {
	return true
}

func (f *MaxVoicesFilter) Check(ctx context.Context, req StartRequest) Result {
	// If config or counter is not set, accept all requests
	if f.config == nil || f.counter == nil {
		return Accept()
	}

	if f.counter.Len() >= f.config.MaxVoices {
		return Reject(CodeMaxVoices)
	}
	return Accept()
}

func init() {
	Register("max_voices_filter", func() Filter {
		return &MaxVoicesFilter{}
	})
}
