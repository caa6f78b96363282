package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/raveforest/internal/infra/config"
	"github.com/osa030/raveforest/internal/infra/samples"
)

// New creates the engine selected by the configuration.
func New(cfg config.EngineConfig, lib *samples.Library) (Engine, error) {
	zlog.Debug().Msgf("creating engine: type=%s settings=%+v", cfg.Type, cfg.Settings)

	switch cfg.Type {
	case "beep":
		var bc BeepConfig
		if err := decodeSettings(cfg.Settings, &bc); err != nil {
			return nil, errors.Wrap(err, "invalid beep engine settings")
		}
		if !AudioAvailable {
			return nil, errors.Wrap(ErrAudioUnavailable, "use the null engine")
		}
		zlog.Info().Msgf("engine: beep: %+v", bc)
		return NewBeepEngine(bc, lib), nil

	case "null":
		var nc NullConfig
		if err := decodeSettings(cfg.Settings, &nc); err != nil {
			return nil, errors.Wrap(err, "invalid null engine settings")
		}
		zlog.Info().Msgf("engine: null: %+v", nc)
		return NewNullEngine(nc, lib), nil

	default:
		return nil, errors.Wrapf(ErrUnsupportedEngine, "%s", cfg.Type)
	}
}

// decodeSettings decodes a settings map into result, then applies defaults
// and validation tags.
func decodeSettings(settings map[string]any, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           result,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(result); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(result); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
