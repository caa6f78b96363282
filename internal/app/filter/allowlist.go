package filter

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// AllowlistConfig represents the configuration for AllowlistFilter.
type AllowlistConfig struct {
	Names []string `yaml:"names" mapstructure:"names" validate:"min=1,dive,required"`
}

// AllowlistFilter only admits the listed samples. Names match with or
// without their file extension.
type AllowlistFilter struct {
	allowed map[string]struct{}
}

func (f *AllowlistFilter) Name() string {
	return "allowlist_filter"
}

func (f *AllowlistFilter) Description() string {
	return "Only admits start requests for the listed samples (OSC requests only)"
}

func (f *AllowlistFilter) ReturnCodes() []string {
	return []string{"not_allowed"}
}

func (f *AllowlistFilter) ValidateConfig(settings map[string]any) error {
	var config AllowlistConfig
	if err := decodeConfig(settings, &config); err != nil {
		return err
	}
	if len(lo.Uniq(config.Names)) != len(config.Names) {
		return errors.New("names must be unique")
	}

	f.allowed = lo.SliceToMap(config.Names, func(name string) (string, struct{}) {
		return stripExt(name), struct{}{}
	})
	zlog.Info().Msgf("allowlist filter config: %+v", config)
	return nil
}

func (f *AllowlistFilter) AppliesTo(source Source) bool {
	// Manual triggers from the status API bypass the allowlist
	return source == SourceOSC
}

func (f *AllowlistFilter) Check(ctx context.Context, req StartRequest) Result {
	if f.allowed == nil {
		return Accept()
	}
	if _, ok := f.allowed[stripExt(req.Sample)]; !ok {
		return Reject("not_allowed")
	}
	return Accept()
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func init() {
	Register("allowlist_filter", func() Filter {
		return &AllowlistFilter{}
	})
}
