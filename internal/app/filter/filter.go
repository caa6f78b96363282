// Package filter provides the filter chain for start request admission.
package filter

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Source identifies where a start request came from.
type Source int

const (
	SourceOSC  Source = iota // OSC start message
	SourceHTTP               // Manual trigger through the status API
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceOSC:
		return "osc"
	case SourceHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// StartRequest represents a start request to be validated.
type StartRequest struct {
	Sample string // Sample name as received
	Dir    string // Samples directory
	Source Source
}

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "invalid_name", "sample_not_found", "max_voices"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for start request filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates the filter configuration.
	ValidateConfig(settings map[string]any) error
	// AppliesTo returns true if this filter should be applied to requests from the given source.
	AppliesTo(source Source) bool
	// Check performs the filter check.
	Check(ctx context.Context, req StartRequest) Result
}

// registry holds registered filter factories.
var registry = make(map[string]func() Filter)

// Register registers a filter factory.
func Register(name string, factory func() Filter) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]func() Filter {
	return registry
}

// RegisteredNames returns the names of all registered filters, sorted.
func RegisteredNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// decodeConfig decodes filter settings into config, applies defaults and
// validates the result.
func decodeConfig(settings map[string]any, config any) error {
	// Decode map[string]any to struct using mapstructure
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  config,
		TagName: "mapstructure",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}

	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	// Set defaults
	if err := defaults.Set(config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	// Validate using validator
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
