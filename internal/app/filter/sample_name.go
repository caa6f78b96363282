package filter

import (
	"context"

	"github.com/osa030/raveforest/internal/domain/sample"
)

// SampleNameFilter rejects names that cannot be used as a sample key.
type SampleNameFilter struct{}

func (f *SampleNameFilter) Name() string {
	return "sample_name_filter"
}

func (f *SampleNameFilter) Description() string {
	return "Rejects empty names and names containing path separators"
}

func (f *SampleNameFilter) ReturnCodes() []string {
	return []string{"invalid_name"}
}

func (f *SampleNameFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *SampleNameFilter) AppliesTo(source Source) bool {
	return true
}

func (f *SampleNameFilter) Check(ctx context.Context, req StartRequest) Result {
	if err := sample.ValidateName(req.Sample); err != nil {
		return Reject("invalid_name")
	}
	return Accept()
}

func init() {
	Register("sample_name_filter", func() Filter {
		return &SampleNameFilter{}
	})
}
