package filter

import (
	"context"

	"github.com/osa030/raveforest/internal/domain/sample"
	"github.com/osa030/raveforest/internal/infra/samples"
)

// SampleExistsFilter checks that the sample file exists before a session is
// spawned for it.
type SampleExistsFilter struct {
	exists func(sample.Ref) bool
}

// NewSampleExistsFilter creates a new sample exists filter.
func NewSampleExistsFilter(exists func(sample.Ref) bool) *SampleExistsFilter {
	return &SampleExistsFilter{exists: exists}
}

func (f *SampleExistsFilter) Name() string {
	return "sample_exists_filter"
}

func (f *SampleExistsFilter) Description() string {
	return "Checks if the sample file exists in the samples directory"
}

func (f *SampleExistsFilter) ReturnCodes() []string {
	return []string{"sample_not_found"}
}

func (f *SampleExistsFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *SampleExistsFilter) AppliesTo(source Source) bool {
	return true
}

func (f *SampleExistsFilter) Check(ctx context.Context, req StartRequest) Result {
	if !f.exists(sample.Ref{Dir: req.Dir, Name: req.Sample}) {
		return Reject("sample_not_found")
	}
	return Accept()
}

func init() {
	Register("sample_exists_filter", func() Filter {
		return NewSampleExistsFilter(samples.Exists)
	})
}
