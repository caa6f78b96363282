package filter

import (
	"context"

	"github.com/samber/lo"
)

// Chain executes filters in sequence.
type Chain struct {
	filters []Filter
}

// NewChain creates a new filter chain.
func NewChain() *Chain {
	return &Chain{
		filters: make([]Filter, 0),
	}
}

// Add adds a filter to the chain.
func (c *Chain) Add(f Filter) {
	c.filters = append(c.filters, f)
}

// Execute runs all filters in sequence.
// Returns immediately if any filter rejects the request.
// Filters are only applied if they declare they apply to the request source.
func (c *Chain) Execute(ctx context.Context, req StartRequest) Result {
	for _, f := range c.filters {
		if !f.AppliesTo(req.Source) {
			continue
		}

		result := f.Check(ctx, req)
		if !result.Accepted {
			return result
		}
	}
	return Accept()
}

// Filters returns all filters in the chain.
func (c *Chain) Filters() []Filter {
	return c.filters
}

// Names returns the names of the filters in chain order.
func (c *Chain) Names() []string {
	return lo.Map(c.filters, func(f Filter, _ int) string {
		return f.Name()
	})
}
