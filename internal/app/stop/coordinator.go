// Package stop provides the stop coordinator that records stop requests.
package stop

import (
	"github.com/osa030/raveforest/internal/app/notification"
	"github.com/osa030/raveforest/internal/app/registry"
	"github.com/osa030/raveforest/internal/domain/sample"
	zlog "github.com/rs/zerolog/log"
)

// Outcome reports what a stop request did.
type Outcome = registry.StopOutcome

// Publisher receives coordinator events.
type Publisher interface {
	Publish(e notification.Event)
}

// Coordinator records stop requests in the registry. It never touches the
// audio engine: the playing session observes the request and fades out.
type Coordinator struct {
	registry  *registry.Registry
	publisher Publisher
}

// NewCoordinator creates a new stop coordinator. publisher may be nil.
func NewCoordinator(reg *registry.Registry, publisher Publisher) *Coordinator {
	return &Coordinator{
		registry:  reg,
		publisher: publisher,
	}
}

// Request records a stop request for the named sample.
func (c *Coordinator) Request(name string) Outcome {
	if err := sample.ValidateName(name); err != nil {
		zlog.Debug().Msgf("stop: ignoring request: name=%q err=%v", name, err)
		return registry.StopDropped
	}

	outcome := c.registry.MarkStopRequested(name)
	zlog.Debug().Msgf("stop: request handled: sample=%s outcome=%s", name, outcome)

	if c.publisher != nil {
		c.publisher.Publish(notification.Event{
			Type:   notification.EventStopRequested,
			Sample: name,
			Reason: outcome.String(),
		})
	}
	return outcome
}
