// Package feedback sends session state changes to an OSC receiver.
package feedback

import (
	"context"
	"net"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/hypebeast/go-osc/osc"

	"github.com/osa030/raveforest/internal/app/notification"
)

// Addresses of outbound messages.
const (
	AddressPlaying = "/playing"
	AddressStopped = "/stopped"
)

const reasonFailed = "failed"

// Sink forwards session events as OSC messages. It implements notification.Sink.
type Sink struct {
	addr   string
	client *osc.Client
}

// New creates a sink sending to addr (host:port).
func New(addr string) (*Sink, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid feedback address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return nil, errors.Newf("invalid feedback port %q", portStr)
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return &Sink{
		addr:   net.JoinHostPort(host, portStr),
		client: osc.NewClient(host, port),
	}, nil
}

func (s *Sink) Name() string {
	return "osc_feedback"
}

// Addr returns the target address.
func (s *Sink) Addr() string {
	return s.addr
}

// Send maps an event to its OSC message. Events without a message are ignored.
func (s *Sink) Send(ctx context.Context, e notification.Event) error {
	msg := Message(e)
	if msg == nil {
		return nil
	}
	if err := s.client.Send(msg); err != nil {
		return errors.Wrapf(err, "failed to send %s to %s", msg.Address, s.addr)
	}
	return nil
}

// Message returns the OSC message for an event, or nil.
func Message(e notification.Event) *osc.Message {
	switch e.Type {
	case notification.EventSessionStarted:
		return osc.NewMessage(AddressPlaying, e.Sample)
	case notification.EventSessionEnded:
		return osc.NewMessage(AddressStopped, e.Sample, e.Reason)
	case notification.EventSessionFailed:
		return osc.NewMessage(AddressStopped, e.Sample, reasonFailed)
	default:
		return nil
	}
}
