package leaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/opd-ai/leaudio/broadcast"
	"github.com/opd-ai/leaudio/config"
	"github.com/opd-ai/leaudio/executor"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/unicast"
	"github.com/sirupsen/logrus"
)

// Version of the engine.
const Version = "0.1.0"

// defaultInboxDepth is the loop inbox size of a Stack.
const defaultInboxDepth = 64

var (
	// ErrNoGATT indicates New was called without a GATT client.
	ErrNoGATT = errors.New("gatt client is required")

	// ErrNoTransport indicates New was called without an ISO transport.
	ErrNoTransport = errors.New("iso transport is required")
)

// Stack is one LE Audio engine instance: a unicast client and a broadcast
// manager sharing the ISO bindings of one transport.
type Stack struct {
	options   *config.Options
	transport interfaces.ISOTransport
	isos      *iso.Pool
	unicast   *unicast.Client
	broadcast *broadcast.Manager
	loop      *executor.Loop
}

// New creates a Stack. A nil options uses config.FromEnv. The transport's
// listener is replaced by the stack's ISO pool.
func New(gatt interfaces.GATTClient, transport interfaces.ISOTransport, options *config.Options) (*Stack, error) {
	if gatt == nil {
		return nil, ErrNoGATT
	}
	if transport == nil {
		return nil, ErrNoTransport
	}
	if options == nil {
		options = config.FromEnv()
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	options.Apply()

	isos := iso.NewPool(options.ISOChannels, transport)
	s := &Stack{
		options:   options,
		transport: transport,
		isos:      isos,
		unicast:   unicast.NewClient(gatt, transport, isos, options),
		broadcast: broadcast.NewManager(transport, isos, options),
		loop:      executor.NewLoop("leaudio", defaultInboxDepth),
	}

	logrus.WithFields(logrus.Fields{
		"function":     "New",
		"version":      Version,
		"iso_channels": options.ISOChannels,
		"connections":  options.MaxConnections,
		"sources":      options.BroadcastSources,
	}).Info("Created LE Audio stack")

	return s, nil
}

// Options returns the options the stack was created with.
func (s *Stack) Options() *config.Options { return s.options }

// Unicast returns the unicast client.
func (s *Stack) Unicast() *unicast.Client { return s.unicast }

// Broadcast returns the broadcast source manager.
func (s *Stack) Broadcast() *broadcast.Manager { return s.broadcast }

// ISO returns the shared pool of ISO bindings.
func (s *Stack) ISO() *iso.Pool { return s.isos }

// Loop returns the execution loop of the stack.
func (s *Stack) Loop() *executor.Loop { return s.loop }

// Run runs the stack's loop until ctx is done.
func (s *Stack) Run(ctx context.Context) error {
	return s.loop.Run(ctx)
}

// Do runs fn on the stack's loop and waits for its result.
func (s *Stack) Do(ctx context.Context, fn func(s *Stack) error) error {
	return s.loop.Do(ctx, func() error { return fn(s) })
}

// Post queues fn on the stack's loop without waiting.
func (s *Stack) Post(fn func(s *Stack)) error {
	return s.loop.Post(func() { fn(s) })
}

// Disconnected tells the stack that the ACL connection conn is gone. Its
// endpoints are forced to Idle and their streams released.
func (s *Stack) Disconnected(conn interfaces.ConnID) error {
	err := s.unicast.Disconnected(conn)
	if err != nil && !errors.Is(err, unicast.ErrUnknownConnection) {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Stack.Disconnected",
		"conn":     conn.String(),
	}).Info("Connection removed from stack")

	return nil
}
