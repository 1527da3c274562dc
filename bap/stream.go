package bap

import (
	"fmt"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/sirupsen/logrus"
)

// StreamOps is the set of observer callbacks of a stream. Any field may be nil.
type StreamOps struct {
	Configured      func(s *Stream, pref *codec.QoSPreference)
	QoSSet          func(s *Stream)
	Enabled         func(s *Stream)
	MetadataUpdated func(s *Stream)
	Started         func(s *Stream)
	Stopped         func(s *Stream, reason uint8)
	Disabled        func(s *Stream)
	Released        func(s *Stream)
	Connected       func(s *Stream)
	Disconnected    func(s *Stream, reason uint8)
	Recv            func(s *Stream, info interfaces.RecvInfo, payload []byte)
	Sent            func(s *Stream)
}

// Stream is the application's handle on one audio stream. It owns nothing;
// the Endpoint it is attached to holds the protocol state.
type Stream struct {
	ep    *Endpoint
	ops   *StreamOps
	group iso.GroupKey

	// Codec is the configuration the stream was last attached with.
	Codec *codec.Config
	// QoS is the stream's requested QoS. It survives detach.
	QoS *codec.QoS
}

// NewStream creates an unattached stream reporting to ops.
func NewStream(ops *StreamOps) *Stream {
	return &Stream{ops: ops}
}

// Endpoint returns the attached endpoint, or nil.
func (s *Stream) Endpoint() *Endpoint { return s.ep }

// Group returns the unicast group or broadcast subgroup the stream belongs to.
func (s *Stream) Group() iso.GroupKey { return s.group }

// SetGroup records group membership. Controllers call it when the stream
// joins or leaves a group.
func (s *Stream) SetGroup(k iso.GroupKey) { s.group = k }

// SetOps replaces the observer callbacks.
func (s *Stream) SetOps(ops *StreamOps) { s.ops = ops }

// State returns the attached endpoint's state, or Idle.
func (s *Stream) State() State {
	if s.ep == nil {
		return StateIdle
	}
	return s.ep.state
}

// Attach links the stream to ep with codec configuration cfg. Attaching to
// the endpoint already linked only updates the codec. Neither side changes
// when the attach is rejected.
func (s *Stream) Attach(ep *Endpoint, cfg *codec.Config) error {
	if ep == nil {
		return fmt.Errorf("%w: nil endpoint", ErrInvalidArgument)
	}
	if s.ep == ep {
		s.Codec = cfg
		return nil
	}
	if s.ep != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.Attach",
			"current":  s.ep.String(),
			"endpoint": ep.String(),
		}).Error("Stream already attached to another endpoint")
		return fmt.Errorf("%w: %s", ErrStreamAttached, s.ep)
	}
	if ep.stream != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Stream.Attach",
			"endpoint": ep.String(),
		}).Error("Endpoint already holds another stream")
		return fmt.Errorf("%w: %s", ErrEndpointInUse, ep)
	}

	s.ep = ep
	ep.stream = s
	s.Codec = cfg
	return nil
}

// Detach clears both sides of the stream/endpoint link and drops the codec.
func (s *Stream) Detach() {
	if s.ep != nil {
		if s.ep.stream == s {
			s.ep.stream = nil
		}
		s.ep = nil
	}
	s.Codec = nil
}

// Send transmits one SDU. The attached endpoint must be streaming.
func (s *Stream) Send(payload []byte, seq uint16, ts uint32) error {
	ep := s.ep
	if ep == nil {
		return ErrNotAttached
	}
	if ep.state != StateStreaming {
		return fmt.Errorf("%w: %s is %s", ErrNotReady, ep, ep.state)
	}
	if ep.binding.IsZero() || ep.isos == nil {
		return fmt.Errorf("%w: %s has no ISO binding", ErrNotReady, ep)
	}
	return ep.isos.Send(ep.binding, ep, payload, seq, ts)
}

func (s *Stream) submit(req Request) error {
	if s.ep == nil {
		return ErrNotAttached
	}
	return s.ep.Submit(req)
}

// Enable enables the stream with the given metadata.
func (s *Stream) Enable(meta []codec.LTV) error {
	return s.submit(Enable{Meta: meta})
}

// UpdateMetadata replaces the metadata of an enabling or streaming stream.
func (s *Stream) UpdateMetadata(meta []codec.LTV) error {
	return s.submit(UpdateMetadata{Meta: meta})
}

// Start starts the stream.
func (s *Stream) Start() error {
	return s.submit(Start{})
}

// Disable disables the stream.
func (s *Stream) Disable() error {
	return s.submit(Disable{})
}

// Stop stops a disabling source stream.
func (s *Stream) Stop() error {
	return s.submit(Stop{})
}

// Release releases the stream. Releasing an unattached or idle stream is a no-op.
func (s *Stream) Release() error {
	if s.ep == nil {
		return nil
	}
	return s.ep.Submit(Release{})
}

func (s *Stream) notify(fn func(o *StreamOps)) {
	if s.ops != nil {
		fn(s.ops)
	}
}

// NotifyConfigured fires the Configured callback.
func (s *Stream) NotifyConfigured(pref *codec.QoSPreference) {
	s.notify(func(o *StreamOps) {
		if o.Configured != nil {
			o.Configured(s, pref)
		}
	})
}

// NotifyQoSSet fires the QoSSet callback.
func (s *Stream) NotifyQoSSet() {
	s.notify(func(o *StreamOps) {
		if o.QoSSet != nil {
			o.QoSSet(s)
		}
	})
}

// NotifyEnabled fires the Enabled callback.
func (s *Stream) NotifyEnabled() {
	s.notify(func(o *StreamOps) {
		if o.Enabled != nil {
			o.Enabled(s)
		}
	})
}

// NotifyMetadataUpdated fires the MetadataUpdated callback.
func (s *Stream) NotifyMetadataUpdated() {
	s.notify(func(o *StreamOps) {
		if o.MetadataUpdated != nil {
			o.MetadataUpdated(s)
		}
	})
}

// NotifyStarted fires the Started callback.
func (s *Stream) NotifyStarted() {
	s.notify(func(o *StreamOps) {
		if o.Started != nil {
			o.Started(s)
		}
	})
}

// NotifyStopped fires the Stopped callback.
func (s *Stream) NotifyStopped(reason uint8) {
	s.notify(func(o *StreamOps) {
		if o.Stopped != nil {
			o.Stopped(s, reason)
		}
	})
}

// NotifyDisabled fires the Disabled callback.
func (s *Stream) NotifyDisabled() {
	s.notify(func(o *StreamOps) {
		if o.Disabled != nil {
			o.Disabled(s)
		}
	})
}

// NotifyReleased fires the Released callback.
func (s *Stream) NotifyReleased() {
	s.notify(func(o *StreamOps) {
		if o.Released != nil {
			o.Released(s)
		}
	})
}
