package bap

import (
	"fmt"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/pool"
	"github.com/sirupsen/logrus"
)

// Controller drives the endpoints of one kind. The unicast client and the
// broadcast source manager implement it.
type Controller interface {
	// Submit issues a request that already passed the endpoint's state check.
	Submit(ep *Endpoint, req Request) error

	// BindingFor returns the ISO binding ep should own once QoS configured.
	BindingFor(ep *Endpoint) (pool.Handle, bool)

	ISOConnected(ep *Endpoint)
	ISODisconnected(ep *Endpoint, reason uint8)
}

// Endpoint is one ASE of a remote unicast server or one BIS of a local
// broadcast source.
type Endpoint struct {
	kind   Kind
	dir    Dir
	id     uint8
	handle uint16 // ASE characteristic value handle, unicast only
	conn   interfaces.ConnID
	source pool.Handle
	self   pool.Handle
	state  State

	// Codec, QoS and Pref are the snapshots last reported for this
	// endpoint. They are nil while unconfigured.
	Codec *codec.Config
	QoS   *codec.QoS
	Pref  *codec.QoSPreference
	CIGID uint8
	CISID uint8

	stream        *Stream
	binding       pool.Handle
	isos          *iso.Pool
	controller    Controller
	receiverReady bool
}

// Kind returns the endpoint kind.
func (ep *Endpoint) Kind() Kind { return ep.kind }

// Dir returns the endpoint direction.
func (ep *Endpoint) Dir() Dir { return ep.dir }

// ID returns the ASE id, or the BIS index for broadcast endpoints.
func (ep *Endpoint) ID() uint8 { return ep.id }

// Handle returns the ASE characteristic value handle.
func (ep *Endpoint) Handle() uint16 { return ep.handle }

// Conn returns the owning connection of a unicast endpoint.
func (ep *Endpoint) Conn() interfaces.ConnID { return ep.conn }

// Source returns the owning broadcast source of a broadcast endpoint.
func (ep *Endpoint) Source() pool.Handle { return ep.source }

// State returns the current state.
func (ep *Endpoint) State() State { return ep.state }

// Stream returns the attached stream, or nil.
func (ep *Endpoint) Stream() *Stream { return ep.stream }

// Binding returns the owned ISO binding, or the zero handle.
func (ep *Endpoint) Binding() pool.Handle { return ep.binding }

// ReceiverReady reports whether the local side has asked to start receiving
// and the Receiver Start Ready operation is still pending.
func (ep *Endpoint) ReceiverReady() bool { return ep.receiverReady }

// SetReceiverReady records a pending Receiver Start Ready.
func (ep *Endpoint) SetReceiverReady(ready bool) { ep.receiverReady = ready }

// BindingDir returns the binding half this endpoint owns. A sink ASE is fed
// by the local device, a source ASE feeds it, and a broadcast BIS is always
// transmitted.
func (ep *Endpoint) BindingDir() iso.Direction {
	if ep.kind == KindUnicastClient && ep.dir == DirSource {
		return iso.DirRX
	}
	return iso.DirTX
}

// ISOState returns the channel state of the endpoint's binding.
func (ep *Endpoint) ISOState() iso.ChannelState {
	if ep.binding.IsZero() || ep.isos == nil {
		return iso.ChannelDisconnected
	}
	return ep.isos.State(ep.binding)
}

// String implements fmt.Stringer.
func (ep *Endpoint) String() string {
	if ep.kind == KindBroadcastSource {
		return fmt.Sprintf("bis(%s/%d)", ep.source, ep.id)
	}
	return fmt.Sprintf("ase(%s/%s/%d)", ep.conn, ep.dir, ep.id)
}

// SetState moves the endpoint to next and runs the entry actions of next.
// The state is applied even when the edge is not part of the state graph;
// the returned error then wraps ErrUnexpectedTransition.
func (ep *Endpoint) SetState(next State) error {
	prev := ep.state

	var err error
	if !Allowed(ep.kind, ep.dir, prev, next) {
		err = fmt.Errorf("%w: %s %s -> %s", ErrUnexpectedTransition, ep, prev, next)
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.SetState",
			"endpoint": ep.String(),
			"from":     prev.String(),
			"to":       next.String(),
		}).Warn("Unexpected ASE state transition, applying peer state")
	} else {
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.SetState",
			"endpoint": ep.String(),
			"from":     prev.String(),
			"to":       next.String(),
		}).Debug("ASE state transition")
	}

	ep.state = next
	ep.enter(prev, next)
	return err
}

// ForceIdle moves the endpoint to Idle without a graph check. Used when the
// owning connection drops or the owning source is deleted.
func (ep *Endpoint) ForceIdle() {
	prev := ep.state
	ep.state = StateIdle
	ep.enter(prev, StateIdle)
}

func (ep *Endpoint) enter(prev, next State) {
	switch next {
	case StateIdle:
		ep.reset()
	case StateCodecConfigured:
		if prev != StateCodecConfigured {
			ep.unbind()
		}
	case StateQosConfigured:
		ep.bind()
	}
}

func (ep *Endpoint) reset() {
	if s := ep.stream; s != nil {
		s.NotifyReleased()
		s.Detach()
	}
	ep.Codec = nil
	ep.QoS = nil
	ep.Pref = nil
	ep.CIGID = 0
	ep.CISID = 0
	ep.receiverReady = false
	ep.unbind()
}

func (ep *Endpoint) bind() {
	if ep.isos == nil || ep.controller == nil {
		return
	}
	h, ok := ep.controller.BindingFor(ep)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.bind",
			"endpoint": ep.String(),
		}).Debug("No ISO binding available for endpoint")
		return
	}
	if !ep.binding.IsZero() && ep.binding != h {
		ep.unbind()
	}

	dir := ep.BindingDir()
	if err := ep.isos.Bind(h, dir, ep); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.bind",
			"endpoint": ep.String(),
			"binding":  h.String(),
			"error":    err.Error(),
		}).Warn("Failed to bind endpoint to ISO binding")
		return
	}
	ep.binding = h

	if ep.QoS != nil {
		if err := ep.isos.SetParams(h, dir, ep, iso.ParamsFromQoS(ep.QoS)); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Endpoint.bind",
				"endpoint": ep.String(),
				"error":    err.Error(),
			}).Warn("Failed to set ISO parameters")
		}
	}
}

func (ep *Endpoint) unbind() {
	if ep.binding.IsZero() {
		return
	}
	if ep.isos != nil {
		if err := ep.isos.Unbind(ep.binding, ep); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Endpoint.unbind",
				"endpoint": ep.String(),
				"error":    err.Error(),
			}).Debug("ISO binding already released")
		}
	}
	ep.binding = 0
}

// ResetISOParams clears the I/O parameters of the owned binding half.
func (ep *Endpoint) ResetISOParams() {
	if ep.binding.IsZero() || ep.isos == nil {
		return
	}
	_ = ep.isos.ResetParams(ep.binding, ep)
}

// ConnectISO connects the endpoint's channel over its connection.
// Already connecting or connected channels are left alone.
func (ep *Endpoint) ConnectISO() error {
	if ep.binding.IsZero() || ep.isos == nil {
		return fmt.Errorf("%w: %s has no ISO binding", ErrNotReady, ep)
	}
	return ep.isos.Connect(ep.binding, ep.conn)
}

// DisconnectISO disconnects the endpoint's channel if it is active.
func (ep *Endpoint) DisconnectISO() error {
	if ep.binding.IsZero() || ep.isos == nil {
		return nil
	}
	return ep.isos.Disconnect(ep.binding)
}

// Submit validates req against the current state and hands it to the
// controller. Release of an Idle endpoint is a no-op.
func (ep *Endpoint) Submit(req Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidArgument)
	}
	op := req.Opcode()
	if op == OpRelease && ep.state == StateIdle {
		return nil
	}
	if !ValidFrom(op, ep.state) {
		logrus.WithFields(logrus.Fields{
			"function": "Endpoint.Submit",
			"endpoint": ep.String(),
			"opcode":   op.String(),
			"state":    ep.state.String(),
		}).Error("Operation not valid in current state")
		return fmt.Errorf("%w: %s from %s", ErrInvalidState, op, ep.state)
	}
	if ep.controller == nil {
		return ErrNoController
	}
	return ep.controller.Submit(ep, req)
}

// ISOConnected implements iso.Owner.
func (ep *Endpoint) ISOConnected() {
	if ep.stream != nil {
		ep.stream.notify(func(o *StreamOps) {
			if o.Connected != nil {
				o.Connected(ep.stream)
			}
		})
	}
	if ep.controller != nil {
		ep.controller.ISOConnected(ep)
	}
}

// ISODisconnected implements iso.Owner.
func (ep *Endpoint) ISODisconnected(reason uint8) {
	if ep.stream != nil {
		ep.stream.notify(func(o *StreamOps) {
			if o.Disconnected != nil {
				o.Disconnected(ep.stream, reason)
			}
		})
	}
	if ep.controller != nil {
		ep.controller.ISODisconnected(ep, reason)
	}
}

// ISOSent implements iso.Owner.
func (ep *Endpoint) ISOSent() {
	if s := ep.stream; s != nil {
		s.notify(func(o *StreamOps) {
			if o.Sent != nil {
				o.Sent(s)
			}
		})
	}
}

// ISORecv implements iso.Owner.
func (ep *Endpoint) ISORecv(info interfaces.RecvInfo, payload []byte) {
	if s := ep.stream; s != nil {
		s.notify(func(o *StreamOps) {
			if o.Recv != nil {
				o.Recv(s, info, payload)
			}
		})
	}
}
