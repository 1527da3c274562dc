package iso

import (
	"fmt"

	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/pool"
	"github.com/sirupsen/logrus"
)

// Pool is the fixed-capacity set of bindings shared by the unicast client
// and the broadcast source manager.
type Pool struct {
	arena     *pool.Arena[Binding]
	transport interfaces.ISOTransport
}

// NewPool creates a binding pool and registers it as the transport's
// event listener. transport may be nil for pools that never touch a radio.
func NewPool(capacity int, transport interfaces.ISOTransport) *Pool {
	p := &Pool{
		arena:     pool.New[Binding](capacity),
		transport: transport,
	}
	if transport != nil {
		transport.RegisterListener(p)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPool",
		"capacity": capacity,
	}).Debug("Created ISO binding pool")

	return p
}

// New allocates an unowned binding in group key.
func (p *Pool) New(key GroupKey) (pool.Handle, error) {
	h, b, err := p.arena.Alloc()
	if err != nil {
		return 0, fmt.Errorf("allocate binding for %s: %w", key, err)
	}
	b.key = key

	logrus.WithFields(logrus.Fields{
		"function": "Pool.New",
		"binding":  h.String(),
		"group":    key.String(),
	}).Debug("Allocated ISO binding")

	return h, nil
}

// Free releases an ownerless binding. Freeing an active channel drops it
// locally; the caller is expected to have disconnected it first.
func (p *Pool) Free(h pool.Handle) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	if !b.ownerless() {
		return fmt.Errorf("%w: %s", ErrBindingInUse, h)
	}
	if b.state.Active() {
		logrus.WithFields(logrus.Fields{
			"function": "Pool.Free",
			"binding":  h.String(),
			"state":    b.state.String(),
		}).Warn("Freeing binding with active channel")
	}
	return p.arena.Free(h)
}

// Bind assigns the dir half of h to owner. Binding the same owner twice is
// a no-op.
func (p *Pool) Bind(h pool.Handle, dir Direction, owner Owner) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	hf := b.half(dir)
	if hf.owner == owner {
		return nil
	}
	if hf.owner != nil {
		return fmt.Errorf("%w: %s %s", ErrDirectionInUse, h, dir)
	}
	hf.owner = owner
	hf.set = false

	logrus.WithFields(logrus.Fields{
		"function":  "Pool.Bind",
		"binding":   h.String(),
		"direction": dir.String(),
		"group":     b.key.String(),
	}).Debug("Bound endpoint to ISO binding")

	return nil
}

// Unbind releases every half of h owned by owner and clears its parameters.
func (p *Pool) Unbind(h pool.Handle, owner Owner) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	released := false
	for _, hf := range []*half{&b.tx, &b.rx} {
		if hf.owner == owner {
			*hf = half{}
			released = true
		}
	}
	if !released {
		return fmt.Errorf("%w: %s", ErrNotOwner, h)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Pool.Unbind",
		"binding":   h.String(),
		"ownerless": b.ownerless(),
	}).Debug("Unbound endpoint from ISO binding")

	return nil
}

// SetParams sets the I/O parameters of the dir half. Only the half's owner
// may change them.
func (p *Pool) SetParams(h pool.Handle, dir Direction, owner Owner, params interfaces.ChannelQoS) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	hf := b.half(dir)
	if hf.owner == nil || hf.owner != owner {
		return fmt.Errorf("%w: %s %s", ErrNotOwner, h, dir)
	}
	hf.params = params
	hf.set = true
	return nil
}

// ResetParams clears the I/O parameters of the halves owned by owner.
func (p *Pool) ResetParams(h pool.Handle, owner Owner) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	for _, hf := range []*half{&b.tx, &b.rx} {
		if hf.owner != nil && hf.owner == owner {
			hf.params = interfaces.ChannelQoS{}
			hf.set = false
		}
	}
	return nil
}

// Params returns the I/O parameters of the dir half and whether they are set.
func (p *Pool) Params(h pool.Handle, dir Direction) (interfaces.ChannelQoS, bool) {
	b, err := p.arena.Get(h)
	if err != nil {
		return interfaces.ChannelQoS{}, false
	}
	hf := b.half(dir)
	return hf.params, hf.set
}

// Owner returns the owner of the dir half, or nil.
func (p *Pool) Owner(h pool.Handle, dir Direction) Owner {
	b, err := p.arena.Get(h)
	if err != nil {
		return nil
	}
	return b.half(dir).owner
}

// Key returns the group key of h.
func (p *Pool) Key(h pool.Handle) (GroupKey, bool) {
	b, err := p.arena.Get(h)
	if err != nil {
		return GroupKey{}, false
	}
	return b.key, true
}

// State returns the channel state of h. Unknown handles report disconnected.
func (p *Pool) State(h pool.Handle) ChannelState {
	b, err := p.arena.Get(h)
	if err != nil {
		return ChannelDisconnected
	}
	return b.state
}

// Valid reports whether h addresses a live binding.
func (p *Pool) Valid(h pool.Handle) bool {
	return p.arena.Valid(h)
}

// Len returns the number of allocated bindings.
func (p *Pool) Len() int {
	return p.arena.Len()
}

// Connect establishes the CIS of h over conn. Connecting an already
// connecting or connected channel is not an error.
func (p *Pool) Connect(h pool.Handle, conn interfaces.ConnID) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	if b.state.Active() {
		return nil
	}
	if p.transport == nil {
		return ErrNoTransport
	}

	prev := b.state
	b.state = ChannelConnecting
	b.conn = conn
	if err := p.transport.Connect(ChannelID(h), conn); err != nil {
		b.state = prev
		logrus.WithFields(logrus.Fields{
			"function": "Pool.Connect",
			"binding":  h.String(),
			"conn":     conn.String(),
			"error":    err.Error(),
		}).Error("Failed to connect isochronous channel")
		return fmt.Errorf("connect %s: %w", h, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Pool.Connect",
		"binding":  h.String(),
		"conn":     conn.String(),
	}).Info("Connecting isochronous channel")

	return nil
}

// Disconnect tears down the channel of h if it is connecting or connected.
func (p *Pool) Disconnect(h pool.Handle) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	if !b.state.Active() {
		return nil
	}
	if p.transport == nil {
		return ErrNoTransport
	}

	prev := b.state
	b.state = ChannelDisconnecting
	if err := p.transport.Disconnect(ChannelID(h)); err != nil {
		b.state = prev
		return fmt.Errorf("disconnect %s: %w", h, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Pool.Disconnect",
		"binding":  h.String(),
	}).Info("Disconnecting isochronous channel")

	return nil
}

// BeginConnect marks h as connecting after a group-level establishment
// such as BIG creation, without a per-channel transport call.
func (p *Pool) BeginConnect(h pool.Handle) {
	if b, err := p.arena.Get(h); err == nil && !b.state.Active() {
		b.state = ChannelConnecting
	}
}

// BeginDisconnect marks an active h as disconnecting after a group-level
// teardown such as BIG termination.
func (p *Pool) BeginDisconnect(h pool.Handle) {
	if b, err := p.arena.Get(h); err == nil && b.state.Active() {
		b.state = ChannelDisconnecting
	}
}

// Send transmits payload on h. Only the owner of the transmit half may send
// and the channel must be connected.
func (p *Pool) Send(h pool.Handle, owner Owner, payload []byte, seq uint16, ts uint32) error {
	b, err := p.arena.Get(h)
	if err != nil {
		return err
	}
	if b.tx.owner == nil || b.tx.owner != owner {
		return fmt.Errorf("%w: %s tx", ErrNotOwner, h)
	}
	if b.state != ChannelConnected {
		return fmt.Errorf("%w: %s is %s", ErrNotConnected, h, b.state)
	}
	if p.transport == nil {
		return ErrNoTransport
	}
	return p.transport.Send(ChannelID(h), payload, seq, ts)
}

func (p *Pool) lookupChannel(fn string, ch interfaces.ChannelID) *Binding {
	b, err := p.arena.Get(pool.Handle(ch))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": fn,
			"channel":  uint32(ch),
			"error":    err.Error(),
		}).Debug("Ignoring event for unknown channel")
		return nil
	}
	return b
}

// Connected implements interfaces.ISOListener.
func (p *Pool) Connected(ch interfaces.ChannelID) {
	b := p.lookupChannel("Pool.Connected", ch)
	if b == nil {
		return
	}
	b.state = ChannelConnected

	logrus.WithFields(logrus.Fields{
		"function": "Pool.Connected",
		"binding":  pool.Handle(ch).String(),
		"group":    b.key.String(),
	}).Info("Isochronous channel connected")

	// Capture both owners first: a callback may unbind itself.
	tx, rx := b.tx.owner, b.rx.owner
	if tx != nil {
		tx.ISOConnected()
	}
	if rx != nil {
		rx.ISOConnected()
	}
}

// Disconnected implements interfaces.ISOListener.
func (p *Pool) Disconnected(ch interfaces.ChannelID, reason uint8) {
	b := p.lookupChannel("Pool.Disconnected", ch)
	if b == nil {
		return
	}
	b.state = ChannelDisconnected

	logrus.WithFields(logrus.Fields{
		"function": "Pool.Disconnected",
		"binding":  pool.Handle(ch).String(),
		"reason":   reason,
	}).Info("Isochronous channel disconnected")

	tx, rx := b.tx.owner, b.rx.owner
	if tx != nil {
		tx.ISODisconnected(reason)
	}
	if rx != nil {
		rx.ISODisconnected(reason)
	}
}

// Sent implements interfaces.ISOListener.
func (p *Pool) Sent(ch interfaces.ChannelID) {
	if b := p.lookupChannel("Pool.Sent", ch); b != nil && b.tx.owner != nil {
		b.tx.owner.ISOSent()
	}
}

// Received implements interfaces.ISOListener.
func (p *Pool) Received(ch interfaces.ChannelID, info interfaces.RecvInfo, payload []byte) {
	if b := p.lookupChannel("Pool.Received", ch); b != nil && b.rx.owner != nil {
		b.rx.owner.ISORecv(info, payload)
	}
}
