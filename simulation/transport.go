package simulation

import (
	"fmt"
	"sync"

	"github.com/opd-ai/leaudio/interfaces"
	"github.com/sirupsen/logrus"
)

// Disconnect reasons reported by the simulated controller.
const (
	ReasonRemoteTerminated    uint8 = 0x13
	ReasonTimeout             uint8 = 0x08
	ReasonLocalHostTerminated uint8 = 0x16
)

// CISObserver is told about CIS changes on one ACL connection. A Peer
// uses it to follow the isochronous side of its ASEs.
type CISObserver interface {
	CISEstablished(cigID, cisID uint8)
	CISLost(cigID, cisID uint8, reason uint8)
}

// SDU is one payload handed to Send.
type SDU struct {
	Channel   interfaces.ChannelID
	Payload   []byte
	Sequence  uint16
	Timestamp uint32
}

type channelState uint8

const (
	chanIdle channelState = iota
	chanConnecting
	chanConnected
	chanDisconnecting
)

type channelRecord struct {
	group interfaces.GroupHandle
	big   bool
	cigID uint8
	cisID uint8
	conn  interfaces.ConnID
	state channelState
}

type groupRecord struct {
	big      bool
	cigID    uint8
	adv      uint8
	channels []interfaces.ChannelID
	cig      interfaces.CIGParams
	bigP     interfaces.BIGParams
}

// Transport is an in-memory interfaces.ISOTransport. Channel events are
// delivered through the Scheduler, never from inside the call that caused
// them.
type Transport struct {
	mu        sync.Mutex
	sched     *Scheduler
	listener  interfaces.ISOListener
	groups    map[interfaces.GroupHandle]*groupRecord
	channels  map[interfaces.ChannelID]*channelRecord
	observers map[interfaces.ConnID]CISObserver
	failures  map[string]error
	sent      []SDU
	next      interfaces.GroupHandle
}

// NewTransport creates a transport delivering its events through sched.
func NewTransport(sched *Scheduler) *Transport {
	return &Transport{
		sched:     sched,
		groups:    make(map[interfaces.GroupHandle]*groupRecord),
		channels:  make(map[interfaces.ChannelID]*channelRecord),
		observers: make(map[interfaces.ConnID]CISObserver),
		failures:  make(map[string]error),
	}
}

// RegisterListener implements interfaces.ISOTransport.
func (t *Transport) RegisterListener(l interfaces.ISOListener) {
	t.mu.Lock()
	t.listener = l
	t.mu.Unlock()
}

// Observe registers the observer of CIS changes on conn.
func (t *Transport) Observe(conn interfaces.ConnID, o CISObserver) {
	t.mu.Lock()
	t.observers[conn] = o
	t.mu.Unlock()
}

// FailNext makes the next call of method ("CreateCIG", "ReconfigureCIG",
// "TerminateCIG", "CreateBIG", "TerminateBIG", "Connect", "Disconnect" or
// "Send") return err.
func (t *Transport) FailNext(method string, err error) {
	t.mu.Lock()
	t.failures[method] = err
	t.mu.Unlock()
}

// injected returns and clears the failure armed for method. Callers hold mu.
func (t *Transport) injected(method string) error {
	err := t.failures[method]
	delete(t.failures, method)
	return err
}

func (t *Transport) allocGroup(g *groupRecord) interfaces.GroupHandle {
	t.next++
	t.groups[t.next] = g
	return t.next
}

func (t *Transport) claim(ch interfaces.ChannelID, h interfaces.GroupHandle) error {
	if rec, ok := t.channels[ch]; ok && rec.group != h {
		return fmt.Errorf("%w: channel %d", ErrChannelInUse, ch)
	}
	return nil
}

func (t *Transport) busy(g *groupRecord) bool {
	for _, ch := range g.channels {
		if rec := t.channels[ch]; rec != nil && rec.state != chanIdle {
			return true
		}
	}
	return false
}

// CreateCIG implements interfaces.ISOTransport.
func (t *Transport) CreateCIG(params interfaces.CIGParams) (interfaces.GroupHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("CreateCIG"); err != nil {
		return 0, err
	}
	if err := params.Validate(); err != nil {
		return 0, err
	}
	for _, c := range params.Channels {
		if err := t.claim(c.Channel, 0); err != nil {
			return 0, err
		}
	}

	g := &groupRecord{cigID: params.CIGID, cig: params}
	h := t.allocGroup(g)
	t.placeCIS(h, g, params)

	logrus.WithFields(logrus.Fields{
		"function": "Transport.CreateCIG",
		"cig":      h,
		"cig_id":   params.CIGID,
		"cis":      len(params.Channels),
	}).Debug("SIMULATION - created CIG")

	return h, nil
}

func (t *Transport) placeCIS(h interfaces.GroupHandle, g *groupRecord, params interfaces.CIGParams) {
	for _, ch := range g.channels {
		delete(t.channels, ch)
	}
	g.channels = g.channels[:0]
	for _, c := range params.Channels {
		t.channels[c.Channel] = &channelRecord{group: h, cigID: params.CIGID, cisID: c.CISID}
		g.channels = append(g.channels, c.Channel)
	}
}

// ReconfigureCIG implements interfaces.ISOTransport.
func (t *Transport) ReconfigureCIG(h interfaces.GroupHandle, params interfaces.CIGParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("ReconfigureCIG"); err != nil {
		return err
	}
	g, ok := t.groups[h]
	if !ok || g.big {
		return fmt.Errorf("%w: cig %d", ErrUnknownGroup, h)
	}
	if t.busy(g) {
		return fmt.Errorf("%w: cig %d", ErrGroupBusy, h)
	}
	if err := params.Validate(); err != nil {
		return err
	}
	for _, c := range params.Channels {
		if err := t.claim(c.Channel, h); err != nil {
			return err
		}
	}
	g.cig = params
	g.cigID = params.CIGID
	t.placeCIS(h, g, params)
	return nil
}

// TerminateCIG implements interfaces.ISOTransport.
func (t *Transport) TerminateCIG(h interfaces.GroupHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("TerminateCIG"); err != nil {
		return err
	}
	g, ok := t.groups[h]
	if !ok || g.big {
		return fmt.Errorf("%w: cig %d", ErrUnknownGroup, h)
	}
	if t.busy(g) {
		return fmt.Errorf("%w: cig %d", ErrGroupBusy, h)
	}
	for _, ch := range g.channels {
		delete(t.channels, ch)
	}
	delete(t.groups, h)
	return nil
}

// CIG returns the parameters of a created CIG.
func (t *Transport) CIG(h interfaces.GroupHandle) (interfaces.CIGParams, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[h]
	if !ok || g.big {
		return interfaces.CIGParams{}, false
	}
	return g.cig, true
}

// CreateBIG implements interfaces.ISOTransport. Every BIS reports
// Connected once the scheduler runs.
func (t *Transport) CreateBIG(adv uint8, params interfaces.BIGParams) (interfaces.GroupHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("CreateBIG"); err != nil {
		return 0, err
	}
	if err := params.Validate(); err != nil {
		return 0, err
	}
	for _, ch := range params.Channels {
		if err := t.claim(ch, 0); err != nil {
			return 0, err
		}
	}

	g := &groupRecord{big: true, adv: adv, bigP: params}
	h := t.allocGroup(g)
	for _, ch := range params.Channels {
		t.channels[ch] = &channelRecord{group: h, big: true, state: chanConnecting}
		g.channels = append(g.channels, ch)
		t.scheduleConnected(ch)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Transport.CreateBIG",
		"big":        h,
		"adv_handle": adv,
		"bis":        len(params.Channels),
		"encrypted":  params.Encryption,
	}).Debug("SIMULATION - created BIG")

	return h, nil
}

// TerminateBIG implements interfaces.ISOTransport. Every BIS reports
// Disconnected once the scheduler runs.
func (t *Transport) TerminateBIG(h interfaces.GroupHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("TerminateBIG"); err != nil {
		return err
	}
	g, ok := t.groups[h]
	if !ok || !g.big {
		return fmt.Errorf("%w: big %d", ErrUnknownGroup, h)
	}
	for _, ch := range g.channels {
		t.channels[ch].state = chanDisconnecting
		t.scheduleDisconnected(ch, ReasonLocalHostTerminated, true)
	}
	delete(t.groups, h)
	return nil
}

// BIG returns the parameters and advertising set of a created BIG.
func (t *Transport) BIG(h interfaces.GroupHandle) (interfaces.BIGParams, uint8, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	g, ok := t.groups[h]
	if !ok || !g.big {
		return interfaces.BIGParams{}, 0, false
	}
	return g.bigP, g.adv, true
}

// Connect implements interfaces.ISOTransport. The CIS is established when
// the scheduler runs and both the listener and the peer observing conn
// are told.
func (t *Transport) Connect(ch interfaces.ChannelID, conn interfaces.ConnID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("Connect"); err != nil {
		return err
	}
	rec, ok := t.channels[ch]
	if !ok || rec.big {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	if rec.state == chanConnecting || rec.state == chanConnected {
		return nil
	}
	if _, ok := t.observers[conn]; !ok {
		return fmt.Errorf("%w: %s", ErrNoObserver, conn)
	}
	rec.conn = conn
	rec.state = chanConnecting
	t.scheduleConnected(ch)
	return nil
}

// Disconnect implements interfaces.ISOTransport.
func (t *Transport) Disconnect(ch interfaces.ChannelID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("Disconnect"); err != nil {
		return err
	}
	rec, ok := t.channels[ch]
	if !ok || rec.big {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	if rec.state != chanConnecting && rec.state != chanConnected {
		return fmt.Errorf("%w: %d", ErrNotConnected, ch)
	}
	rec.state = chanDisconnecting
	t.scheduleDisconnected(ch, ReasonLocalHostTerminated, false)
	return nil
}

// DropLink simulates the remote side or the radio tearing down ch.
func (t *Transport) DropLink(ch interfaces.ChannelID, reason uint8) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.channels[ch]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	if rec.state != chanConnected {
		return fmt.Errorf("%w: %d", ErrNotConnected, ch)
	}
	rec.state = chanDisconnecting
	t.scheduleDisconnected(ch, reason, false)

	logrus.WithFields(logrus.Fields{
		"function": "Transport.DropLink",
		"channel":  ch,
		"reason":   reason,
	}).Debug("SIMULATION - dropping isochronous link")

	return nil
}

// Send implements interfaces.ISOTransport.
func (t *Transport) Send(ch interfaces.ChannelID, payload []byte, seq uint16, ts uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.injected("Send"); err != nil {
		return err
	}
	rec, ok := t.channels[ch]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	if rec.state != chanConnected {
		return fmt.Errorf("%w: %d", ErrNotConnected, ch)
	}
	t.sent = append(t.sent, SDU{
		Channel:   ch,
		Payload:   append([]byte(nil), payload...),
		Sequence:  seq,
		Timestamp: ts,
	})
	t.sched.Schedule(func() {
		if l := t.currentListener(); l != nil {
			l.Sent(ch)
		}
	})
	return nil
}

// Receive injects an SDU arriving from the remote side of ch.
func (t *Transport) Receive(ch interfaces.ChannelID, payload []byte, seq uint16, ts uint32) error {
	t.mu.Lock()
	rec, ok := t.channels[ch]
	connected := ok && rec.state == chanConnected
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, ch)
	}
	if !connected {
		return fmt.Errorf("%w: %d", ErrNotConnected, ch)
	}
	data := append([]byte(nil), payload...)
	t.sched.Schedule(func() {
		if l := t.currentListener(); l != nil {
			l.Received(ch, interfaces.RecvInfo{Sequence: seq, Timestamp: ts, Valid: true}, data)
		}
	})
	return nil
}

// SentSDUs returns a copy of every SDU sent so far.
func (t *Transport) SentSDUs() []SDU {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]SDU(nil), t.sent...)
}

// Connected reports whether ch is currently connected.
func (t *Transport) Connected(ch interfaces.ChannelID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.channels[ch]
	return ok && rec.state == chanConnected
}

func (t *Transport) currentListener() interfaces.ISOListener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listener
}

// scheduleConnected queues the establishment of ch. Callers hold mu.
func (t *Transport) scheduleConnected(ch interfaces.ChannelID) {
	t.sched.Schedule(func() {
		t.mu.Lock()
		rec, ok := t.channels[ch]
		if !ok || rec.state != chanConnecting {
			t.mu.Unlock()
			return
		}
		rec.state = chanConnected
		l := t.listener
		obs := t.observers[rec.conn]
		big, cig, cis := rec.big, rec.cigID, rec.cisID
		t.mu.Unlock()

		// The peer learns of the CIS before the local host does.
		if !big && obs != nil {
			obs.CISEstablished(cig, cis)
		}
		if l != nil {
			l.Connected(ch)
		}
	})
}

// scheduleDisconnected queues the loss of ch. BIS records are removed
// with their BIG. Callers hold mu.
func (t *Transport) scheduleDisconnected(ch interfaces.ChannelID, reason uint8, remove bool) {
	t.sched.Schedule(func() {
		t.mu.Lock()
		rec, ok := t.channels[ch]
		if !ok {
			t.mu.Unlock()
			return
		}
		rec.state = chanIdle
		if remove {
			delete(t.channels, ch)
		}
		l := t.listener
		obs := t.observers[rec.conn]
		big, cig, cis := rec.big, rec.cigID, rec.cisID
		t.mu.Unlock()

		if l != nil {
			l.Disconnected(ch, reason)
		}
		if !big && obs != nil {
			obs.CISLost(cig, cis, reason)
		}
	})
}
