package simulation

import (
	"errors"
	"fmt"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/unicast"
	"github.com/sirupsen/logrus"
)

// Attribute handles exposed by a Peer.
const (
	SinkASEBase      uint16 = 0x0010
	SourceASEBase    uint16 = 0x0020
	ControlPoint     uint16 = 0x0030
	SinkPACHandle    uint16 = 0x0040
	SourcePACHandle  uint16 = 0x0041
	maxASEsPerDirSim        = 0x10
)

// Rejection reasons carried in control point responses.
const (
	reasonNone      uint8 = 0x00
	reasonCodecID   uint8 = 0x01
	reasonFraming   uint8 = 0x04
	reasonLatency   uint8 = 0x08
	reasonPD        uint8 = 0x09
	reasonCISMapped uint8 = 0x0A
)

// PeerConfig describes the ASCS server a Peer simulates.
type PeerConfig struct {
	Sinks   int
	Sources int

	// Pref is advertised with every Codec Configured status.
	Pref codec.QoSPreference

	SinkPACs   []unicast.PAC
	SourcePACs []unicast.PAC

	// CacheOnRelease returns released ASEs to Codec Configured.
	CacheOnRelease bool
}

// DefaultPeerConfig returns a server with two sink ASEs, one source ASE
// and LC3 capabilities.
func DefaultPeerConfig() PeerConfig {
	lc3 := unicast.PAC{
		ID: codec.ID{Format: codec.FormatLC3},
		Capabilities: []codec.LTV{
			{Type: 0x01, Value: []byte{0xB4, 0x00}}, // 16, 24, 32 and 48 kHz
			{Type: 0x02, Value: []byte{0x02}},       // 10 ms frames
			{Type: 0x04, Value: []byte{0x28, 0x00, 0x78, 0x00}},
		},
	}
	return PeerConfig{
		Sinks:   2,
		Sources: 1,
		Pref: codec.QoSPreference{
			UnframedSupported: true,
			PHY:               codec.PHY2M,
			RTN:               5,
			Latency:           40,
			PDMin:             20000,
			PDMax:             40000,
		},
		SinkPACs:   []unicast.PAC{lc3},
		SourcePACs: []unicast.PAC{lc3},
	}
}

type cisKey struct {
	cig uint8
	cis uint8
}

type serverASE struct {
	id     uint8
	dir    bap.Dir
	handle uint16
	state  bap.State
	codec  *codec.Config
	qos    codec.QoS
	cig    uint8
	cis    uint8
	meta   []codec.LTV
}

func (a *serverASE) onCIS(k cisKey) bool {
	return a.cig == k.cig && a.cis == k.cis
}

func (a *serverASE) status(pref codec.QoSPreference) *unicast.Status {
	st := &unicast.Status{ID: a.id, State: a.state}
	switch a.state {
	case bap.StateCodecConfigured:
		st.Params = unicast.CodecParams{Pref: pref, Codec: a.codec}
	case bap.StateQosConfigured:
		st.Params = unicast.QoSParams{CIGID: a.cig, CISID: a.cis, QoS: a.qos}
	case bap.StateEnabling, bap.StateStreaming, bap.StateDisabling:
		st.Params = unicast.MetadataParams{CIGID: a.cig, CISID: a.cis, Meta: a.meta}
	}
	return st
}

// Peer simulates the Audio Stream Control Service and Published Audio
// Capabilities Service of one remote device. It implements
// interfaces.GATTClient for its connection and CISObserver for the CISes
// the transport establishes on it.
type Peer struct {
	conn  interfaces.ConnID
	sched *Scheduler
	cfg   PeerConfig
	ases  []*serverASE
	subs  map[uint16]interfaces.NotifyFunc
	cisUp map[cisKey]bool
}

// NewPeer creates a peer for conn whose ASEs all start Idle.
func NewPeer(conn interfaces.ConnID, sched *Scheduler, cfg PeerConfig) *Peer {
	cfg.Sinks = min(max(cfg.Sinks, 0), maxASEsPerDirSim)
	cfg.Sources = min(max(cfg.Sources, 0), maxASEsPerDirSim)

	p := &Peer{
		conn:  conn,
		sched: sched,
		cfg:   cfg,
		subs:  make(map[uint16]interfaces.NotifyFunc),
		cisUp: make(map[cisKey]bool),
	}
	id := uint8(1)
	for i := 0; i < cfg.Sinks; i++ {
		p.ases = append(p.ases, &serverASE{id: id, dir: bap.DirSink, handle: SinkASEBase + uint16(i)})
		id++
	}
	for i := 0; i < cfg.Sources; i++ {
		p.ases = append(p.ases, &serverASE{id: id, dir: bap.DirSource, handle: SourceASEBase + uint16(i)})
		id++
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewPeer",
		"conn":     conn.String(),
		"sinks":    cfg.Sinks,
		"sources":  cfg.Sources,
	}).Debug("SIMULATION - created ASCS peer")

	return p
}

// Attach registers the peer as the CIS observer of its connection.
func (p *Peer) Attach(t *Transport) {
	t.Observe(p.conn, p)
}

// Conn returns the connection the peer serves.
func (p *Peer) Conn() interfaces.ConnID { return p.conn }

func (p *Peer) ase(id uint8) *serverASE {
	for _, a := range p.ases {
		if a.id == id {
			return a
		}
	}
	return nil
}

// State returns the server side state of ASE id.
func (p *Peer) State(id uint8) (bap.State, bool) {
	a := p.ase(id)
	if a == nil {
		return 0, false
	}
	return a.state, true
}

// ReadByUUID implements interfaces.GATTClient.
func (p *Peer) ReadByUUID(conn interfaces.ConnID, uuid interfaces.UUID16) ([]interfaces.Attribute, error) {
	if conn != p.conn {
		return nil, fmt.Errorf("%w: %s", ErrWrongConnection, conn)
	}

	switch uuid {
	case interfaces.UUIDSinkASE, interfaces.UUIDSourceASE:
		dir := bap.DirSink
		if uuid == interfaces.UUIDSourceASE {
			dir = bap.DirSource
		}
		var attrs []interfaces.Attribute
		for _, a := range p.ases {
			if a.dir != dir {
				continue
			}
			v, err := a.status(p.cfg.Pref).Append(nil)
			if err != nil {
				return nil, err
			}
			attrs = append(attrs, interfaces.Attribute{Handle: a.handle, Value: v})
		}
		return attrs, nil
	case interfaces.UUIDASEControlPoint:
		return []interfaces.Attribute{{Handle: ControlPoint}}, nil
	case interfaces.UUIDSinkPAC:
		return pacAttribute(SinkPACHandle, p.cfg.SinkPACs)
	case interfaces.UUIDSourcePAC:
		return pacAttribute(SourcePACHandle, p.cfg.SourcePACs)
	}
	return nil, nil
}

func pacAttribute(handle uint16, records []unicast.PAC) ([]interfaces.Attribute, error) {
	if len(records) == 0 {
		return nil, nil
	}
	v, err := unicast.AppendPACRecords(nil, records)
	if err != nil {
		return nil, err
	}
	return []interfaces.Attribute{{Handle: handle, Value: v}}, nil
}

// Subscribe implements interfaces.GATTClient.
func (p *Peer) Subscribe(conn interfaces.ConnID, handle uint16, fn interfaces.NotifyFunc) error {
	if conn != p.conn {
		return fmt.Errorf("%w: %s", ErrWrongConnection, conn)
	}
	if handle != ControlPoint && p.aseByHandle(handle) == nil {
		return fmt.Errorf("%w: 0x%04x", ErrUnknownAttribute, handle)
	}
	p.subs[handle] = fn
	return nil
}

func (p *Peer) aseByHandle(handle uint16) *serverASE {
	for _, a := range p.ases {
		if a.handle == handle {
			return a
		}
	}
	return nil
}

// WriteWithoutResponse implements interfaces.GATTClient. Control point
// writes are executed at once; the response and the resulting status
// notifications are scheduled in that order.
func (p *Peer) WriteWithoutResponse(conn interfaces.ConnID, handle uint16, value []byte) error {
	if conn != p.conn {
		return fmt.Errorf("%w: %s", ErrWrongConnection, conn)
	}
	if handle != ControlPoint {
		return fmt.Errorf("%w: 0x%04x", ErrUnknownAttribute, handle)
	}

	op, ops, err := unicast.ParseControlPoint(value)
	if err != nil {
		code := unicast.RspInvalidLength
		if errors.Is(err, unicast.ErrUnknownOpcode) {
			code = unicast.RspUnsupportedOpcode
		}
		var opByte byte
		if len(value) > 0 {
			opByte = value[0]
		}

		logrus.WithFields(logrus.Fields{
			"function": "Peer.WriteWithoutResponse",
			"conn":     p.conn.String(),
			"code":     code.String(),
			"error":    err.Error(),
		}).Debug("SIMULATION - rejecting control point PDU")

		p.respond(&unicast.Response{
			Op:      bap.Opcode(opByte),
			Entries: []unicast.ResponseEntry{{Code: code}},
		})
		return nil
	}

	rsp := &unicast.Response{Op: op, Entries: make([]unicast.ResponseEntry, 0, len(ops))}
	var changed []*serverASE
	var released []*serverASE
	for i := range ops {
		a := p.ase(ops[i].ASEID)
		if a == nil {
			rsp.Entries = append(rsp.Entries, unicast.ResponseEntry{ASEID: ops[i].ASEID, Code: unicast.RspInvalidASEID})
			continue
		}
		code, reason := p.apply(op, a, &ops[i])
		rsp.Entries = append(rsp.Entries, unicast.ResponseEntry{ASEID: a.id, Code: code, Reason: reason})
		if code != unicast.RspSuccess {
			continue
		}
		changed = append(changed, a)
		if op == bap.OpRelease {
			released = append(released, a)
		}
	}

	p.respond(rsp)
	for _, a := range changed {
		p.notifyStatus(a)
	}
	for _, a := range changed {
		if op == bap.OpEnable && a.dir == bap.DirSink && p.cisUp[cisKey{a.cig, a.cis}] {
			a.state = bap.StateStreaming
			p.notifyStatus(a)
		}
	}
	for _, a := range released {
		p.finishRelease(a)
	}
	return nil
}

// apply runs one ASE operation on the server state machine.
func (p *Peer) apply(op bap.Opcode, a *serverASE, o *unicast.Operation) (unicast.ResponseCode, uint8) {
	if !bap.ValidFrom(op, a.state) {
		return unicast.RspInvalidTransition, reasonNone
	}

	switch op {
	case bap.OpConfigCodec:
		if o.Codec == nil || !p.supports(a.dir, o.Codec.ID) {
			return unicast.RspUnsupportedCapability, reasonCodecID
		}
		a.codec = o.Codec.Clone()
		a.state = bap.StateCodecConfigured

	case bap.OpConfigQoS:
		if code, reason := p.checkQoS(a, o); code != unicast.RspSuccess {
			return code, reason
		}
		a.qos = o.QoS
		a.cig, a.cis = o.CIGID, o.CISID
		a.state = bap.StateQosConfigured

	case bap.OpEnable:
		a.meta = codec.CloneLTV(o.Meta)
		a.state = bap.StateEnabling

	case bap.OpUpdateMetadata:
		a.meta = codec.CloneLTV(o.Meta)

	case bap.OpStart:
		if a.dir != bap.DirSource {
			return unicast.RspInvalidDirection, reasonNone
		}
		if !p.cisUp[cisKey{a.cig, a.cis}] {
			return unicast.RspInvalidTransition, reasonNone
		}
		a.state = bap.StateStreaming

	case bap.OpDisable:
		if a.dir == bap.DirSink {
			a.state = bap.StateQosConfigured
		} else {
			a.state = bap.StateDisabling
		}

	case bap.OpStop:
		if a.dir != bap.DirSource {
			return unicast.RspInvalidDirection, reasonNone
		}
		a.state = bap.StateQosConfigured

	case bap.OpRelease:
		a.state = bap.StateReleasing
	}
	return unicast.RspSuccess, reasonNone
}

func (p *Peer) supports(dir bap.Dir, id codec.ID) bool {
	records := p.cfg.SinkPACs
	if dir == bap.DirSource {
		records = p.cfg.SourcePACs
	}
	if len(records) == 0 {
		return true
	}
	for _, r := range records {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (p *Peer) checkQoS(a *serverASE, o *unicast.Operation) (unicast.ResponseCode, uint8) {
	if err := o.QoS.Validate(); err != nil {
		return unicast.RspInvalidConfigValue, reasonNone
	}
	if err := p.cfg.Pref.Check(&o.QoS); err != nil {
		switch {
		case errors.Is(err, codec.ErrFramingUnsupported):
			return unicast.RspUnsupportedConfigValue, reasonFraming
		case errors.Is(err, codec.ErrLatencyOutOfRange):
			return unicast.RspRejectedConfigValue, reasonLatency
		default:
			return unicast.RspRejectedConfigValue, reasonPD
		}
	}
	// Another ASE of the same direction may not share the CIS.
	for _, other := range p.ases {
		if other == a || other.dir != a.dir {
			continue
		}
		switch other.state {
		case bap.StateIdle, bap.StateCodecConfigured, bap.StateReleasing:
			continue
		}
		if other.onCIS(cisKey{o.CIGID, o.CISID}) {
			return unicast.RspInvalidConfigValue, reasonCISMapped
		}
	}
	return unicast.RspSuccess, reasonNone
}

// finishRelease completes a release after the Releasing notification.
func (p *Peer) finishRelease(a *serverASE) {
	a.meta = nil
	if p.cfg.CacheOnRelease && a.codec != nil {
		a.state = bap.StateCodecConfigured
	} else {
		a.codec = nil
		a.state = bap.StateIdle
	}
	a.qos = codec.QoS{}
	a.cig, a.cis = 0, 0
	p.notifyStatus(a)
}

// ReleaseASE releases ASE id on the server's own initiative.
func (p *Peer) ReleaseASE(id uint8) error {
	a := p.ase(id)
	if a == nil {
		return fmt.Errorf("%w: ase %d", ErrUnknownAttribute, id)
	}
	if !bap.ValidFrom(bap.OpRelease, a.state) {
		return fmt.Errorf("%w: %s", bap.ErrInvalidState, a.state)
	}
	a.state = bap.StateReleasing
	p.notifyStatus(a)
	p.finishRelease(a)
	return nil
}

// CISEstablished implements CISObserver. Sink ASEs waiting in Enabling on
// the CIS start streaming.
func (p *Peer) CISEstablished(cigID, cisID uint8) {
	k := cisKey{cigID, cisID}
	p.cisUp[k] = true
	for _, a := range p.ases {
		if a.dir == bap.DirSink && a.state == bap.StateEnabling && a.onCIS(k) {
			a.state = bap.StateStreaming
			p.notifyStatus(a)
		}
	}
}

// CISLost implements CISObserver. Active ASEs on the CIS return to QoS
// Configured.
func (p *Peer) CISLost(cigID, cisID uint8, reason uint8) {
	k := cisKey{cigID, cisID}
	delete(p.cisUp, k)
	for _, a := range p.ases {
		if !a.onCIS(k) {
			continue
		}
		switch a.state {
		case bap.StateEnabling, bap.StateStreaming, bap.StateDisabling:
			logrus.WithFields(logrus.Fields{
				"function": "Peer.CISLost",
				"conn":     p.conn.String(),
				"ase_id":   a.id,
				"reason":   reason,
			}).Debug("SIMULATION - CIS lost, returning ASE to QoS configured")

			a.meta = nil
			a.state = bap.StateQosConfigured
			p.notifyStatus(a)
		}
	}
}

func (p *Peer) respond(rsp *unicast.Response) {
	p.deliver(ControlPoint, rsp.Append(nil))
}

func (p *Peer) notifyStatus(a *serverASE) {
	v, err := a.status(p.cfg.Pref).Append(nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Peer.notifyStatus",
			"ase_id":   a.id,
			"error":    err.Error(),
		}).Error("SIMULATION - cannot encode ASE status")
		return
	}
	p.deliver(a.handle, v)
}

// deliver schedules a notification. It is dropped when the client never
// subscribed to handle.
func (p *Peer) deliver(handle uint16, value []byte) {
	p.sched.Schedule(func() {
		if fn := p.subs[handle]; fn != nil {
			fn(p.conn, handle, value)
		}
	})
}
