package unicast

import (
	"fmt"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/limits"
	"github.com/opd-ai/leaudio/pool"
	"github.com/sirupsen/logrus"
)

// StreamParam describes one member stream of a unicast group. QoS, when
// set, overrides the group QoS for this stream's direction of the CIS.
type StreamParam struct {
	Stream *bap.Stream
	QoS    *codec.QoS
}

// PairParam places up to two streams on one CIS: TX feeds a sink ASE and
// RX is fed by a source ASE.
type PairParam struct {
	TX *StreamParam
	RX *StreamParam
}

// GroupParams describes a unicast group.
type GroupParams struct {
	Pairs   []PairParam
	Packing codec.Packing
}

// channel is one CIS of a group. Its position is the CIS id.
type channel struct {
	tx      *bap.Stream
	rx      *bap.Stream
	binding pool.Handle
}

func (ch *channel) empty() bool {
	return ch.tx == nil && ch.rx == nil
}

// Group is a set of streams sharing one CIG.
type Group struct {
	handle     pool.Handle
	channels   []channel
	streams    int
	packing    codec.Packing
	qos        *codec.QoS
	cig        interfaces.GroupHandle
	cigCreated bool
}

func (g *Group) key() iso.GroupKey {
	return iso.GroupKey{Kind: iso.GroupUnicast, ID: g.handle}
}

// cigID is the CIG identifier used on the air for this group.
func (g *Group) cigID() uint8 {
	return uint8(g.handle.Index())
}

func (g *Group) channelOf(s *bap.Stream) int {
	for i := range g.channels {
		if g.channels[i].tx == s || g.channels[i].rx == s {
			return i
		}
	}
	return -1
}

// CreateGroup allocates a unicast group holding the given stream pairs.
func (c *Client) CreateGroup(params GroupParams) (pool.Handle, error) {
	h, g, err := c.groups.Alloc()
	if err != nil {
		return 0, fmt.Errorf("create unicast group: %w", err)
	}
	g.handle = h
	g.packing = params.Packing

	if err := c.addPairs(g, params.Pairs); err != nil {
		_ = c.groups.Free(h)
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.CreateGroup",
		"group":    h.String(),
		"streams":  g.streams,
		"cis":      len(g.channels),
	}).Info("Created unicast group")

	return h, nil
}

// AddStreams adds stream pairs to a group whose channels are not active.
func (c *Client) AddStreams(h pool.Handle, pairs []PairParam) error {
	g, err := c.groups.Get(h)
	if err != nil {
		return err
	}
	if c.locked(g) {
		return fmt.Errorf("%w: %s", ErrGroupLocked, h)
	}
	return c.addPairs(g, pairs)
}

// addPairs validates every pair before changing the group.
func (c *Client) addPairs(g *Group, pairs []PairParam) error {
	seen := make(map[*bap.Stream]bool)
	free := 0
	for i := range g.channels {
		if g.channels[i].empty() && g.channels[i].binding.IsZero() {
			free++
		}
	}
	added := 0
	for i, p := range pairs {
		if p.TX == nil && p.RX == nil {
			return fmt.Errorf("%w: pair %d is empty", bap.ErrInvalidArgument, i)
		}
		for _, sp := range []*StreamParam{p.TX, p.RX} {
			if sp == nil {
				continue
			}
			if sp.Stream == nil {
				return fmt.Errorf("%w: pair %d has a nil stream", bap.ErrInvalidArgument, i)
			}
			if seen[sp.Stream] || !sp.Stream.Group().IsZero() {
				return fmt.Errorf("%w: pair %d", ErrStreamInGroup, i)
			}
			if sp.QoS != nil {
				if err := sp.QoS.Validate(); err != nil {
					return err
				}
			}
			seen[sp.Stream] = true
			added++
		}
	}
	if g.streams+added > c.opts.GroupStreams {
		return fmt.Errorf("%w: %d streams, capacity %d", ErrTooManyStreams, g.streams+added, c.opts.GroupStreams)
	}
	if newChannels := len(pairs) - free; len(g.channels)+max(newChannels, 0) > limits.MaxCISPerCIG {
		return fmt.Errorf("%w: more than %d CIS", ErrTooManyStreams, limits.MaxCISPerCIG)
	}

	for _, p := range pairs {
		var ch channel
		if p.TX != nil {
			ch.tx = c.joinGroup(g, p.TX)
		}
		if p.RX != nil {
			ch.rx = c.joinGroup(g, p.RX)
		}
		placed := false
		for i := range g.channels {
			if g.channels[i].empty() && g.channels[i].binding.IsZero() {
				g.channels[i] = ch
				placed = true
				break
			}
		}
		if !placed {
			g.channels = append(g.channels, ch)
		}
	}
	g.streams += added
	return nil
}

func (c *Client) joinGroup(g *Group, sp *StreamParam) *bap.Stream {
	sp.Stream.SetGroup(g.key())
	if sp.QoS != nil {
		q := *sp.QoS
		sp.Stream.QoS = &q
	}
	return sp.Stream
}

// locked reports whether any CIS of the group is connecting or connected.
func (c *Client) locked(g *Group) bool {
	for i := range g.channels {
		if b := g.channels[i].binding; !b.IsZero() && c.isos.State(b).Active() {
			return true
		}
	}
	return false
}

// memberConfigured reports whether s holds an endpoint past codec configuration.
func memberConfigured(s *bap.Stream) bool {
	ep := s.Endpoint()
	if ep == nil {
		return false
	}
	switch ep.State() {
	case bap.StateIdle, bap.StateCodecConfigured:
		return false
	}
	return true
}

// RemoveStream removes s from the group. Its CIS slot stays reserved so
// the remaining streams keep their CIS ids.
func (c *Client) RemoveStream(h pool.Handle, s *bap.Stream) error {
	g, err := c.groups.Get(h)
	if err != nil {
		return err
	}
	if c.locked(g) {
		return fmt.Errorf("%w: %s", ErrGroupLocked, h)
	}
	i := g.channelOf(s)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotInGroup, h)
	}
	if memberConfigured(s) {
		return fmt.Errorf("%w: %s is %s", ErrGroupInUse, s.Endpoint(), s.State())
	}

	ch := &g.channels[i]
	if ch.tx == s {
		ch.tx = nil
	} else {
		ch.rx = nil
	}
	s.SetGroup(iso.GroupKey{})
	g.streams--

	if ch.empty() && !ch.binding.IsZero() {
		if err := c.isos.Free(ch.binding); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.RemoveStream",
				"group":    h.String(),
				"error":    err.Error(),
			}).Warn("Failed to free ISO binding of removed CIS")
		} else {
			ch.binding = 0
		}
	}
	return nil
}

// DeleteGroup terminates the group's CIG and releases its bindings. Every
// member must be unattached, Idle or Codec Configured.
func (c *Client) DeleteGroup(h pool.Handle) error {
	g, err := c.groups.Get(h)
	if err != nil {
		return err
	}
	if c.locked(g) {
		return fmt.Errorf("%w: %s", ErrGroupLocked, h)
	}
	for i := range g.channels {
		for _, s := range []*bap.Stream{g.channels[i].tx, g.channels[i].rx} {
			if s != nil && memberConfigured(s) {
				return fmt.Errorf("%w: %s is %s", ErrGroupInUse, s.Endpoint(), s.State())
			}
		}
	}

	if g.cigCreated {
		if err := c.transport.TerminateCIG(g.cig); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.DeleteGroup",
				"group":    h.String(),
				"error":    err.Error(),
			}).Warn("Failed to terminate CIG")
		}
	}
	for i := range g.channels {
		ch := &g.channels[i]
		if !ch.binding.IsZero() {
			_ = c.isos.Free(ch.binding)
		}
		for _, s := range []*bap.Stream{ch.tx, ch.rx} {
			if s != nil {
				s.SetGroup(iso.GroupKey{})
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.DeleteGroup",
		"group":    h.String(),
	}).Info("Deleted unicast group")

	return c.groups.Free(h)
}

// GroupStreams returns the member streams of a group in CIS order, TX
// before RX.
func (c *Client) GroupStreams(h pool.Handle) ([]*bap.Stream, error) {
	g, err := c.groups.Get(h)
	if err != nil {
		return nil, err
	}
	var out []*bap.Stream
	for i := range g.channels {
		for _, s := range []*bap.Stream{g.channels[i].tx, g.channels[i].rx} {
			if s != nil {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// CIG returns the transport handle of the group's CIG once created.
func (c *Client) CIG(h pool.Handle) (interfaces.GroupHandle, bool) {
	g, err := c.groups.Get(h)
	if err != nil || !g.cigCreated {
		return 0, false
	}
	return g.cig, true
}

type qosTarget struct {
	channel int
	stream  *bap.Stream
	ep      *bap.Endpoint
	qos     codec.QoS
}

// ConfigQoS configures the QoS of every group member attached to an ASE of
// conn. Each member's QoS is checked against its endpoint's advertised
// preference first and the whole batch fails if one does not fit. The CIG
// is created on the first call and reconfigured afterwards; bindings staged
// by a call whose CIG operation fails are released again.
func (c *Client) ConfigQoS(conn interfaces.ConnID, h pool.Handle, qos *codec.QoS) error {
	if qos == nil {
		return fmt.Errorf("%w: nil QoS", bap.ErrInvalidArgument)
	}
	if err := qos.Validate(); err != nil {
		return err
	}
	g, err := c.groups.Get(h)
	if err != nil {
		return err
	}
	if c.locked(g) {
		return fmt.Errorf("%w: %s", ErrGroupLocked, h)
	}
	_, cn := c.findConn(conn)
	if cn == nil {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, conn)
	}

	targets, err := c.qosTargets(g, conn, qos)
	if err != nil {
		return err
	}

	prev, fresh := g.qos, !g.cigCreated
	created, err := c.stageBindings(g, targets)
	if err != nil {
		return err
	}
	if err := c.applyCIG(g, qos); err != nil {
		c.unstage(g, created)
		return err
	}
	q := *qos
	g.qos = &q

	ops := make([]Operation, 0, len(targets))
	for _, t := range targets {
		ops = append(ops, Operation{
			ASEID: t.ep.ID(),
			CIGID: g.cigID(),
			CISID: uint8(t.channel),
			QoS:   t.qos,
		})
	}
	if err := c.writeCP(cn, bap.OpConfigQoS, ops); err != nil {
		c.unstage(g, created)
		c.restoreCIG(g, prev, fresh)
		return err
	}
	return nil
}

// restoreCIG undoes applyCIG after the server could not be told about the
// new configuration. A CIG created for the attempt is terminated; an
// existing one is reconfigured with the previous QoS.
func (c *Client) restoreCIG(g *Group, prev *codec.QoS, fresh bool) {
	g.qos = prev
	switch {
	case fresh && g.cigCreated:
		if err := c.transport.TerminateCIG(g.cig); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.restoreCIG",
				"group":    g.handle.String(),
				"error":    err.Error(),
			}).Warn("Failed to terminate CIG")
		}
		g.cig = 0
		g.cigCreated = false
	case prev != nil:
		if err := c.applyCIG(g, prev); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.restoreCIG",
				"group":    g.handle.String(),
				"error":    err.Error(),
			}).Warn("Failed to restore CIG configuration")
		}
	}
}

func (c *Client) qosTargets(g *Group, conn interfaces.ConnID, qos *codec.QoS) ([]qosTarget, error) {
	var targets []qosTarget
	for i := range g.channels {
		for _, s := range []*bap.Stream{g.channels[i].tx, g.channels[i].rx} {
			if s == nil || s.Endpoint() == nil || s.Endpoint().Conn() != conn {
				continue
			}
			ep := s.Endpoint()
			if !bap.ValidFrom(bap.OpConfigQoS, ep.State()) {
				return nil, fmt.Errorf("%w: %s from %s", bap.ErrInvalidState, bap.OpConfigQoS, ep.State())
			}
			q := *qos
			if s.QoS != nil {
				q = *s.QoS
			}
			if err := q.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", ep, err)
			}
			if ep.Pref != nil {
				if err := ep.Pref.Check(&q); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "Client.ConfigQoS",
						"endpoint": ep.String(),
						"error":    err.Error(),
					}).Error("QoS outside server preference, rejecting batch")
					return nil, fmt.Errorf("%s: %w", ep, err)
				}
			}
			targets = append(targets, qosTarget{channel: i, stream: s, ep: ep, qos: q})
		}
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoStreams, conn)
	}
	return targets, nil
}

// stageBindings allocates a binding for every targeted CIS that has none
// and returns the channel positions it allocated for.
func (c *Client) stageBindings(g *Group, targets []qosTarget) ([]int, error) {
	var created []int
	for _, t := range targets {
		ch := &g.channels[t.channel]
		if !ch.binding.IsZero() {
			continue
		}
		b, err := c.isos.New(g.key())
		if err != nil {
			c.unstage(g, created)
			return nil, err
		}
		ch.binding = b
		created = append(created, t.channel)
	}
	return created, nil
}

func (c *Client) unstage(g *Group, created []int) {
	for _, i := range created {
		ch := &g.channels[i]
		if err := c.isos.Free(ch.binding); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.unstage",
				"binding":  ch.binding.String(),
				"error":    err.Error(),
			}).Warn("Failed to release staged ISO binding")
		}
		ch.binding = 0
	}
}

// cigParams derives the CIG parameters from the group QoS and every staged
// CIS. Each direction's SDU, PHY and RTN come from its stream's QoS.
func (c *Client) cigParams(g *Group, qos *codec.QoS) interfaces.CIGParams {
	params := interfaces.CIGParams{
		CIGID:    g.cigID(),
		Interval: qos.Interval,
		Latency:  qos.Latency,
		Framing:  uint8(qos.Framing),
		Packing:  uint8(g.packing),
	}
	dirParams := func(s *bap.Stream) *interfaces.ChannelQoS {
		if s == nil {
			return nil
		}
		q := qos
		if s.QoS != nil {
			q = s.QoS
		}
		p := iso.ParamsFromQoS(q)
		return &p
	}
	for i := range g.channels {
		ch := &g.channels[i]
		if ch.binding.IsZero() || ch.empty() {
			continue
		}
		params.Channels = append(params.Channels, interfaces.CISParams{
			Channel: iso.ChannelID(ch.binding),
			CISID:   uint8(i),
			TX:      dirParams(ch.tx),
			RX:      dirParams(ch.rx),
		})
	}
	return params
}

func (c *Client) applyCIG(g *Group, qos *codec.QoS) error {
	params := c.cigParams(g, qos)
	var err error
	if g.cigCreated {
		err = c.transport.ReconfigureCIG(g.cig, params)
	} else {
		var handle interfaces.GroupHandle
		if handle, err = c.transport.CreateCIG(params); err == nil {
			g.cig = handle
			g.cigCreated = true
		}
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.applyCIG",
			"group":    g.handle.String(),
			"cis":      len(params.Channels),
			"error":    err.Error(),
		}).Error("CIG operation failed, releasing staged bindings")
		return fmt.Errorf("%w: %w", ErrGroupCreate, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.applyCIG",
		"group":    g.handle.String(),
		"cig_id":   params.CIGID,
		"cis":      len(params.Channels),
	}).Info("Configured CIG")

	return nil
}
