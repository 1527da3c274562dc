package broadcast

import (
	"crypto/rand"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/config"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/limits"
	"github.com/opd-ai/leaudio/pool"
	"github.com/sirupsen/logrus"
)

// StreamParam places one stream in a subgroup. Data is the stream's
// BIS-specific codec configuration, layered over the subgroup codec.
type StreamParam struct {
	Stream *bap.Stream
	Data   []codec.LTV
}

// SubgroupParam describes streams sharing one codec configuration.
type SubgroupParam struct {
	Codec   *codec.Config
	Streams []StreamParam
}

// CreateParam describes a broadcast source.
type CreateParam struct {
	Subgroups     []SubgroupParam
	QoS           *codec.QoS
	Packing       codec.Packing
	Encryption    bool
	BroadcastCode [limits.BroadcastCodeSize]byte
}

type member struct {
	stream  *bap.Stream
	ep      *bap.Endpoint
	binding pool.Handle
	data    []codec.LTV
}

// Subgroup is a set of BIS sharing one codec configuration.
type Subgroup struct {
	codec   *codec.Config
	members []member
}

// Source is one broadcast source and its BIG.
type Source struct {
	handle     pool.Handle
	id         uint32
	qos        codec.QoS
	packing    codec.Packing
	encryption bool
	code       [limits.BroadcastCodeSize]byte
	subgroups  []Subgroup
	endpoints  *bap.EndpointPool
	bisCount   int
	big        interfaces.GroupHandle
	bigCreated bool
}

func (s *Source) each(fn func(sg *Subgroup, m *member)) {
	for i := range s.subgroups {
		sg := &s.subgroups[i]
		for j := range sg.members {
			fn(sg, &sg.members[j])
		}
	}
}

// state is the state of the first member. Members move together except
// while BIS connection events are still arriving.
func (s *Source) state() bap.State {
	for i := range s.subgroups {
		if len(s.subgroups[i].members) > 0 {
			return s.subgroups[i].members[0].ep.State()
		}
	}
	return bap.StateIdle
}

// allIn reports whether every member is in one of states.
func (s *Source) allIn(states ...bap.State) bool {
	ok := true
	s.each(func(_ *Subgroup, m *member) {
		if !slices.Contains(states, m.ep.State()) {
			ok = false
		}
	})
	return ok
}

// describe names the member states, e.g. "streaming" or
// "qos_configured/streaming" for a source with members in both.
func (s *Source) describe() string {
	var seen []bap.State
	s.each(func(_ *Subgroup, m *member) {
		if st := m.ep.State(); !slices.Contains(seen, st) {
			seen = append(seen, st)
		}
	})
	if len(seen) == 0 {
		return bap.StateIdle.String()
	}
	names := make([]string, len(seen))
	for i, st := range seen {
		names[i] = st.String()
	}
	return strings.Join(names, "/")
}

// Manager owns the broadcast sources of the local device. It is the
// bap.Controller of every broadcast endpoint.
type Manager struct {
	transport interfaces.ISOTransport
	isos      *iso.Pool
	opts      *config.Options
	sources   *pool.Arena[Source]
	rand      io.Reader
}

// NewManager creates a broadcast source manager. isos must be registered
// with transport.
func NewManager(transport interfaces.ISOTransport, isos *iso.Pool, opts *config.Options) *Manager {
	if opts == nil {
		opts = config.NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function":       "NewManager",
		"sources":        opts.BroadcastSources,
		"subgroups":      opts.Subgroups,
		"bis_per_source": opts.BISPerSource,
	}).Info("Creating broadcast source manager")

	return &Manager{
		transport: transport,
		isos:      isos,
		opts:      opts,
		sources:   pool.New[Source](opts.BroadcastSources),
		rand:      rand.Reader,
	}
}

func (m *Manager) maxBIS() int {
	return min(m.opts.BISPerSource, limits.MaxBISPerBIG)
}

// Create allocates a broadcast source. Every stream gets its own endpoint
// and ISO binding; on success all endpoints are QoS Configured. Nothing is
// kept when any step fails.
func (m *Manager) Create(param CreateParam) (pool.Handle, error) {
	if len(param.Subgroups) == 0 {
		return 0, ErrNoSubgroups
	}
	if len(param.Subgroups) > m.opts.Subgroups {
		return 0, fmt.Errorf("%w: %d, capacity %d", ErrTooManySubgroups, len(param.Subgroups), m.opts.Subgroups)
	}
	if param.QoS == nil {
		return 0, fmt.Errorf("%w: nil QoS", bap.ErrInvalidArgument)
	}
	if err := param.QoS.Validate(); err != nil {
		return 0, err
	}

	h, src, err := m.sources.Alloc()
	if err != nil {
		return 0, fmt.Errorf("create broadcast source: %w", err)
	}
	*src = Source{
		handle:     h,
		qos:        *param.QoS,
		packing:    param.Packing,
		encryption: param.Encryption,
		code:       param.BroadcastCode,
		subgroups:  make([]Subgroup, 0, len(param.Subgroups)),
		endpoints:  bap.NewBroadcastPool(h, m.maxBIS(), m.isos, m),
	}

	if err := m.populate(src, param.Subgroups); err != nil {
		m.release(src, false)
		return 0, err
	}
	id, err := m.newBroadcastID(h)
	if err != nil {
		m.release(src, false)
		return 0, err
	}
	src.id = id

	src.each(func(_ *Subgroup, mb *member) {
		_ = mb.ep.SetState(bap.StateQosConfigured)
		mb.stream.NotifyQoSSet()
	})

	logrus.WithFields(logrus.Fields{
		"function":     "Manager.Create",
		"source":       h.String(),
		"broadcast_id": fmt.Sprintf("0x%06x", id),
		"subgroups":    len(src.subgroups),
		"bis":          src.bisCount,
	}).Info("Created broadcast source")

	return h, nil
}

func (m *Manager) populate(src *Source, params []SubgroupParam) error {
	for i, sp := range params {
		if sp.Codec == nil {
			return fmt.Errorf("%w: subgroup %d has no codec", bap.ErrInvalidArgument, i)
		}
		if err := sp.Codec.Validate(); err != nil {
			return fmt.Errorf("subgroup %d: %w", i, err)
		}
		if len(sp.Streams) == 0 {
			return fmt.Errorf("%w: subgroup %d", ErrEmptySubgroup, i)
		}

		src.subgroups = append(src.subgroups, Subgroup{codec: sp.Codec.Clone()})
		sg := &src.subgroups[len(src.subgroups)-1]
		key := iso.GroupKey{Kind: iso.GroupBroadcast, ID: src.handle, Subgroup: uint8(i)}

		for j, p := range sp.Streams {
			mb, err := m.addMember(src, sg, key, p)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Manager.Create",
					"source":   src.handle.String(),
					"subgroup": i,
					"stream":   j,
					"error":    err.Error(),
				}).Error("Failed to add broadcast stream, releasing source")
				return fmt.Errorf("subgroup %d stream %d: %w", i, j, err)
			}
			sg.members = append(sg.members, mb)
		}
	}
	return nil
}

// addMember allocates the endpoint and binding of one BIS. On failure it
// releases whatever it allocated itself.
func (m *Manager) addMember(src *Source, sg *Subgroup, key iso.GroupKey, p StreamParam) (member, error) {
	if p.Stream == nil {
		return member{}, fmt.Errorf("%w: nil stream", bap.ErrInvalidArgument)
	}
	if !p.Stream.Group().IsZero() {
		return member{}, fmt.Errorf("%w: %s", ErrStreamGrouped, p.Stream.Group())
	}
	if src.bisCount >= m.maxBIS() {
		return member{}, fmt.Errorf("%w: capacity %d", ErrTooManyBIS, m.maxBIS())
	}
	if err := limits.ValidateEntryCount(len(p.Data), limits.MaxCodecDataEntries); err != nil {
		return member{}, fmt.Errorf("BIS codec configuration: %w", err)
	}
	if _, err := codec.EncodeLTV(p.Data); err != nil {
		return member{}, err
	}
	effective := sg.codec.Clone()
	if err := effective.Merge(p.Data); err != nil {
		return member{}, err
	}

	ep, err := src.endpoints.Alloc(bap.DirSource, uint8(src.bisCount+1), 0)
	if err != nil {
		return member{}, err
	}
	binding, err := m.isos.New(key)
	if err != nil {
		_ = src.endpoints.Free(ep)
		return member{}, err
	}
	if err := p.Stream.Attach(ep, sg.codec); err != nil {
		_ = m.isos.Free(binding)
		_ = src.endpoints.Free(ep)
		return member{}, err
	}
	p.Stream.SetGroup(key)
	ep.Codec = effective
	q := src.qos
	ep.QoS = &q
	src.bisCount++

	return member{stream: p.Stream, ep: ep, binding: binding, data: codec.CloneLTV(p.Data)}, nil
}

// release detaches every stream, frees every endpoint and binding and
// clears the source slot. Streams see Released only when notify is set.
func (m *Manager) release(src *Source, notify bool) {
	src.each(func(_ *Subgroup, mb *member) {
		mb.stream.SetGroup(iso.GroupKey{})
		if !notify {
			mb.stream.Detach()
		}
	})
	src.endpoints.Reset()
	src.each(func(_ *Subgroup, mb *member) {
		if err := m.isos.Free(mb.binding); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Manager.release",
				"source":   src.handle.String(),
				"binding":  mb.binding.String(),
				"error":    err.Error(),
			}).Warn("Failed to free broadcast ISO binding")
		}
	})
	_ = m.sources.Free(src.handle)
}

const maxIDAttempts = 64

// newBroadcastID draws random 24-bit ids until one is unused by every
// other source.
func (m *Manager) newBroadcastID(self pool.Handle) (uint32, error) {
	var buf [3]byte
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		if _, err := io.ReadFull(m.rand, buf[:]); err != nil {
			return 0, fmt.Errorf("generate broadcast id: %w", err)
		}
		id := codec.Uint24(buf[:])
		if !m.idInUse(self, id) {
			return id, nil
		}

		logrus.WithFields(logrus.Fields{
			"function":     "Manager.newBroadcastID",
			"broadcast_id": fmt.Sprintf("0x%06x", id),
			"attempt":      attempt,
		}).Debug("Broadcast id in use, drawing again")
	}
	return 0, ErrIDExhausted
}

func (m *Manager) idInUse(self pool.Handle, id uint32) bool {
	used := false
	m.sources.Each(func(h pool.Handle, s *Source) bool {
		if h != self && s.id == id {
			used = true
			return false
		}
		return true
	})
	return used
}

func (m *Manager) source(h pool.Handle) (*Source, error) {
	src, err := m.sources.Get(h)
	if err != nil {
		return nil, fmt.Errorf("broadcast source: %w", err)
	}
	return src, nil
}

// BroadcastID returns the 24-bit broadcast id of a source.
func (m *Manager) BroadcastID(h pool.Handle) (uint32, error) {
	src, err := m.source(h)
	if err != nil {
		return 0, err
	}
	return src.id, nil
}

// State returns the state of the source's endpoints.
func (m *Manager) State(h pool.Handle) (bap.State, error) {
	src, err := m.source(h)
	if err != nil {
		return bap.StateIdle, err
	}
	return src.state(), nil
}

// Streams returns the member streams of a source in BIS order.
func (m *Manager) Streams(h pool.Handle) ([]*bap.Stream, error) {
	src, err := m.source(h)
	if err != nil {
		return nil, err
	}
	streams := make([]*bap.Stream, 0, src.bisCount)
	src.each(func(_ *Subgroup, mb *member) {
		streams = append(streams, mb.stream)
	})
	return streams, nil
}

// BIG returns the transport handle of the source's BIG while it exists.
func (m *Manager) BIG(h pool.Handle) (interfaces.GroupHandle, bool) {
	src, err := m.sources.Get(h)
	if err != nil || !src.bigCreated {
		return 0, false
	}
	return src.big, true
}

// Reconfig replaces the codec of every subgroup and the shared QoS. Either
// may be nil to keep the current one. Every endpoint must be QoS Configured.
// The source is left untouched when any member's configuration is rejected.
func (m *Manager) Reconfig(h pool.Handle, cfg *codec.Config, qos *codec.QoS) error {
	src, err := m.source(h)
	if err != nil {
		return err
	}
	if !src.allIn(bap.StateQosConfigured) {
		return fmt.Errorf("%w: reconfigure from %s", bap.ErrInvalidState, src.describe())
	}
	if cfg != nil {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	newQoS := src.qos
	if qos != nil {
		if err := qos.Validate(); err != nil {
			return err
		}
		newQoS = *qos
	}

	codecs := make([]*codec.Config, len(src.subgroups))
	effective := make([][]*codec.Config, len(src.subgroups))
	for i := range src.subgroups {
		sg := &src.subgroups[i]
		codecs[i] = sg.codec
		if cfg != nil {
			codecs[i] = cfg.Clone()
		}
		effective[i] = make([]*codec.Config, len(sg.members))
		for j := range sg.members {
			merged := codecs[i].Clone()
			if err := merged.Merge(sg.members[j].data); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Manager.Reconfig",
					"source":   h.String(),
					"subgroup": i,
					"stream":   j,
					"error":    err.Error(),
				}).Error("BIS configuration rejected, source unchanged")
				return fmt.Errorf("subgroup %d stream %d: %w", i, j, err)
			}
			effective[i][j] = merged
		}
	}

	src.qos = newQoS
	for i := range src.subgroups {
		sg := &src.subgroups[i]
		sg.codec = codecs[i]
		for j := range sg.members {
			mb := &sg.members[j]
			// Re-attaching to the linked endpoint only swaps the codec.
			_ = mb.stream.Attach(mb.ep, sg.codec)
			mb.ep.Codec = effective[i][j]
			q := src.qos
			mb.ep.QoS = &q
			_ = mb.ep.SetState(bap.StateQosConfigured)
			mb.stream.NotifyQoSSet()
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Reconfig",
		"source":   h.String(),
		"codec":    cfg != nil,
		"qos":      qos != nil,
	}).Info("Reconfigured broadcast source")

	return nil
}

// Start creates the source's BIG on the periodic advertising set adv. The
// endpoints become Enabling and each turns Streaming when its BIS connects.
func (m *Manager) Start(h pool.Handle, adv uint8) error {
	src, err := m.source(h)
	if err != nil {
		return err
	}
	if !src.allIn(bap.StateQosConfigured) {
		return fmt.Errorf("%w: start from %s", bap.ErrInvalidState, src.describe())
	}

	params := interfaces.BIGParams{
		QoS:           iso.ParamsFromQoS(&src.qos),
		Interval:      src.qos.Interval,
		Latency:       src.qos.Latency,
		Framing:       uint8(src.qos.Framing),
		Packing:       uint8(src.packing),
		Encryption:    src.encryption,
		BroadcastCode: src.code,
	}
	src.each(func(_ *Subgroup, mb *member) {
		params.Channels = append(params.Channels, iso.ChannelID(mb.binding))
	})

	big, err := m.transport.CreateBIG(adv, params)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Start",
			"source":   h.String(),
			"bis":      len(params.Channels),
			"error":    err.Error(),
		}).Error("Failed to create BIG")
		return fmt.Errorf("%w: %w", ErrBIGCreate, err)
	}
	src.big = big
	src.bigCreated = true

	src.each(func(_ *Subgroup, mb *member) {
		m.isos.BeginConnect(mb.binding)
		_ = mb.ep.SetState(bap.StateEnabling)
		mb.stream.NotifyEnabled()
	})

	logrus.WithFields(logrus.Fields{
		"function":   "Manager.Start",
		"source":     h.String(),
		"adv_handle": adv,
		"bis":        len(params.Channels),
	}).Info("Started broadcast source")

	return nil
}

// Stop terminates the source's BIG. Each endpoint returns to QoS
// Configured when its BIS disconnection is reported.
func (m *Manager) Stop(h pool.Handle) error {
	src, err := m.source(h)
	if err != nil {
		return err
	}
	if !src.allIn(bap.StateEnabling, bap.StateStreaming) {
		return fmt.Errorf("%w: stop from %s", bap.ErrInvalidState, src.describe())
	}

	if err := m.transport.TerminateBIG(src.big); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Manager.Stop",
			"source":   h.String(),
			"error":    err.Error(),
		}).Error("Failed to terminate BIG")
		return fmt.Errorf("%w: %w", ErrBIGTerminate, err)
	}
	src.bigCreated = false
	src.each(func(_ *Subgroup, mb *member) {
		m.isos.BeginDisconnect(mb.binding)
	})

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Stop",
		"source":   h.String(),
	}).Info("Stopping broadcast source")

	return nil
}

// Delete releases a QoS Configured source: every stream is detached and
// every endpoint and binding freed.
func (m *Manager) Delete(h pool.Handle) error {
	src, err := m.source(h)
	if err != nil {
		return err
	}
	if !src.allIn(bap.StateQosConfigured) {
		return fmt.Errorf("%w: delete from %s", bap.ErrInvalidState, src.describe())
	}
	m.release(src, true)

	logrus.WithFields(logrus.Fields{
		"function": "Manager.Delete",
		"source":   h.String(),
	}).Info("Deleted broadcast source")

	return nil
}

// UpdateMetadata replaces the metadata of every subgroup of a streaming
// source.
func (m *Manager) UpdateMetadata(h pool.Handle, meta []codec.LTV) error {
	src, err := m.source(h)
	if err != nil {
		return err
	}
	if !src.allIn(bap.StateStreaming) {
		return fmt.Errorf("%w: update metadata from %s", bap.ErrInvalidState, src.describe())
	}
	if err := limits.ValidateEntryCount(len(meta), limits.MaxCodecMetaEntries); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	if _, err := codec.EncodeLTV(meta); err != nil {
		return err
	}

	for i := range src.subgroups {
		src.subgroups[i].codec.Meta = codec.CloneLTV(meta)
	}
	src.each(func(_ *Subgroup, mb *member) {
		mb.ep.Codec.Meta = codec.CloneLTV(meta)
		mb.stream.NotifyMetadataUpdated()
	})
	return nil
}

// StreamConfig returns the effective codec configuration of a member
// stream: its subgroup codec with the stream's BIS data applied.
func (m *Manager) StreamConfig(s *bap.Stream) (*codec.Config, error) {
	if s == nil {
		return nil, ErrNotMember
	}
	src, sg, mb := m.lookup(s.Endpoint())
	if mb == nil {
		return nil, ErrNotMember
	}
	cfg := sg.codec.Clone()
	if err := cfg.Merge(mb.data); err != nil {
		return nil, fmt.Errorf("%s: %w", src.handle, err)
	}
	return cfg, nil
}

func (m *Manager) lookup(ep *bap.Endpoint) (*Source, *Subgroup, *member) {
	if ep == nil || ep.Kind() != bap.KindBroadcastSource {
		return nil, nil, nil
	}
	src, err := m.sources.Get(ep.Source())
	if err != nil {
		return nil, nil, nil
	}
	for i := range src.subgroups {
		sg := &src.subgroups[i]
		for j := range sg.members {
			if sg.members[j].ep == ep {
				return src, sg, &sg.members[j]
			}
		}
	}
	return nil, nil, nil
}

// Submit implements bap.Controller. Broadcast endpoints are driven through
// the Manager, not through stream requests.
func (m *Manager) Submit(ep *bap.Endpoint, req bap.Request) error {
	return fmt.Errorf("%w: %s on %s", bap.ErrNotSupported, req.Opcode(), ep)
}

// BindingFor implements bap.Controller.
func (m *Manager) BindingFor(ep *bap.Endpoint) (pool.Handle, bool) {
	_, _, mb := m.lookup(ep)
	if mb == nil {
		return 0, false
	}
	return mb.binding, true
}

// ISOConnected implements bap.Controller.
func (m *Manager) ISOConnected(ep *bap.Endpoint) {
	if ep.State() != bap.StateEnabling {
		return
	}
	_ = ep.SetState(bap.StateStreaming)
	if s := ep.Stream(); s != nil {
		s.NotifyStarted()
	}
}

// ISODisconnected implements bap.Controller.
func (m *Manager) ISODisconnected(ep *bap.Endpoint, reason uint8) {
	switch ep.State() {
	case bap.StateEnabling, bap.StateStreaming:
	default:
		return
	}
	_ = ep.SetState(bap.StateQosConfigured)
	if s := ep.Stream(); s != nil {
		s.NotifyStopped(reason)
	}
}
