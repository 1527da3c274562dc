package unicast

import (
	"fmt"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/config"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/limits"
	"github.com/opd-ai/leaudio/pool"
	"github.com/sirupsen/logrus"
)

// Callbacks reports control point results. Per-stream progress is reported
// through each stream's bap.StreamOps.
type Callbacks struct {
	// OperationResult is called for every ASE entry of a control point
	// response, successful or not.
	OperationResult func(conn interfaces.ConnID, op bap.Opcode, aseID uint8, code ResponseCode, reason uint8)
}

type connection struct {
	id        interfaces.ConnID
	endpoints *bap.EndpointPool
	cpHandle  uint16
	caps      Capabilities
}

// Client is the BAP unicast client. It drives the ASEs of every discovered
// connection and the CIGs of its unicast groups.
type Client struct {
	gatt      interfaces.GATTClient
	transport interfaces.ISOTransport
	isos      *iso.Pool
	opts      *config.Options
	conns     *pool.Arena[connection]
	groups    *pool.Arena[Group]
	callbacks Callbacks
}

// NewClient creates a unicast client. isos must be registered with
// transport; the stack facade shares it with the broadcast manager.
func NewClient(gatt interfaces.GATTClient, transport interfaces.ISOTransport, isos *iso.Pool, opts *config.Options) *Client {
	if opts == nil {
		opts = config.NewOptions()
	}

	logrus.WithFields(logrus.Fields{
		"function":        "NewClient",
		"max_connections": opts.MaxConnections,
		"unicast_groups":  opts.UnicastGroups,
	}).Info("Creating unicast client")

	return &Client{
		gatt:      gatt,
		transport: transport,
		isos:      isos,
		opts:      opts,
		conns:     pool.New[connection](opts.MaxConnections),
		groups:    pool.New[Group](opts.UnicastGroups),
	}
}

// SetCallbacks replaces the client callbacks.
func (c *Client) SetCallbacks(cb Callbacks) {
	c.callbacks = cb
}

func (c *Client) findConn(id interfaces.ConnID) (pool.Handle, *connection) {
	var (
		handle pool.Handle
		found  *connection
	)
	c.conns.Each(func(h pool.Handle, cn *connection) bool {
		if cn.id == id {
			handle, found = h, cn
			return false
		}
		return true
	})
	return handle, found
}

func (c *Client) connFor(ep *bap.Endpoint) (*connection, error) {
	if ep.Kind() != bap.KindUnicastClient {
		return nil, fmt.Errorf("%w: %s", ErrWrongEndpointKind, ep)
	}
	_, cn := c.findConn(ep.Conn())
	if cn == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, ep.Conn())
	}
	return cn, nil
}

// Endpoint returns the ASE of conn with direction dir and id, or nil.
func (c *Client) Endpoint(conn interfaces.ConnID, dir bap.Dir, id uint8) *bap.Endpoint {
	_, cn := c.findConn(conn)
	if cn == nil {
		return nil
	}
	return cn.endpoints.Find(dir, id)
}

// Endpoints returns the ASEs of conn with direction dir in discovery order.
func (c *Client) Endpoints(conn interfaces.ConnID, dir bap.Dir) []*bap.Endpoint {
	_, cn := c.findConn(conn)
	if cn == nil {
		return nil
	}
	var eps []*bap.Endpoint
	cn.endpoints.Each(func(ep *bap.Endpoint) bool {
		if ep.Dir() == dir {
			eps = append(eps, ep)
		}
		return true
	})
	return eps
}

// Disconnected forces every ASE of conn to Idle, detaching its stream and
// releasing its ISO binding, and forgets the connection.
func (c *Client) Disconnected(conn interfaces.ConnID) error {
	h, cn := c.findConn(conn)
	if cn == nil {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, conn)
	}
	cn.endpoints.Reset()

	logrus.WithFields(logrus.Fields{
		"function": "Client.Disconnected",
		"conn":     conn.String(),
	}).Info("Released unicast connection")

	return c.conns.Free(h)
}

// ConfigCodec attaches stream to ep and requests codec configuration. The
// endpoint state changes once the server notifies Codec Configured.
func (c *Client) ConfigCodec(stream *bap.Stream, ep *bap.Endpoint, cfg *codec.Config) error {
	if stream == nil || ep == nil || cfg == nil {
		return fmt.Errorf("%w: stream, endpoint and codec are required", bap.ErrInvalidArgument)
	}
	if _, err := c.connFor(ep); err != nil {
		return err
	}
	if !bap.ValidFrom(bap.OpConfigCodec, ep.State()) {
		return fmt.Errorf("%w: %s from %s", bap.ErrInvalidState, bap.OpConfigCodec, ep.State())
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fresh := stream.Endpoint() != ep
	prev := stream.Codec
	if err := stream.Attach(ep, cfg); err != nil {
		return err
	}

	req := bap.ConfigCodec{Codec: cfg, TargetLatency: c.opts.TargetLatency, TargetPHY: c.opts.TargetPHY}
	if err := c.Submit(ep, req); err != nil {
		if fresh {
			stream.Detach()
		} else {
			stream.Codec = prev
		}
		return err
	}
	return nil
}

// Submit implements bap.Controller.
func (c *Client) Submit(ep *bap.Endpoint, req bap.Request) error {
	cn, err := c.connFor(ep)
	if err != nil {
		return err
	}

	switch r := req.(type) {
	case bap.ConfigCodec:
		return c.writeCP(cn, bap.OpConfigCodec, []Operation{{
			ASEID:         ep.ID(),
			TargetLatency: r.TargetLatency,
			TargetPHY:     r.TargetPHY,
			Codec:         r.Codec,
		}})
	case bap.ConfigQoS:
		return c.writeCP(cn, bap.OpConfigQoS, []Operation{{
			ASEID: ep.ID(),
			CIGID: r.CIGID,
			CISID: r.CISID,
			QoS:   r.QoS,
		}})
	case bap.Enable:
		if err := checkMeta(r.Meta); err != nil {
			return err
		}
		return c.writeCP(cn, bap.OpEnable, []Operation{{ASEID: ep.ID(), Meta: r.Meta}})
	case bap.UpdateMetadata:
		if err := checkMeta(r.Meta); err != nil {
			return err
		}
		return c.writeCP(cn, bap.OpUpdateMetadata, []Operation{{ASEID: ep.ID(), Meta: r.Meta}})
	case bap.Start:
		return c.start(cn, ep)
	case bap.Disable:
		return c.writeCP(cn, bap.OpDisable, []Operation{{ASEID: ep.ID()}})
	case bap.Stop:
		if ep.Dir() != bap.DirSource {
			return fmt.Errorf("%w: receiver stop ready on %s", bap.ErrNotSupported, ep)
		}
		return c.writeCP(cn, bap.OpStop, []Operation{{ASEID: ep.ID()}})
	case bap.Release:
		return c.writeCP(cn, bap.OpRelease, []Operation{{ASEID: ep.ID()}})
	default:
		return fmt.Errorf("%w: %T", bap.ErrNotSupported, req)
	}
}

// checkMeta bounds the metadata an ASE can be given by its entry count.
func checkMeta(meta []codec.LTV) error {
	if err := limits.ValidateEntryCount(len(meta), limits.MaxCodecMetaEntries); err != nil {
		return fmt.Errorf("%w: metadata: %v", codec.ErrTooManyEntries, err)
	}
	return nil
}

// start connects the endpoint's CIS. A sink ASE is started by the server
// itself; a source ASE needs Receiver Start Ready once the CIS is up.
func (c *Client) start(cn *connection, ep *bap.Endpoint) error {
	if ep.Dir() == bap.DirSink {
		return ep.ConnectISO()
	}

	ep.SetReceiverReady(true)
	if err := ep.ConnectISO(); err != nil {
		ep.SetReceiverReady(false)
		return err
	}
	if ep.ISOState() == iso.ChannelConnected {
		return c.sendStart(cn, ep)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.start",
		"endpoint": ep.String(),
	}).Debug("Deferring receiver start ready until CIS connects")

	return nil
}

func (c *Client) sendStart(cn *connection, ep *bap.Endpoint) error {
	ep.SetReceiverReady(false)
	return c.writeCP(cn, bap.OpStart, []Operation{{ASEID: ep.ID()}})
}

func (c *Client) writeCP(cn *connection, op bap.Opcode, ops []Operation) error {
	pdu, err := EncodeControlPoint(op, ops)
	if err != nil {
		return err
	}
	if err := c.gatt.WriteWithoutResponse(cn.id, cn.cpHandle, pdu); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.writeCP",
			"conn":     cn.id.String(),
			"opcode":   op.String(),
			"error":    err.Error(),
		}).Error("Failed to write ASE control point")
		return fmt.Errorf("write %s: %w", op, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Client.writeCP",
		"conn":     cn.id.String(),
		"opcode":   op.String(),
		"ases":     len(ops),
	}).Debug("Wrote ASE control point")

	return nil
}

// BindingFor implements bap.Controller. A stream's binding is the one staged
// for its channel by ConfigQoS.
func (c *Client) BindingFor(ep *bap.Endpoint) (pool.Handle, bool) {
	s := ep.Stream()
	if s == nil {
		return 0, false
	}
	key := s.Group()
	if key.Kind != iso.GroupUnicast {
		return 0, false
	}
	g, err := c.groups.Get(key.ID)
	if err != nil {
		return 0, false
	}
	i := g.channelOf(s)
	if i < 0 || g.channels[i].binding.IsZero() {
		return 0, false
	}
	return g.channels[i].binding, true
}

// ISOConnected implements bap.Controller.
func (c *Client) ISOConnected(ep *bap.Endpoint) {
	if !ep.ReceiverReady() || ep.State() != bap.StateEnabling {
		return
	}
	cn, err := c.connFor(ep)
	if err != nil {
		return
	}
	if err := c.sendStart(cn, ep); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.ISOConnected",
			"endpoint": ep.String(),
			"error":    err.Error(),
		}).Warn("Failed to send receiver start ready")
	}
}

// ISODisconnected implements bap.Controller.
func (c *Client) ISODisconnected(ep *bap.Endpoint, reason uint8) {
	ep.SetReceiverReady(false)
	if s := ep.Stream(); s != nil {
		s.NotifyStopped(reason)
	}
}
