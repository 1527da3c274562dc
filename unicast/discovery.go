package unicast

import (
	"fmt"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/sirupsen/logrus"
)

// Discover reads the ASE, ASE Control Point and PAC characteristics of
// conn, allocates its endpoint pool, subscribes to notifications and
// applies the initial ASE states. Nothing is kept when discovery fails.
func (c *Client) Discover(conn interfaces.ConnID) (*Capabilities, error) {
	if _, cn := c.findConn(conn); cn != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDiscovered, conn)
	}
	h, cn, err := c.conns.Alloc()
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", conn, err)
	}
	cn.id = conn
	cn.endpoints = bap.NewUnicastPool(conn, 2*c.opts.ASEsPerDirection, c.isos, c)

	if err := c.discover(cn); err != nil {
		cn.endpoints.Reset()
		_ = c.conns.Free(h)

		logrus.WithFields(logrus.Fields{
			"function": "Client.Discover",
			"conn":     conn.String(),
			"error":    err.Error(),
		}).Error("Discovery failed")

		return nil, err
	}

	caps := cn.caps

	logrus.WithFields(logrus.Fields{
		"function":      "Client.Discover",
		"conn":          conn.String(),
		"sink_ases":     caps.SinkASEs,
		"source_ases":   caps.SourceASEs,
		"sink_pacs":     len(caps.Sink),
		"source_pacs":   len(caps.Source),
		"control_point": cn.cpHandle,
	}).Info("Discovered audio stream control service")

	return &caps, nil
}

func (c *Client) discover(cn *connection) error {
	type aseStatus struct {
		ep *bap.Endpoint
		st *Status
	}
	var initial []aseStatus

	for _, d := range []struct {
		uuid interfaces.UUID16
		dir  bap.Dir
	}{
		{interfaces.UUIDSinkASE, bap.DirSink},
		{interfaces.UUIDSourceASE, bap.DirSource},
	} {
		attrs, err := c.gatt.ReadByUUID(cn.id, d.uuid)
		if err != nil {
			return fmt.Errorf("read %s ASEs: %w", d.dir, err)
		}
		if len(attrs) > c.opts.ASEsPerDirection {
			return fmt.Errorf("%w: %d %s ASEs, capacity %d", ErrTooManyASEs, len(attrs), d.dir, c.opts.ASEsPerDirection)
		}
		for _, attr := range attrs {
			st, err := ParseStatus(attr.Value)
			if err != nil {
				return fmt.Errorf("%s ASE at 0x%04x: %w", d.dir, attr.Handle, err)
			}
			ep, err := cn.endpoints.Alloc(d.dir, st.ID, attr.Handle)
			if err != nil {
				return err
			}
			if err := c.gatt.Subscribe(cn.id, attr.Handle, c.handleNotify); err != nil {
				return fmt.Errorf("subscribe %s: %w", ep, err)
			}
			initial = append(initial, aseStatus{ep: ep, st: st})
		}
	}
	cn.caps.SinkASEs = cn.endpoints.Count(bap.DirSink)
	cn.caps.SourceASEs = cn.endpoints.Count(bap.DirSource)
	if cn.endpoints.Len() == 0 {
		return fmt.Errorf("%w: %s", ErrNoEndpoints, cn.id)
	}

	cps, err := c.gatt.ReadByUUID(cn.id, interfaces.UUIDASEControlPoint)
	if err != nil {
		return fmt.Errorf("read control point: %w", err)
	}
	if len(cps) != 1 {
		return fmt.Errorf("%w: found %d", ErrNoControlPoint, len(cps))
	}
	cn.cpHandle = cps[0].Handle
	if err := c.gatt.Subscribe(cn.id, cn.cpHandle, c.handleNotify); err != nil {
		return fmt.Errorf("subscribe control point: %w", err)
	}

	if cn.caps.Sink, err = c.readPACs(cn.id, interfaces.UUIDSinkPAC); err != nil {
		return err
	}
	if cn.caps.Source, err = c.readPACs(cn.id, interfaces.UUIDSourcePAC); err != nil {
		return err
	}

	for _, s := range initial {
		if s.st.State != bap.StateIdle {
			c.applyStatus(s.ep, s.st)
		}
	}
	return nil
}

func (c *Client) readPACs(conn interfaces.ConnID, uuid interfaces.UUID16) ([]PAC, error) {
	attrs, err := c.gatt.ReadByUUID(conn, uuid)
	if err != nil {
		return nil, fmt.Errorf("read PAC 0x%04x: %w", uint16(uuid), err)
	}
	var records []PAC
	for _, attr := range attrs {
		recs, err := ParsePACRecords(attr.Value)
		if err != nil {
			return nil, fmt.Errorf("PAC at 0x%04x: %w", attr.Handle, err)
		}
		records = append(records, recs...)
	}
	return records, nil
}
