package unicast

import (
	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/sirupsen/logrus"
)

// handleNotify receives every ASE and control point notification.
func (c *Client) handleNotify(conn interfaces.ConnID, handle uint16, value []byte) {
	_, cn := c.findConn(conn)
	if cn == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.handleNotify",
			"conn":     conn.String(),
			"handle":   handle,
		}).Debug("Ignoring notification for unknown connection")
		return
	}
	if handle == cn.cpHandle {
		c.handleResponse(cn, value)
		return
	}

	ep := cn.endpoints.FindByHandle(handle)
	if ep == nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.handleNotify",
			"conn":     conn.String(),
			"handle":   handle,
		}).Warn("Notification for unknown ASE handle")
		return
	}
	st, err := ParseStatus(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.handleNotify",
			"endpoint": ep.String(),
			"error":    err.Error(),
		}).Warn("Dropping malformed ASE status")
		return
	}
	if st.ID != ep.ID() {
		logrus.WithFields(logrus.Fields{
			"function": "Client.handleNotify",
			"endpoint": ep.String(),
			"ase_id":   st.ID,
		}).Warn("ASE status id does not match characteristic")
		return
	}
	c.applyStatus(ep, st)
}

func (c *Client) handleResponse(cn *connection, value []byte) {
	rsp, err := ParseResponse(value)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Client.handleResponse",
			"conn":     cn.id.String(),
			"error":    err.Error(),
		}).Warn("Dropping malformed control point response")
		return
	}

	for _, e := range rsp.Entries {
		if e.Code != RspSuccess {
			logrus.WithFields(logrus.Fields{
				"function": "Client.handleResponse",
				"conn":     cn.id.String(),
				"opcode":   rsp.Op.String(),
				"ase_id":   e.ASEID,
				"code":     e.Code.String(),
				"reason":   e.Reason,
			}).Warn("Control point operation rejected by server")

			if rsp.Op == bap.OpStart {
				cn.endpoints.Each(func(ep *bap.Endpoint) bool {
					if ep.ID() == e.ASEID && ep.Dir() == bap.DirSource {
						ep.SetReceiverReady(false)
					}
					return true
				})
			}
		}
		if c.callbacks.OperationResult != nil {
			c.callbacks.OperationResult(cn.id, rsp.Op, e.ASEID, e.Code, e.Reason)
		}
	}
}

// applyStatus moves ep to the notified state, stores the state's payload
// and fires the matching stream callback.
func (c *Client) applyStatus(ep *bap.Endpoint, st *Status) {
	prev := ep.State()
	stream := ep.Stream()

	switch st.State {
	case bap.StateCodecConfigured:
		p, ok := st.Params.(CodecParams)
		if !ok {
			return
		}
		cfg := p.Codec.Clone()
		if stream != nil && stream.Codec != nil {
			cfg.Meta = codec.CloneLTV(stream.Codec.Meta)
		}
		ep.Codec = cfg
		pref := p.Pref
		if !pref.Consistent() {
			logrus.WithFields(logrus.Fields{
				"function":    "Client.applyStatus",
				"endpoint":    ep.String(),
				"pd_min":      pref.PDMin,
				"pd_max":      pref.PDMax,
				"pref_pd_min": pref.PrefPDMin,
				"pref_pd_max": pref.PrefPDMax,
			}).Warn("Server advertised an inconsistent QoS preference")
		}
		ep.Pref = &pref
		_ = ep.SetState(bap.StateCodecConfigured)
		if stream != nil {
			stream.NotifyConfigured(ep.Pref)
		}

	case bap.StateQosConfigured:
		p, ok := st.Params.(QoSParams)
		if !ok {
			return
		}
		q := p.QoS
		ep.QoS = &q
		ep.CIGID, ep.CISID = p.CIGID, p.CISID
		ep.SetReceiverReady(false)
		ep.ResetISOParams()
		if ep.ISOState().Active() {
			if err := ep.DisconnectISO(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Client.applyStatus",
					"endpoint": ep.String(),
					"error":    err.Error(),
				}).Warn("Failed to disconnect CIS after QoS reconfiguration")
			}
		}
		_ = ep.SetState(bap.StateQosConfigured)
		if stream == nil {
			return
		}
		switch prev {
		case bap.StateEnabling, bap.StateStreaming:
			stream.NotifyDisabled()
		case bap.StateDisabling:
		default:
			stream.NotifyQoSSet()
		}

	case bap.StateEnabling, bap.StateStreaming, bap.StateDisabling:
		if p, ok := st.Params.(MetadataParams); ok {
			if ep.Codec == nil {
				ep.Codec = &codec.Config{}
			}
			ep.Codec.Meta = p.Meta
			ep.CIGID, ep.CISID = p.CIGID, p.CISID
		}
		_ = ep.SetState(st.State)
		if stream == nil {
			return
		}
		switch {
		case st.State == prev && st.State != bap.StateDisabling:
			stream.NotifyMetadataUpdated()
		case st.State == bap.StateEnabling:
			stream.NotifyEnabled()
		case st.State == bap.StateStreaming:
			stream.NotifyStarted()
		case st.State == bap.StateDisabling && prev != bap.StateDisabling:
			stream.NotifyDisabled()
		}

	case bap.StateReleasing:
		if err := ep.DisconnectISO(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Client.applyStatus",
				"endpoint": ep.String(),
				"error":    err.Error(),
			}).Warn("Failed to disconnect CIS of releasing ASE")
		}
		_ = ep.SetState(bap.StateReleasing)

	case bap.StateIdle:
		_ = ep.SetState(bap.StateIdle)
	}
}
