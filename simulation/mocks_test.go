package simulation

import (
	"fmt"
	"testing"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/unicast"
	"github.com/stretchr/testify/require"
)

// mockListener records transport events as strings.
type mockListener struct {
	events   []string
	received [][]byte
}

func (m *mockListener) Connected(ch interfaces.ChannelID) {
	m.events = append(m.events, fmt.Sprintf("connected %d", ch))
}

func (m *mockListener) Disconnected(ch interfaces.ChannelID, reason uint8) {
	m.events = append(m.events, fmt.Sprintf("disconnected %d 0x%02x", ch, reason))
}

func (m *mockListener) Sent(ch interfaces.ChannelID) {
	m.events = append(m.events, fmt.Sprintf("sent %d", ch))
}

func (m *mockListener) Received(ch interfaces.ChannelID, info interfaces.RecvInfo, payload []byte) {
	m.events = append(m.events, fmt.Sprintf("received %d seq=%d", ch, info.Sequence))
	m.received = append(m.received, payload)
}

// mockObserver records CIS changes as strings.
type mockObserver struct {
	events []string
}

func (m *mockObserver) CISEstablished(cig, cis uint8) {
	m.events = append(m.events, fmt.Sprintf("up %d/%d", cig, cis))
}

func (m *mockObserver) CISLost(cig, cis uint8, reason uint8) {
	m.events = append(m.events, fmt.Sprintf("lost %d/%d 0x%02x", cig, cis, reason))
}

// recorder collects stream callbacks by name.
type recorder struct {
	events []string
	recv   [][]byte
}

func (r *recorder) ops() *bap.StreamOps {
	add := func(name string) { r.events = append(r.events, name) }
	return &bap.StreamOps{
		Configured:      func(*bap.Stream, *codec.QoSPreference) { add("configured") },
		QoSSet:          func(*bap.Stream) { add("qos") },
		Enabled:         func(*bap.Stream) { add("enabled") },
		MetadataUpdated: func(*bap.Stream) { add("metadata") },
		Started:         func(*bap.Stream) { add("started") },
		Stopped:         func(*bap.Stream, uint8) { add("stopped") },
		Disabled:        func(*bap.Stream) { add("disabled") },
		Released:        func(*bap.Stream) { add("released") },
		Connected:       func(*bap.Stream) { add("connected") },
		Disconnected:    func(*bap.Stream, uint8) { add("disconnected") },
		Recv: func(_ *bap.Stream, _ interfaces.RecvInfo, p []byte) {
			r.recv = append(r.recv, p)
		},
	}
}

func (r *recorder) has(name string) bool {
	for _, e := range r.events {
		if e == name {
			return true
		}
	}
	return false
}

const testConn interfaces.ConnID = 1

// gattCapture subscribes to every attribute of a peer and decodes what it
// is notified.
type gattCapture struct {
	t         *testing.T
	responses []*unicast.Response
	statuses  []*unicast.Status
}

func capture(t *testing.T, p *Peer) *gattCapture {
	t.Helper()
	c := &gattCapture{t: t}
	fn := func(_ interfaces.ConnID, handle uint16, value []byte) {
		if handle == ControlPoint {
			rsp, err := unicast.ParseResponse(value)
			require.NoError(t, err)
			c.responses = append(c.responses, rsp)
			return
		}
		st, err := unicast.ParseStatus(value)
		require.NoError(t, err)
		c.statuses = append(c.statuses, st)
	}
	require.NoError(t, p.Subscribe(testConn, ControlPoint, fn))
	for _, uuid := range []interfaces.UUID16{interfaces.UUIDSinkASE, interfaces.UUIDSourceASE} {
		attrs, err := p.ReadByUUID(testConn, uuid)
		require.NoError(t, err)
		for _, a := range attrs {
			require.NoError(t, p.Subscribe(testConn, a.Handle, fn))
		}
	}
	return c
}

func (c *gattCapture) lastResponse() *unicast.Response {
	c.t.Helper()
	require.NotEmpty(c.t, c.responses)
	return c.responses[len(c.responses)-1]
}

func (c *gattCapture) lastStatus() *unicast.Status {
	c.t.Helper()
	require.NotEmpty(c.t, c.statuses)
	return c.statuses[len(c.statuses)-1]
}

func (c *gattCapture) reset() {
	c.responses = nil
	c.statuses = nil
}

func writeCP(t *testing.T, p *Peer, op bap.Opcode, ops ...unicast.Operation) {
	t.Helper()
	pdu, err := unicast.EncodeControlPoint(op, ops)
	require.NoError(t, err)
	require.NoError(t, p.WriteWithoutResponse(testConn, ControlPoint, pdu))
}
