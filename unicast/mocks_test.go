package unicast

import (
	"errors"
	"testing"

	"github.com/opd-ai/leaudio/bap"
	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/config"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/stretchr/testify/require"
)

var errMock = errors.New("mock failure")

type gattWrite struct {
	conn   interfaces.ConnID
	handle uint16
	value  []byte
}

// mockGATT serves fixed attributes and records writes and subscriptions.
type mockGATT struct {
	attrs   map[interfaces.UUID16][]interfaces.Attribute
	readErr map[interfaces.UUID16]error
	notify  map[uint16]interfaces.NotifyFunc
	writes  []gattWrite
	wErr    error
}

func newMockGATT() *mockGATT {
	return &mockGATT{
		attrs:   make(map[interfaces.UUID16][]interfaces.Attribute),
		readErr: make(map[interfaces.UUID16]error),
		notify:  make(map[uint16]interfaces.NotifyFunc),
	}
}

func (m *mockGATT) ReadByUUID(_ interfaces.ConnID, uuid interfaces.UUID16) ([]interfaces.Attribute, error) {
	if err := m.readErr[uuid]; err != nil {
		return nil, err
	}
	return m.attrs[uuid], nil
}

func (m *mockGATT) WriteWithoutResponse(conn interfaces.ConnID, handle uint16, value []byte) error {
	if m.wErr != nil {
		return m.wErr
	}
	m.writes = append(m.writes, gattWrite{conn: conn, handle: handle, value: append([]byte(nil), value...)})
	return nil
}

func (m *mockGATT) Subscribe(_ interfaces.ConnID, handle uint16, fn interfaces.NotifyFunc) error {
	m.notify[handle] = fn
	return nil
}

// mockTransport records CIG operations and channel connects.
type mockTransport struct {
	listener    interfaces.ISOListener
	created     []interfaces.CIGParams
	reconfig    []interfaces.CIGParams
	terminated  []interfaces.GroupHandle
	connects    []interfaces.ChannelID
	disconnects []interfaces.ChannelID
	createErr   error
}

func (m *mockTransport) RegisterListener(l interfaces.ISOListener) { m.listener = l }

func (m *mockTransport) CreateCIG(p interfaces.CIGParams) (interfaces.GroupHandle, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	m.created = append(m.created, p)
	return interfaces.GroupHandle(len(m.created)), nil
}

func (m *mockTransport) ReconfigureCIG(_ interfaces.GroupHandle, p interfaces.CIGParams) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.reconfig = append(m.reconfig, p)
	return nil
}

func (m *mockTransport) TerminateCIG(h interfaces.GroupHandle) error {
	m.terminated = append(m.terminated, h)
	return nil
}

func (m *mockTransport) CreateBIG(uint8, interfaces.BIGParams) (interfaces.GroupHandle, error) {
	return 0, errMock
}

func (m *mockTransport) TerminateBIG(interfaces.GroupHandle) error { return errMock }

func (m *mockTransport) Connect(ch interfaces.ChannelID, _ interfaces.ConnID) error {
	m.connects = append(m.connects, ch)
	return nil
}

func (m *mockTransport) Disconnect(ch interfaces.ChannelID) error {
	m.disconnects = append(m.disconnects, ch)
	return nil
}

func (m *mockTransport) Send(interfaces.ChannelID, []byte, uint16, uint32) error { return nil }

const (
	testConn     interfaces.ConnID = 1
	sinkHandle1  uint16            = 0x0010
	sinkHandle2  uint16            = 0x0011
	sourceHandle uint16            = 0x0020
	cpHandle     uint16            = 0x0030
)

type harness struct {
	t         *testing.T
	gatt      *mockGATT
	transport *mockTransport
	isos      *iso.Pool
	client    *Client
}

func idleStatus(t *testing.T, id uint8) []byte {
	t.Helper()
	b, err := (&Status{ID: id, State: bap.StateIdle}).Append(nil)
	require.NoError(t, err)
	return b
}

// newHarness builds a client against a server with sink ASEs 1 and 2 and
// source ASE 3.
func newHarness(t *testing.T) *harness {
	t.Helper()
	g := newMockGATT()
	g.attrs[interfaces.UUIDSinkASE] = []interfaces.Attribute{
		{Handle: sinkHandle1, Value: idleStatus(t, 1)},
		{Handle: sinkHandle2, Value: idleStatus(t, 2)},
	}
	g.attrs[interfaces.UUIDSourceASE] = []interfaces.Attribute{
		{Handle: sourceHandle, Value: idleStatus(t, 3)},
	}
	g.attrs[interfaces.UUIDASEControlPoint] = []interfaces.Attribute{{Handle: cpHandle}}

	pac, err := AppendPACRecords(nil, []PAC{{
		ID:           codec.ID{Format: codec.FormatLC3},
		Capabilities: []codec.LTV{{Type: 0x01, Value: []byte{0x80, 0x00}}},
	}})
	require.NoError(t, err)
	g.attrs[interfaces.UUIDSinkPAC] = []interfaces.Attribute{{Handle: 0x40, Value: pac}}

	tr := &mockTransport{}
	isos := iso.NewPool(8, tr)
	return &harness{
		t:         t,
		gatt:      g,
		transport: tr,
		isos:      isos,
		client:    NewClient(g, tr, isos, config.NewOptions()),
	}
}

func (h *harness) discover() *Capabilities {
	h.t.Helper()
	caps, err := h.client.Discover(testConn)
	require.NoError(h.t, err)
	return caps
}

// notify delivers an ASE status notification from the server.
func (h *harness) notify(handle uint16, st *Status) {
	h.t.Helper()
	b, err := st.Append(nil)
	require.NoError(h.t, err)
	fn := h.gatt.notify[handle]
	require.NotNil(h.t, fn, "no subscription for handle 0x%04x", handle)
	fn(testConn, handle, b)
}

func (h *harness) lastWrite() (bap.Opcode, []Operation) {
	h.t.Helper()
	require.NotEmpty(h.t, h.gatt.writes)
	w := h.gatt.writes[len(h.gatt.writes)-1]
	require.Equal(h.t, cpHandle, w.handle)
	op, ops, err := ParseControlPoint(w.value)
	require.NoError(h.t, err)
	return op, ops
}

func testPref() codec.QoSPreference {
	return codec.QoSPreference{
		UnframedSupported: true,
		PHY:               codec.PHY2M,
		RTN:               2,
		Latency:           10,
		PDMin:             20000,
		PDMax:             40000,
	}
}

func codecStatus(id uint8, cfg *codec.Config) *Status {
	return &Status{ID: id, State: bap.StateCodecConfigured, Params: CodecParams{Pref: testPref(), Codec: cfg}}
}

func qosStatus(id, cig, cis uint8, q codec.QoS) *Status {
	return &Status{ID: id, State: bap.StateQosConfigured, Params: QoSParams{CIGID: cig, CISID: cis, QoS: q}}
}

func metaStatus(id uint8, state bap.State) *Status {
	return &Status{ID: id, State: state, Params: MetadataParams{}}
}
