package bap

import (
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/pool"
)

// mockController hands out one binding per endpoint from a shared pool and
// records submitted requests.
type mockController struct {
	isos         *iso.Pool
	bindings     map[*Endpoint]pool.Handle
	submitted    []Request
	submitErr    error
	connected    []*Endpoint
	disconnected []*Endpoint
}

func newMockController(isos *iso.Pool) *mockController {
	return &mockController{isos: isos, bindings: make(map[*Endpoint]pool.Handle)}
}

func (m *mockController) Submit(_ *Endpoint, req Request) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, req)
	return nil
}

func (m *mockController) BindingFor(ep *Endpoint) (pool.Handle, bool) {
	if h, ok := m.bindings[ep]; ok {
		return h, true
	}
	h, err := m.isos.New(iso.GroupKey{Kind: iso.GroupUnicast, ID: 1})
	if err != nil {
		return 0, false
	}
	m.bindings[ep] = h
	return h, true
}

func (m *mockController) ISOConnected(ep *Endpoint) { m.connected = append(m.connected, ep) }

func (m *mockController) ISODisconnected(ep *Endpoint, _ uint8) {
	m.disconnected = append(m.disconnected, ep)
}

type mockTransport struct {
	listener interfaces.ISOListener
	sends    [][]byte
}

func (m *mockTransport) RegisterListener(l interfaces.ISOListener) { m.listener = l }

func (m *mockTransport) CreateCIG(interfaces.CIGParams) (interfaces.GroupHandle, error) {
	return 1, nil
}

func (m *mockTransport) ReconfigureCIG(interfaces.GroupHandle, interfaces.CIGParams) error {
	return nil
}

func (m *mockTransport) TerminateCIG(interfaces.GroupHandle) error { return nil }

func (m *mockTransport) CreateBIG(uint8, interfaces.BIGParams) (interfaces.GroupHandle, error) {
	return 1, nil
}

func (m *mockTransport) TerminateBIG(interfaces.GroupHandle) error              { return nil }
func (m *mockTransport) Connect(interfaces.ChannelID, interfaces.ConnID) error { return nil }
func (m *mockTransport) Disconnect(interfaces.ChannelID) error                 { return nil }

func (m *mockTransport) Send(_ interfaces.ChannelID, payload []byte, _ uint16, _ uint32) error {
	m.sends = append(m.sends, payload)
	return nil
}

type fixture struct {
	transport *mockTransport
	isos      *iso.Pool
	ctrl      *mockController
	pool      *EndpointPool
}

func newFixture(kind Kind) *fixture {
	tr := &mockTransport{}
	isos := iso.NewPool(8, tr)
	ctrl := newMockController(isos)
	f := &fixture{transport: tr, isos: isos, ctrl: ctrl}
	if kind == KindBroadcastSource {
		f.pool = NewBroadcastPool(pool.Handle(0x00010000), 4, isos, ctrl)
	} else {
		f.pool = NewUnicastPool(1, 4, isos, ctrl)
	}
	return f
}
