package iso

import (
	"errors"

	"github.com/opd-ai/leaudio/interfaces"
)

type mockTransport struct {
	listener    interfaces.ISOListener
	connects    []interfaces.ChannelID
	disconnects []interfaces.ChannelID
	sends       [][]byte
	connectErr  error
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

func (m *mockTransport) TerminateBIG(interfaces.GroupHandle) error { return nil }

func (m *mockTransport) Connect(ch interfaces.ChannelID, _ interfaces.ConnID) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connects = append(m.connects, ch)
	return nil
}

func (m *mockTransport) Disconnect(ch interfaces.ChannelID) error {
	m.disconnects = append(m.disconnects, ch)
	return nil
}

func (m *mockTransport) Send(_ interfaces.ChannelID, payload []byte, _ uint16, _ uint32) error {
	m.sends = append(m.sends, payload)
	return nil
}

var errMockConnect = errors.New("mock connect failure")

type mockOwner struct {
	connected    int
	disconnected []uint8
	sent         int
	received     [][]byte
}

func (o *mockOwner) ISOConnected()                { o.connected++ }
func (o *mockOwner) ISODisconnected(reason uint8) { o.disconnected = append(o.disconnected, reason) }
func (o *mockOwner) ISOSent()                     { o.sent++ }

func (o *mockOwner) ISORecv(_ interfaces.RecvInfo, payload []byte) {
	o.received = append(o.received, payload)
}
