package broadcast

import (
	"errors"

	"github.com/opd-ai/leaudio/interfaces"
)

var errMock = errors.New("mock failure")

// mockTransport records BIG operations.
type mockTransport struct {
	listener     interfaces.ISOListener
	bigs         []interfaces.BIGParams
	advs         []uint8
	terminated   []interfaces.GroupHandle
	createErr    error
	terminateErr error
}

func (m *mockTransport) RegisterListener(l interfaces.ISOListener) { m.listener = l }

func (m *mockTransport) CreateCIG(interfaces.CIGParams) (interfaces.GroupHandle, error) {
	return 0, errMock
}

func (m *mockTransport) ReconfigureCIG(interfaces.GroupHandle, interfaces.CIGParams) error {
	return errMock
}

func (m *mockTransport) TerminateCIG(interfaces.GroupHandle) error { return errMock }

func (m *mockTransport) CreateBIG(adv uint8, p interfaces.BIGParams) (interfaces.GroupHandle, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	if err := p.Validate(); err != nil {
		return 0, err
	}
	m.bigs = append(m.bigs, p)
	m.advs = append(m.advs, adv)
	return interfaces.GroupHandle(0x100 + len(m.bigs)), nil
}

func (m *mockTransport) TerminateBIG(h interfaces.GroupHandle) error {
	if m.terminateErr != nil {
		return m.terminateErr
	}
	m.terminated = append(m.terminated, h)
	return nil
}

func (m *mockTransport) Connect(interfaces.ChannelID, interfaces.ConnID) error { return errMock }

func (m *mockTransport) Disconnect(interfaces.ChannelID) error { return errMock }

func (m *mockTransport) Send(interfaces.ChannelID, []byte, uint16, uint32) error { return nil }

// sequenceReader replays fixed bytes, then repeats the final chunk.
type sequenceReader struct {
	chunks [][]byte
}

func (r *sequenceReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, errMock
	}
	n := copy(p, r.chunks[0])
	if len(r.chunks) > 1 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}
