package iso

import (
	"testing"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, capacity int) (*Pool, *mockTransport) {
	t.Helper()
	tr := &mockTransport{}
	p := NewPool(capacity, tr)
	require.Equal(t, p, tr.listener, "pool registers itself as listener")
	return p, tr
}

var testKey = GroupKey{Kind: GroupUnicast, ID: pool.Handle(0x00010000)}

func TestBindOwnership(t *testing.T) {
	p, _ := newTestPool(t, 2)
	h, err := p.New(testKey)
	require.NoError(t, err)

	sink, source, other := &mockOwner{}, &mockOwner{}, &mockOwner{}
	require.NoError(t, p.Bind(h, DirTX, sink))
	require.NoError(t, p.Bind(h, DirTX, sink), "rebinding the same owner is a no-op")
	require.NoError(t, p.Bind(h, DirRX, source))

	assert.ErrorIs(t, p.Bind(h, DirTX, other), ErrDirectionInUse)
	assert.Equal(t, Owner(sink), p.Owner(h, DirTX))
	assert.Equal(t, Owner(source), p.Owner(h, DirRX))

	assert.ErrorIs(t, p.Free(h), ErrBindingInUse)
	assert.ErrorIs(t, p.Unbind(h, other), ErrNotOwner)
	require.NoError(t, p.Unbind(h, sink))
	require.NoError(t, p.Unbind(h, source))
	require.NoError(t, p.Free(h))
	assert.False(t, p.Valid(h))
	assert.ErrorIs(t, p.Free(h), pool.ErrStaleHandle)
}

func TestParamsOwnedPerDirection(t *testing.T) {
	p, _ := newTestPool(t, 1)
	h, err := p.New(testKey)
	require.NoError(t, err)

	sink, source := &mockOwner{}, &mockOwner{}
	require.NoError(t, p.Bind(h, DirTX, sink))
	require.NoError(t, p.Bind(h, DirRX, source))

	q := &codec.QoS{SDU: 40, PHY: codec.PHY2M, RTN: 2}
	require.NoError(t, p.SetParams(h, DirTX, sink, ParamsFromQoS(q)))
	assert.ErrorIs(t, p.SetParams(h, DirTX, source, interfaces.ChannelQoS{}), ErrNotOwner)

	got, ok := p.Params(h, DirTX)
	require.True(t, ok)
	assert.Equal(t, interfaces.ChannelQoS{SDU: 40, PHY: 2, RTN: 2}, got)

	require.NoError(t, p.ResetParams(h, source), "resetting another half leaves tx intact")
	_, ok = p.Params(h, DirTX)
	assert.True(t, ok)

	require.NoError(t, p.ResetParams(h, sink))
	_, ok = p.Params(h, DirTX)
	assert.False(t, ok)
}

func TestConnectIsIdempotent(t *testing.T) {
	p, tr := newTestPool(t, 1)
	h, err := p.New(testKey)
	require.NoError(t, err)

	require.NoError(t, p.Connect(h, 1))
	require.NoError(t, p.Connect(h, 1))
	assert.Len(t, tr.connects, 1)
	assert.Equal(t, ChannelConnecting, p.State(h))

	p.Connected(ChannelID(h))
	require.NoError(t, p.Connect(h, 1))
	assert.Len(t, tr.connects, 1)
	assert.Equal(t, ChannelConnected, p.State(h))
}

func TestConnectFailureRestoresState(t *testing.T) {
	p, tr := newTestPool(t, 1)
	tr.connectErr = errMockConnect
	h, err := p.New(testKey)
	require.NoError(t, err)

	assert.ErrorIs(t, p.Connect(h, 1), errMockConnect)
	assert.Equal(t, ChannelDisconnected, p.State(h))
}

func TestEventsRouteToOwners(t *testing.T) {
	p, tr := newTestPool(t, 1)
	h, err := p.New(testKey)
	require.NoError(t, err)

	sink, source := &mockOwner{}, &mockOwner{}
	require.NoError(t, p.Bind(h, DirTX, sink))
	require.NoError(t, p.Bind(h, DirRX, source))
	require.NoError(t, p.Connect(h, 1))

	ch := ChannelID(h)
	tr.listener.Connected(ch)
	assert.Equal(t, 1, sink.connected)
	assert.Equal(t, 1, source.connected)

	require.NoError(t, p.Send(h, sink, []byte{1, 2}, 0, 0))
	assert.ErrorIs(t, p.Send(h, source, []byte{1}, 0, 0), ErrNotOwner)
	tr.listener.Sent(ch)
	assert.Equal(t, 1, sink.sent)
	assert.Equal(t, 0, source.sent)

	tr.listener.Received(ch, interfaces.RecvInfo{Valid: true}, []byte{9})
	assert.Equal(t, [][]byte{{9}}, source.received)
	assert.Empty(t, sink.received)

	require.NoError(t, p.Disconnect(h))
	assert.Equal(t, ChannelDisconnecting, p.State(h))
	tr.listener.Disconnected(ch, 0x13)
	assert.Equal(t, []uint8{0x13}, sink.disconnected)
	assert.Equal(t, []uint8{0x13}, source.disconnected)
	assert.ErrorIs(t, p.Send(h, sink, []byte{1}, 1, 0), ErrNotConnected)
}

func TestStaleChannelEventsAreIgnored(t *testing.T) {
	p, tr := newTestPool(t, 1)
	h, err := p.New(testKey)
	require.NoError(t, err)
	require.NoError(t, p.Free(h))

	assert.NotPanics(t, func() {
		tr.listener.Connected(ChannelID(h))
		tr.listener.Received(ChannelID(h), interfaces.RecvInfo{}, nil)
	})
}

func TestPoolExhaustion(t *testing.T) {
	p, _ := newTestPool(t, 1)
	_, err := p.New(testKey)
	require.NoError(t, err)
	_, err = p.New(testKey)
	assert.ErrorIs(t, err, pool.ErrExhausted)
}

func TestBeginConnectAndDisconnect(t *testing.T) {
	p, _ := newTestPool(t, 1)
	h, err := p.New(GroupKey{Kind: GroupBroadcast, ID: testKey.ID})
	require.NoError(t, err)

	p.BeginDisconnect(h)
	assert.Equal(t, ChannelDisconnected, p.State(h))
	p.BeginConnect(h)
	assert.Equal(t, ChannelConnecting, p.State(h))
	p.BeginDisconnect(h)
	assert.Equal(t, ChannelDisconnecting, p.State(h))
}
