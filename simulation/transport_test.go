package simulation

import (
	"testing"

	"github.com/opd-ai/leaudio/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transportFixture struct {
	sched    *Scheduler
	tr       *Transport
	listener *mockListener
	observer *mockObserver
}

func newTransportFixture() *transportFixture {
	f := &transportFixture{
		sched:    NewScheduler(),
		listener: &mockListener{},
		observer: &mockObserver{},
	}
	f.tr = NewTransport(f.sched)
	f.tr.RegisterListener(f.listener)
	f.tr.Observe(testConn, f.observer)
	return f
}

func cigParams(channels ...interfaces.ChannelID) interfaces.CIGParams {
	q := &interfaces.ChannelQoS{SDU: 100, PHY: 2, RTN: 5}
	p := interfaces.CIGParams{CIGID: 1, Interval: 10000, Latency: 20}
	for i, ch := range channels {
		p.Channels = append(p.Channels, interfaces.CISParams{Channel: ch, CISID: uint8(i), TX: q})
	}
	return p
}

func TestTransportCISLifecycle(t *testing.T) {
	f := newTransportFixture()

	h, err := f.tr.CreateCIG(cigParams(7, 8))
	require.NoError(t, err)
	p, ok := f.tr.CIG(h)
	require.True(t, ok)
	assert.Len(t, p.Channels, 2)

	assert.ErrorIs(t, f.tr.Send(7, []byte{1}, 0, 0), ErrNotConnected)

	require.NoError(t, f.tr.Connect(8, testConn))
	require.NoError(t, f.tr.Connect(8, testConn), "connecting twice is not an error")
	assert.False(t, f.tr.Connected(8), "established only when the scheduler runs")
	assert.Empty(t, f.listener.events)

	f.sched.Drain()
	assert.True(t, f.tr.Connected(8))
	assert.Equal(t, []string{"connected 8"}, f.listener.events)
	assert.Equal(t, []string{"up 1/1"}, f.observer.events)

	require.NoError(t, f.tr.Send(8, []byte{0xAA, 0xBB}, 3, 100))
	require.NoError(t, f.tr.Receive(8, []byte{0xCC}, 9, 200))
	f.sched.Drain()
	sent := f.tr.SentSDUs()
	require.Len(t, sent, 1)
	assert.Equal(t, SDU{Channel: 8, Payload: []byte{0xAA, 0xBB}, Sequence: 3, Timestamp: 100}, sent[0])
	assert.Equal(t, [][]byte{{0xCC}}, f.listener.received)

	assert.ErrorIs(t, f.tr.TerminateCIG(h), ErrGroupBusy)
	assert.ErrorIs(t, f.tr.ReconfigureCIG(h, cigParams(7, 8)), ErrGroupBusy)

	require.NoError(t, f.tr.Disconnect(8))
	assert.ErrorIs(t, f.tr.Disconnect(8), ErrNotConnected)
	f.sched.Drain()
	assert.Contains(t, f.listener.events, "disconnected 8 0x16")
	assert.Equal(t, "lost 1/1 0x16", f.observer.events[len(f.observer.events)-1])

	require.NoError(t, f.tr.ReconfigureCIG(h, cigParams(9)))
	assert.ErrorIs(t, f.tr.Connect(8, testConn), ErrUnknownChannel)
	require.NoError(t, f.tr.TerminateCIG(h))
	_, ok = f.tr.CIG(h)
	assert.False(t, ok)
}

func TestTransportConnectChecks(t *testing.T) {
	f := newTransportFixture()

	assert.ErrorIs(t, f.tr.Connect(1, testConn), ErrUnknownChannel)

	_, err := f.tr.CreateCIG(cigParams(1))
	require.NoError(t, err)
	assert.ErrorIs(t, f.tr.Connect(1, 42), ErrNoObserver)

	_, err = f.tr.CreateCIG(cigParams(1))
	assert.ErrorIs(t, err, ErrChannelInUse)

	_, err = f.tr.CreateCIG(interfaces.CIGParams{})
	assert.ErrorIs(t, err, interfaces.ErrNoChannels)

	assert.ErrorIs(t, f.tr.TerminateCIG(99), ErrUnknownGroup)
	assert.ErrorIs(t, f.tr.Receive(1, nil, 0, 0), ErrNotConnected)
}

func TestTransportDropLink(t *testing.T) {
	f := newTransportFixture()
	_, err := f.tr.CreateCIG(cigParams(3))
	require.NoError(t, err)

	assert.ErrorIs(t, f.tr.DropLink(3, ReasonTimeout), ErrNotConnected)
	require.NoError(t, f.tr.Connect(3, testConn))
	f.sched.Drain()

	require.NoError(t, f.tr.DropLink(3, ReasonTimeout))
	f.sched.Drain()
	assert.Equal(t, "disconnected 3 0x08", f.listener.events[len(f.listener.events)-1])
	assert.Equal(t, "lost 1/0 0x08", f.observer.events[len(f.observer.events)-1])
	assert.False(t, f.tr.Connected(3))
}

func TestTransportBIGLifecycle(t *testing.T) {
	f := newTransportFixture()

	params := interfaces.BIGParams{
		Channels: []interfaces.ChannelID{4, 5},
		QoS:      interfaces.ChannelQoS{SDU: 40, PHY: 2, RTN: 2},
		Interval: 10000,
		Latency:  10,
	}
	h, err := f.tr.CreateBIG(2, params)
	require.NoError(t, err)
	got, adv, ok := f.tr.BIG(h)
	require.True(t, ok)
	assert.Equal(t, uint8(2), adv)
	assert.Equal(t, params.Channels, got.Channels)

	f.sched.Drain()
	assert.Equal(t, []string{"connected 4", "connected 5"}, f.listener.events)
	assert.Empty(t, f.observer.events, "broadcast channels are not reported to peers")
	require.NoError(t, f.tr.Send(5, []byte{1}, 0, 0))

	require.NoError(t, f.tr.TerminateBIG(h))
	assert.ErrorIs(t, f.tr.TerminateBIG(h), ErrUnknownGroup)
	f.sched.Drain()
	assert.Contains(t, f.listener.events, "disconnected 4 0x16")
	assert.Contains(t, f.listener.events, "disconnected 5 0x16")

	_, err = f.tr.CreateBIG(2, params)
	assert.NoError(t, err, "channels are free again after termination")
}

func TestTransportFailNext(t *testing.T) {
	f := newTransportFixture()
	f.tr.FailNext("CreateCIG", ErrGroupBusy)

	_, err := f.tr.CreateCIG(cigParams(1))
	assert.ErrorIs(t, err, ErrGroupBusy)
	_, err = f.tr.CreateCIG(cigParams(1))
	assert.NoError(t, err, "injected failures fire once")
}
