package bap

import (
	"testing"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/iso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachRejectsSecondStream(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)

	cfgA := codec.NewConfig(codec.ID{Format: codec.FormatLC3})
	cfgB := codec.NewConfig(codec.ID{Format: codec.FormatTransparent})
	a, b := NewStream(nil), NewStream(nil)
	require.NoError(t, a.Attach(ep, cfgA))

	err = b.Attach(ep, cfgB)
	assert.ErrorIs(t, err, ErrEndpointInUse)
	assert.Nil(t, b.Endpoint())
	assert.Nil(t, b.Codec)
	assert.Same(t, a, ep.Stream())
	assert.Same(t, ep, a.Endpoint())
	assert.Same(t, cfgA, a.Codec)
}

func TestAttachSameEndpointUpdatesCodec(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)

	s := NewStream(nil)
	require.NoError(t, s.Attach(ep, codec.NewConfig(codec.ID{Format: codec.FormatLC3})))
	next := codec.LC3Preset48_2_1(codec.ContextMedia).Codec
	require.NoError(t, s.Attach(ep, next))
	assert.Same(t, next, s.Codec)
	assert.Same(t, s, ep.Stream())
}

func TestAttachToDifferentEndpointWithoutDetach(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep1, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)
	ep2, err := f.pool.Alloc(DirSink, 2, 0x11)
	require.NoError(t, err)

	s := NewStream(nil)
	require.NoError(t, s.Attach(ep1, nil))
	assert.ErrorIs(t, s.Attach(ep2, nil), ErrStreamAttached)
	assert.Nil(t, ep2.Stream())
	assert.Same(t, ep1, s.Endpoint())

	s.Detach()
	assert.Nil(t, ep1.Stream())
	require.NoError(t, s.Attach(ep2, nil))
	assert.Same(t, s, ep2.Stream())
}

func TestSendRequiresStreaming(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)
	s := NewStream(nil)

	assert.ErrorIs(t, s.Send([]byte{1}, 0, 0), ErrNotAttached)
	require.NoError(t, s.Attach(ep, nil))

	for _, st := range []State{StateIdle, StateCodecConfigured, StateQosConfigured, StateEnabling, StateDisabling, StateReleasing} {
		ep.state = st
		assert.ErrorIs(t, s.Send([]byte{1}, 0, 0), ErrNotReady, st.String())
	}
	assert.Empty(t, f.transport.sends)

	ep.state = StateCodecConfigured
	ep.QoS = testQoS()
	require.NoError(t, ep.SetState(StateQosConfigured))
	require.NoError(t, ep.ConnectISO())
	f.transport.listener.Connected(iso.ChannelID(ep.Binding()))
	require.NoError(t, ep.SetState(StateEnabling))
	require.NoError(t, ep.SetState(StateStreaming))

	require.NoError(t, s.Send([]byte{0xAA, 0xBB}, 1, 100))
	assert.Equal(t, [][]byte{{0xAA, 0xBB}}, f.transport.sends)
}

func TestPoolResetForcesIdle(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)

	released := false
	s := NewStream(&StreamOps{Released: func(*Stream) { released = true }})
	require.NoError(t, s.Attach(ep, nil))
	require.NoError(t, ep.SetState(StateCodecConfigured))
	require.NoError(t, ep.SetState(StateQosConfigured))
	require.Equal(t, 1, f.isos.Len())

	f.pool.Reset()

	assert.True(t, released)
	assert.Nil(t, s.Endpoint())
	assert.Equal(t, 0, f.pool.Len())
	assert.Nil(t, f.pool.Find(DirSink, 1))
}

func TestPoolAllocAndFind(t *testing.T) {
	f := newFixture(KindUnicastClient)
	sink, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)
	_, err = f.pool.Alloc(DirSource, 1, 0x20)
	require.NoError(t, err)

	_, err = f.pool.Alloc(DirSink, 1, 0x30)
	assert.ErrorIs(t, err, ErrEndpointExists)

	assert.Same(t, sink, f.pool.Find(DirSink, 1))
	assert.Same(t, sink, f.pool.FindByHandle(0x10))
	assert.Nil(t, f.pool.FindByHandle(0x99))
	assert.Equal(t, 1, f.pool.Count(DirSource))

	require.NoError(t, f.pool.Free(sink))
	assert.Error(t, f.pool.Free(sink))
}
