package bap

import (
	"math/rand"
	"testing"

	"github.com/opd-ai/leaudio/codec"
	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQoS() *codec.QoS {
	q := codec.LC3Preset16_2_1(codec.ContextMedia).QoS
	return &q
}

// walk drives ep through count random graph edges and checks the Idle and
// CodecConfigured invariants after every step.
func walk(t *testing.T, f *fixture, ep *Endpoint, rng *rand.Rand, count int) {
	t.Helper()
	states := []State{
		StateIdle, StateCodecConfigured, StateQosConfigured, StateEnabling,
		StateStreaming, StateDisabling, StateReleasing,
	}
	for i := 0; i < count; i++ {
		var next []State
		for _, s := range states {
			if Allowed(ep.kind, ep.dir, ep.state, s) {
				next = append(next, s)
			}
		}
		require.NotEmpty(t, next, "state %s has no successor", ep.state)
		to := next[rng.Intn(len(next))]

		if ep.state == StateIdle && ep.stream == nil {
			require.NoError(t, NewStream(nil).Attach(ep, codec.NewConfig(codec.ID{Format: codec.FormatLC3})))
		}
		if to == StateQosConfigured {
			ep.QoS = testQoS()
		}

		require.NoError(t, ep.SetState(to))

		switch ep.state {
		case StateIdle:
			assert.Nil(t, ep.Stream(), "stream attached in idle")
			assert.True(t, ep.Binding().IsZero(), "binding held in idle")
			assert.Nil(t, ep.Codec)
			assert.Nil(t, ep.QoS)
		case StateCodecConfigured:
			assert.True(t, ep.Binding().IsZero(), "binding held in codec configured")
		case StateQosConfigured:
			assert.False(t, ep.Binding().IsZero(), "qos configured endpoint has a binding")
		}
	}
}

func TestStateInvariantsAlongGraph(t *testing.T) {
	for _, dir := range []Dir{DirSink, DirSource} {
		t.Run(dir.String(), func(t *testing.T) {
			f := newFixture(KindUnicastClient)
			ep, err := f.pool.Alloc(dir, 1, 0x10)
			require.NoError(t, err)
			walk(t, f, ep, rand.New(rand.NewSource(int64(dir))), 500)
		})
	}
	t.Run("broadcast", func(t *testing.T) {
		f := newFixture(KindBroadcastSource)
		ep, err := f.pool.Alloc(DirSource, 1, 0)
		require.NoError(t, err)
		walk(t, f, ep, rand.New(rand.NewSource(7)), 200)
	})
}

func TestUnexpectedTransitionIsAppliedAndReported(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)

	err = ep.SetState(StateStreaming)
	assert.ErrorIs(t, err, ErrUnexpectedTransition)
	assert.Equal(t, StateStreaming, ep.State(), "peer state is authoritative")
}

func TestIdleEntryReleasesEverything(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)

	released := 0
	s := NewStream(&StreamOps{Released: func(*Stream) { released++ }})
	require.NoError(t, s.Attach(ep, codec.NewConfig(codec.ID{Format: codec.FormatLC3})))
	require.NoError(t, ep.SetState(StateCodecConfigured))
	ep.QoS = testQoS()
	require.NoError(t, ep.SetState(StateQosConfigured))
	h := ep.Binding()
	require.False(t, h.IsZero())
	assert.Equal(t, iso.Owner(ep), f.isos.Owner(h, iso.DirTX))

	require.NoError(t, ep.SetState(StateReleasing))
	require.NoError(t, ep.SetState(StateIdle))

	assert.Equal(t, 1, released)
	assert.Nil(t, s.Endpoint())
	assert.Nil(t, ep.Stream())
	assert.Nil(t, f.isos.Owner(h, iso.DirTX))
}

func TestCodecReconfigurationReleasesBinding(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSource, 2, 0x12)
	require.NoError(t, err)
	require.NoError(t, ep.SetState(StateCodecConfigured))
	require.NoError(t, ep.SetState(StateQosConfigured))
	h := ep.Binding()
	require.False(t, h.IsZero())
	assert.Equal(t, iso.Owner(ep), f.isos.Owner(h, iso.DirRX), "source ASE owns the receive half")

	require.NoError(t, ep.SetState(StateCodecConfigured))
	assert.True(t, ep.Binding().IsZero())
	assert.Nil(t, f.isos.Owner(h, iso.DirRX))
}

func TestQosConfiguredSetsBindingParams(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)
	require.NoError(t, ep.SetState(StateCodecConfigured))
	ep.QoS = testQoS()
	require.NoError(t, ep.SetState(StateQosConfigured))

	params, ok := f.isos.Params(ep.Binding(), iso.DirTX)
	require.True(t, ok)
	assert.Equal(t, interfaces.ChannelQoS{SDU: 40, PHY: uint8(codec.PHY2M), RTN: 2}, params)

	ep.ResetISOParams()
	_, ok = f.isos.Params(ep.Binding(), iso.DirTX)
	assert.False(t, ok)
}

func TestSubmitChecksState(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSink, 1, 0x10)
	require.NoError(t, err)
	s := NewStream(nil)

	assert.ErrorIs(t, s.Enable(nil), ErrNotAttached)
	require.NoError(t, s.Attach(ep, nil))

	assert.ErrorIs(t, s.Enable(nil), ErrInvalidState)
	assert.NoError(t, s.Release(), "release from idle is a no-op")
	assert.Empty(t, f.ctrl.submitted)

	ep.state = StateQosConfigured
	require.NoError(t, s.Enable([]codec.LTV{{Type: codec.MetaTypeStreamingContexts, Value: []byte{0x04, 0x00}}}))
	require.Len(t, f.ctrl.submitted, 1)
	assert.Equal(t, OpEnable, f.ctrl.submitted[0].Opcode())

	assert.ErrorIs(t, ep.Submit(nil), ErrInvalidArgument)
}

func TestRequestOpcodes(t *testing.T) {
	reqs := map[Opcode]Request{
		OpConfigCodec:    ConfigCodec{},
		OpConfigQoS:      ConfigQoS{},
		OpEnable:         Enable{},
		OpStart:          Start{},
		OpDisable:        Disable{},
		OpStop:           Stop{},
		OpUpdateMetadata: UpdateMetadata{},
		OpRelease:        Release{},
	}
	for op, req := range reqs {
		assert.Equal(t, op, req.Opcode(), op.String())
	}
}

func TestISOEventsReachStreamAndController(t *testing.T) {
	f := newFixture(KindUnicastClient)
	ep, err := f.pool.Alloc(DirSource, 1, 0x10)
	require.NoError(t, err)

	var connected, received int
	s := NewStream(&StreamOps{
		Connected: func(*Stream) { connected++ },
		Recv:      func(_ *Stream, _ interfaces.RecvInfo, p []byte) { received += len(p) },
	})
	require.NoError(t, s.Attach(ep, nil))
	require.NoError(t, ep.SetState(StateCodecConfigured))
	require.NoError(t, ep.SetState(StateQosConfigured))
	require.NoError(t, ep.ConnectISO())

	ch := iso.ChannelID(ep.Binding())
	f.transport.listener.Connected(ch)
	f.transport.listener.Received(ch, interfaces.RecvInfo{Valid: true}, []byte{1, 2, 3})

	assert.Equal(t, 1, connected)
	assert.Equal(t, 3, received)
	assert.Equal(t, []*Endpoint{ep}, f.ctrl.connected)
	assert.Equal(t, iso.ChannelConnected, ep.ISOState())
}
