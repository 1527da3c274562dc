package bap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedUnicastGraph(t *testing.T) {
	tests := []struct {
		name     string
		dir      Dir
		from, to State
		want     bool
	}{
		{"idle to codec", DirSink, StateIdle, StateCodecConfigured, true},
		{"idle to qos", DirSink, StateIdle, StateQosConfigured, false},
		{"codec reconfigure", DirSink, StateCodecConfigured, StateCodecConfigured, true},
		{"qos back to codec", DirSource, StateQosConfigured, StateCodecConfigured, true},
		{"qos to enabling", DirSink, StateQosConfigured, StateEnabling, true},
		{"enabling to streaming", DirSink, StateEnabling, StateStreaming, true},
		{"source streaming to disabling", DirSource, StateStreaming, StateDisabling, true},
		{"sink streaming to disabling", DirSink, StateStreaming, StateDisabling, false},
		{"sink streaming to qos", DirSink, StateStreaming, StateQosConfigured, true},
		{"source streaming to qos", DirSource, StateStreaming, StateQosConfigured, false},
		{"sink enabling to qos", DirSink, StateEnabling, StateQosConfigured, true},
		{"disabling to qos", DirSource, StateDisabling, StateQosConfigured, true},
		{"streaming to releasing", DirSink, StateStreaming, StateReleasing, true},
		{"releasing to idle", DirSink, StateReleasing, StateIdle, true},
		{"releasing to cached codec", DirSource, StateReleasing, StateCodecConfigured, true},
		{"streaming to idle", DirSink, StateStreaming, StateIdle, false},
		{"idle to idle", DirSink, StateIdle, StateIdle, false},
		{"undefined state", DirSink, StateIdle, State(0x07), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allowed(KindUnicastClient, tt.dir, tt.from, tt.to))
		})
	}
}

func TestAllowedBroadcastGraph(t *testing.T) {
	assert.True(t, Allowed(KindBroadcastSource, DirSource, StateIdle, StateQosConfigured))
	assert.True(t, Allowed(KindBroadcastSource, DirSource, StateQosConfigured, StateEnabling))
	assert.True(t, Allowed(KindBroadcastSource, DirSource, StateEnabling, StateStreaming))
	assert.True(t, Allowed(KindBroadcastSource, DirSource, StateStreaming, StateQosConfigured))
	assert.True(t, Allowed(KindBroadcastSource, DirSource, StateQosConfigured, StateIdle))
	assert.False(t, Allowed(KindBroadcastSource, DirSource, StateIdle, StateCodecConfigured))
	assert.False(t, Allowed(KindBroadcastSource, DirSource, StateStreaming, StateDisabling))
	assert.False(t, Allowed(KindBroadcastSource, DirSource, StateReleasing, StateIdle))
}

func TestValidFrom(t *testing.T) {
	assert.True(t, ValidFrom(OpConfigCodec, StateIdle))
	assert.True(t, ValidFrom(OpConfigCodec, StateQosConfigured))
	assert.False(t, ValidFrom(OpConfigCodec, StateEnabling))
	assert.False(t, ValidFrom(OpConfigQoS, StateIdle))
	assert.True(t, ValidFrom(OpEnable, StateQosConfigured))
	assert.True(t, ValidFrom(OpUpdateMetadata, StateStreaming))
	assert.False(t, ValidFrom(OpStart, StateStreaming))
	assert.True(t, ValidFrom(OpStop, StateDisabling))
	assert.False(t, ValidFrom(OpRelease, StateIdle))
	assert.False(t, ValidFrom(OpRelease, StateReleasing))
	assert.False(t, ValidFrom(Opcode(0x09), StateIdle))
}
