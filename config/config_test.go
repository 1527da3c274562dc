package config

import (
	"testing"

	"github.com/opd-ai/leaudio/limits"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestNewOptionsDefaultsAreValid(t *testing.T) {
	opts := NewOptions()
	require.NoError(t, opts.Validate())
	assert.Equal(t, limits.DefaultISOChannels, opts.ISOChannels)
	assert.Equal(t, TargetLatencyBalanced, opts.TargetLatency)
	assert.Equal(t, TargetPHY2M, opts.TargetPHY)
}

func TestEnvironmentOverrides(t *testing.T) {
	opts := NewOptions()
	applyEnvironmentOverrides(opts, envMap(map[string]string{
		"LEAUDIO_ISO_CHANNELS":      "16",
		"LEAUDIO_BROADCAST_SOURCES": "2",
		"LEAUDIO_TARGET_LATENCY":    "1",
		"LEAUDIO_LOG_LEVEL":         "debug",
	}))

	assert.Equal(t, 16, opts.ISOChannels)
	assert.Equal(t, 2, opts.BroadcastSources)
	assert.Equal(t, TargetLatencyLow, opts.TargetLatency)
	assert.Equal(t, logrus.DebugLevel, opts.LogLevel)
	assert.NoError(t, opts.Validate())
}

func TestEnvironmentOverridesIgnoreInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"not a number", map[string]string{"LEAUDIO_ISO_CHANNELS": "many"}},
		{"zero", map[string]string{"LEAUDIO_ISO_CHANNELS": "0"}},
		{"above ceiling", map[string]string{"LEAUDIO_ISO_CHANNELS": "1000"}},
		{"bad phy", map[string]string{"LEAUDIO_TARGET_PHY": "7"}},
		{"bad level", map[string]string{"LEAUDIO_LOG_LEVEL": "loud"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions()
			applyEnvironmentOverrides(opts, envMap(tt.env))
			assert.Equal(t, NewOptions(), opts)
		})
	}
}

func TestValidateRejectsOutOfRangeOptions(t *testing.T) {
	opts := NewOptions()
	opts.BISPerSource = limits.MaxBISPerBIG + 1
	assert.ErrorIs(t, opts.Validate(), limits.ErrCapacityExceeded)

	opts = NewOptions()
	opts.TargetLatency = 0
	assert.Error(t, opts.Validate())

	opts = NewOptions()
	opts.GroupStreams = 0
	assert.Error(t, opts.Validate())
}

func TestFromEnvReadsProcessEnvironment(t *testing.T) {
	t.Setenv("LEAUDIO_SUBGROUPS", "3")
	opts := FromEnv()
	assert.Equal(t, 3, opts.Subgroups)
}
