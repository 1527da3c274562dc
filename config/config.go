package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/opd-ai/leaudio/limits"
	"github.com/sirupsen/logrus"
)

// Config Codec target latency values (ASCS 5.1).
const (
	TargetLatencyLow      uint8 = 0x01
	TargetLatencyBalanced uint8 = 0x02
	TargetLatencyHigh     uint8 = 0x03
)

// Config Codec target PHY values (ASCS 5.1).
const (
	TargetPHY1M    uint8 = 0x01
	TargetPHY2M    uint8 = 0x02
	TargetPHYCoded uint8 = 0x03
)

// Options configures pool capacities and protocol defaults.
type Options struct {
	ASEsPerDirection int
	MaxConnections   int
	UnicastGroups    int
	GroupStreams     int
	BroadcastSources int
	Subgroups        int
	BISPerSource     int
	ISOChannels      int

	TargetLatency uint8
	TargetPHY     uint8

	LogLevel logrus.Level
}

// NewOptions returns the default options.
func NewOptions() *Options {
	return &Options{
		ASEsPerDirection: limits.DefaultASEsPerDirection,
		MaxConnections:   limits.DefaultConnections,
		UnicastGroups:    limits.DefaultUnicastGroups,
		GroupStreams:     limits.DefaultGroupStreams,
		BroadcastSources: limits.DefaultBroadcastSources,
		Subgroups:        limits.DefaultSubgroups,
		BISPerSource:     limits.DefaultBISPerSource,
		ISOChannels:      limits.DefaultISOChannels,
		TargetLatency:    TargetLatencyBalanced,
		TargetPHY:        TargetPHY2M,
		LogLevel:         logrus.InfoLevel,
	}
}

// FromEnv returns the default options with LEAUDIO_* environment overrides applied.
func FromEnv() *Options {
	opts := NewOptions()
	applyEnvironmentOverrides(opts, os.Getenv)
	logConfigurationInfo(opts)
	return opts
}

// Validate checks every option against its ceiling.
func (o *Options) Validate() error {
	checks := []struct {
		name      string
		size, max int
	}{
		{"ASEsPerDirection", o.ASEsPerDirection, limits.MaxASEsPerDirection},
		{"MaxConnections", o.MaxConnections, limits.MaxConnections},
		{"UnicastGroups", o.UnicastGroups, limits.MaxUnicastGroups},
		{"GroupStreams", o.GroupStreams, limits.MaxGroupStreams},
		{"BroadcastSources", o.BroadcastSources, limits.MaxBroadcastSources},
		{"Subgroups", o.Subgroups, limits.MaxSubgroups},
		{"BISPerSource", o.BISPerSource, limits.MaxBISPerBIG},
		{"ISOChannels", o.ISOChannels, limits.MaxISOChannels},
	}
	for _, c := range checks {
		if err := limits.ValidatePoolSize(c.name, c.size, c.max); err != nil {
			return err
		}
	}
	if o.TargetLatency < TargetLatencyLow || o.TargetLatency > TargetLatencyHigh {
		return fmt.Errorf("TargetLatency 0x%02x out of range", o.TargetLatency)
	}
	if o.TargetPHY < TargetPHY1M || o.TargetPHY > TargetPHYCoded {
		return fmt.Errorf("TargetPHY 0x%02x out of range", o.TargetPHY)
	}
	return nil
}

// Apply sets the global logrus level from the options.
func (o *Options) Apply() {
	logrus.SetLevel(o.LogLevel)
}

type intSetting struct {
	env    string
	target *int
	max    int
}

// applyEnvironmentOverrides updates opts from LEAUDIO_* variables read through getenv.
func applyEnvironmentOverrides(opts *Options, getenv func(string) string) {
	ints := []intSetting{
		{"LEAUDIO_ASES_PER_DIRECTION", &opts.ASEsPerDirection, limits.MaxASEsPerDirection},
		{"LEAUDIO_MAX_CONNECTIONS", &opts.MaxConnections, limits.MaxConnections},
		{"LEAUDIO_UNICAST_GROUPS", &opts.UnicastGroups, limits.MaxUnicastGroups},
		{"LEAUDIO_GROUP_STREAMS", &opts.GroupStreams, limits.MaxGroupStreams},
		{"LEAUDIO_BROADCAST_SOURCES", &opts.BroadcastSources, limits.MaxBroadcastSources},
		{"LEAUDIO_SUBGROUPS", &opts.Subgroups, limits.MaxSubgroups},
		{"LEAUDIO_BIS_PER_SOURCE", &opts.BISPerSource, limits.MaxBISPerBIG},
		{"LEAUDIO_ISO_CHANNELS", &opts.ISOChannels, limits.MaxISOChannels},
	}
	for _, s := range ints {
		parseIntSetting(s, getenv)
	}
	parseByteSetting("LEAUDIO_TARGET_LATENCY", &opts.TargetLatency, TargetLatencyLow, TargetLatencyHigh, getenv)
	parseByteSetting("LEAUDIO_TARGET_PHY", &opts.TargetPHY, TargetPHY1M, TargetPHYCoded, getenv)
	parseLogLevel(opts, getenv)
}

// parseIntSetting updates a pool size from its environment variable when the
// value parses and lies within [1, max].
func parseIntSetting(s intSetting, getenv func(string) string) {
	raw := getenv(s.env)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     s.env,
			"value":       raw,
			"error":       err.Error(),
			"using_value": *s.target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	if err := limits.ValidatePoolSize(s.env, v, s.max); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     s.env,
			"value":       v,
			"max":         s.max,
			"using_value": *s.target,
		}).Warn("Environment variable out of bounds, using default")
		return
	}
	*s.target = v
}

func parseByteSetting(env string, target *uint8, min, max uint8, getenv func(string) string) {
	raw := getenv(env)
	if raw == "" {
		return
	}
	v, err := strconv.ParseUint(raw, 0, 8)
	if err != nil || uint8(v) < min || uint8(v) > max {
		logrus.WithFields(logrus.Fields{
			"function":    "parseByteSetting",
			"env_var":     env,
			"value":       raw,
			"min":         min,
			"max":         max,
			"using_value": *target,
		}).Warn("Invalid environment variable, using default")
		return
	}
	*target = uint8(v)
}

func parseLogLevel(opts *Options, getenv func(string) string) {
	raw := getenv("LEAUDIO_LOG_LEVEL")
	if raw == "" {
		return
	}
	level, err := logrus.ParseLevel(raw)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseLogLevel",
			"env_var":     "LEAUDIO_LOG_LEVEL",
			"value":       raw,
			"error":       err.Error(),
			"using_value": opts.LogLevel.String(),
		}).Warn("Failed to parse log level, using default")
		return
	}
	opts.LogLevel = level
}

// logConfigurationInfo logs the final options.
func logConfigurationInfo(opts *Options) {
	logrus.WithFields(logrus.Fields{
		"function":           "FromEnv",
		"ases_per_direction": opts.ASEsPerDirection,
		"max_connections":    opts.MaxConnections,
		"unicast_groups":     opts.UnicastGroups,
		"group_streams":      opts.GroupStreams,
		"broadcast_sources":  opts.BroadcastSources,
		"subgroups":          opts.Subgroups,
		"bis_per_source":     opts.BISPerSource,
		"iso_channels":       opts.ISOChannels,
		"target_latency":     opts.TargetLatency,
		"target_phy":         opts.TargetPHY,
		"log_level":          opts.LogLevel.String(),
	}).Info("Loaded LE Audio options")
}
