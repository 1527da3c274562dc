// Package config holds the construction-time options of the LE Audio engine:
// pool capacities, control point defaults and the log level.
//
// Options start from NewOptions defaults and may be overridden from the
// environment with FromEnv:
//
//	LEAUDIO_ASES_PER_DIRECTION   sink/source ASEs tracked per connection
//	LEAUDIO_MAX_CONNECTIONS      connections tracked by the unicast client
//	LEAUDIO_UNICAST_GROUPS       unicast group pool size
//	LEAUDIO_GROUP_STREAMS        streams per unicast group
//	LEAUDIO_BROADCAST_SOURCES    broadcast source pool size
//	LEAUDIO_SUBGROUPS            subgroups per broadcast source
//	LEAUDIO_BIS_PER_SOURCE       BIS per broadcast source
//	LEAUDIO_ISO_CHANNELS         ISO binding pool size
//	LEAUDIO_TARGET_LATENCY       Config Codec target latency (1..3)
//	LEAUDIO_TARGET_PHY           Config Codec target PHY (1..3)
//	LEAUDIO_LOG_LEVEL            logrus level name
//
// Values that fail to parse or fall outside the limits package ceilings are
// logged and ignored, leaving the default in place.
package config
