// Package broadcast implements the BAP broadcast source: sources made of
// codec-homogeneous subgroups, one BIG per source, collision-free broadcast
// ids and the BASE announcement structure.
//
// Create allocates one bap.Endpoint and one ISO binding per stream and
// leaves every endpoint QoS Configured. Start creates the BIG; each
// endpoint turns Streaming when the transport reports its BIS connected.
// Stop terminates the BIG and the endpoints return to QoS Configured as
// their BIS disconnect.
//
//	mgr := broadcast.NewManager(transport, isos, config.NewOptions())
//	src, err := mgr.Create(broadcast.CreateParam{
//		Subgroups: []broadcast.SubgroupParam{{
//			Codec:   preset.Codec,
//			Streams: []broadcast.StreamParam{{Stream: left}, {Stream: right}},
//		}},
//		QoS: &preset.QoS,
//	})
//	n, err := mgr.BASE(src, buf)
//	err = mgr.Start(src, advHandle)
//
// BASE writes into the caller's buffer and never grows it; BASELen reports
// the size needed.
package broadcast
