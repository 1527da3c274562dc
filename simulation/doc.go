// Package simulation provides in-memory collaborators for running the LE
// Audio engine without a radio.
//
// # Overview
//
// Transport implements interfaces.ISOTransport and Peer implements
// interfaces.GATTClient on behalf of a remote Audio Stream Control Service
// server. Neither calls back synchronously: every notification, control
// point response and channel event is queued on a Scheduler and delivered
// when the test or demo drains it. This mirrors the asynchronous ordering
// of a real controller while staying deterministic.
//
// # Usage
//
//	sched := simulation.NewScheduler()
//	tr := simulation.NewTransport(sched)
//	peer := simulation.NewPeer(conn, sched, simulation.DefaultPeerConfig())
//	peer.Attach(tr)
//
//	isos := iso.NewPool(8, tr)
//	client := unicast.NewClient(peer, tr, isos, nil)
//	caps, err := client.Discover(conn)
//	...
//	sched.Drain()
//
// # Server behaviour
//
// The Peer runs the server side of the ASE state machine. It answers every
// control point write with a response notification followed by the ASE
// status notifications, starts sink ASEs by itself once their CIS is
// established, moves ASEs back to QoS Configured when their CIS is lost
// and, when CacheOnRelease is set, returns released ASEs to Codec
// Configured instead of Idle.
//
// # Thread Safety
//
// Scheduler and Transport are safe for concurrent use. Peer is meant to be
// driven from the same execution context as the client it serves.
package simulation
