// Package executor provides the single-owner execution context the LE
// Audio engine runs in.
//
// The bap, iso, unicast and broadcast packages do not lock. All calls into
// one stack, and all transport callbacks that re-enter it, must run on the
// same Loop:
//
//	loop := executor.NewLoop("stack", 64)
//	go loop.Run(ctx)
//	err := loop.Do(ctx, func() error {
//		return client.ConfigQoS(conn, group, &preset.QoS)
//	})
//
// RunAll runs several loops under one errgroup and stops them together.
package executor
