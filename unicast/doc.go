// Package unicast implements the BAP unicast client: the ASE Control Point
// protocol driver, ASE status handling and unicast groups (CIGs).
//
// A Client discovers the Audio Stream Control Service of each connection,
// allocates one bap.Endpoint per remote ASE and keeps it in step with the
// server's notifications. Operations are fire-and-forget writes to the ASE
// Control Point; their effect shows up later as ASE status notifications
// and is reported through the stream's bap.StreamOps callbacks. Control
// point responses are reported through Callbacks.OperationResult.
//
// Streams are grouped with CreateGroup. ConfigQoS validates every member
// against its server preference, stages one ISO binding per CIS and creates
// or reconfigures the group's CIG before writing Config QoS. A failed CIG
// operation releases the bindings the call staged.
//
//	client := unicast.NewClient(gatt, transport, isos, config.NewOptions())
//	caps, err := client.Discover(conn)
//	grp, err := client.CreateGroup(unicast.GroupParams{Pairs: pairs})
//	err = client.ConfigCodec(stream, client.Endpoint(conn, bap.DirSink, 1), preset.Codec)
//	// once Codec Configured is notified:
//	err = client.ConfigQoS(conn, grp, &preset.QoS)
//
// The Client does not lock. Calls and notifications for all connections
// must be serialized, for example on an executor.Loop.
package unicast
