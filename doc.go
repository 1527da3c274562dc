// Package leaudio implements the stream and endpoint lifecycle of Bluetooth
// LE Audio: the Basic Audio Profile unicast client and broadcast source on
// top of an injected GATT client and isochronous channel transport.
//
// This package provides the facade that wires the subsystems together: the
// shared pool of isochronous bindings (iso), the unicast client driving
// remote Audio Stream Endpoints (unicast), the broadcast source manager
// (broadcast) and the single-owner execution loop every call runs on
// (executor).
//
// # Getting Started
//
// Create a Stack over the platform's GATT client and ISO transport:
//
//	stack, err := leaudio.New(gatt, transport, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go stack.Run(ctx)
//
//	err = stack.Do(ctx, func(s *leaudio.Stack) error {
//	    _, err := s.Unicast().Discover(conn)
//	    return err
//	})
//
// # Unicast
//
// A unicast stream is attached to a remote ASE by Config Codec, grouped
// with other streams into a CIG, configured with QoS and then enabled and
// started:
//
//	preset := codec.LC3Preset48_2_1(codec.ContextMedia)
//	stream := bap.NewStream(&bap.StreamOps{Started: onStarted})
//	ep := s.Unicast().Endpoint(conn, bap.DirSink, 1)
//	_ = s.Unicast().ConfigCodec(stream, ep, preset.Codec)
//
//	group, _ := s.Unicast().CreateGroup(unicast.GroupParams{
//	    Pairs: []unicast.PairParam{{TX: &unicast.StreamParam{Stream: stream}}},
//	})
//	_ = s.Unicast().ConfigQoS(conn, group, &preset.QoS)
//	_ = stream.Enable(nil)
//	_ = stream.Start()
//
// Every state change is confirmed by the remote server through ASE status
// notifications; the StreamOps callbacks report them.
//
// # Broadcast
//
// A broadcast source owns its endpoints. Create leaves them QoS
// Configured, Start creates the BIG and BASE encodes the announcement:
//
//	h, _ := s.Broadcast().Create(broadcast.CreateParam{...})
//	_ = s.Broadcast().Start(h, advHandle)
//	n, _ := s.Broadcast().BASE(h, buf)
//
// # Configuration
//
// Pool capacities and protocol defaults come from config.Options. Passing
// nil to New applies the LEAUDIO_* environment overrides to the defaults.
//
// # Thread Safety
//
// The engine has no internal locking. All calls into a Stack and all
// transport and GATT callbacks must run on its loop, through Do or Post.
//
// # Testing
//
// The simulation package provides an in-memory ASCS server and ISO
// transport that deliver their callbacks through a FIFO scheduler.
package leaudio
