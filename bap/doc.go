// Package bap implements the Audio Stream Endpoint (ASE) state machine and
// the Stream handle of the Basic Audio Profile.
//
// An Endpoint is one direction of one stream slot: a unicast ASE on a
// remote server or a BIS of a local broadcast source. Its state is changed
// only through SetState, which follows the ASCS state machine. Transitions
// outside the expected graph are applied anyway, since the remote peer is
// authoritative, and reported as ErrUnexpectedTransition.
//
// Entering Idle detaches the Stream, clears the codec and QoS snapshots and
// releases the ISO binding. Entering CodecConfigured from another state
// releases the binding. Entering QosConfigured binds lazily through the
// endpoint's Controller.
//
// A Stream is the application's handle. It attaches to exactly one Endpoint
// at a time and forwards Enable, UpdateMetadata, Start, Disable, Stop and
// Release to it as Request values. The Endpoint validates each request
// against its state before handing it to its Controller, which is either
// the unicast client or the broadcast source manager.
//
// Nothing in this package locks. All calls for one connection or broadcast
// source must be serialized on one execution context.
package bap
