// Package iso binds LE Audio endpoints to isochronous channels.
//
// A Binding represents one logical CIS or BIS. Its transmit half is owned by
// at most one endpoint that sends on the channel (a unicast sink ASE or a
// broadcast source BIS) and its receive half by at most one endpoint that
// receives (a unicast source ASE). Both halves of one binding always belong
// to the same group, identified by a GroupKey.
//
// Bindings live in a fixed-capacity Pool addressed by generation-checked
// handles. The Pool is registered as the transport's interfaces.ISOListener
// and routes connected, disconnected, sent and received events to the
// owners of the affected channel.
//
// The Pool has no internal locking; callers serialize access on one
// execution context.
package iso
