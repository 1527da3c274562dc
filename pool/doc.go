// Package pool provides the fixed-capacity arenas that back every endpoint,
// ISO binding, unicast group and broadcast source in the engine.
//
// Entries are addressed by a Handle that packs the slot index with a
// generation counter. Freeing a slot bumps its generation, so a Handle kept
// past the lifetime of its entry is rejected with ErrStaleHandle instead of
// silently aliasing whatever was allocated next. A second Free of the same
// Handle is therefore detected rather than corrupting the pool.
//
//	arena := pool.New[Endpoint](4)
//	h, ep, err := arena.Alloc()
//	...
//	if err := arena.Free(h); err != nil { ... }
//
// Arenas are not safe for concurrent use; callers serialize access on their
// owning execution context.
package pool
