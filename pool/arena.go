package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted indicates every slot of the arena is in use
	ErrExhausted = errors.New("pool exhausted")

	// ErrInvalidHandle indicates a zero or out of range handle
	ErrInvalidHandle = errors.New("invalid handle")

	// ErrStaleHandle indicates the handle's entry has been freed
	ErrStaleHandle = errors.New("stale handle")
)

// Handle addresses an arena entry. The low 16 bits carry the slot index and
// the high 16 bits the slot generation. The zero Handle never addresses an
// entry.
type Handle uint32

func makeHandle(index int, gen uint16) Handle {
	return Handle(uint32(gen)<<16 | uint32(index))
}

// Index returns the slot index encoded in the handle.
func (h Handle) Index() int {
	return int(uint32(h) & 0xFFFF)
}

// Generation returns the slot generation encoded in the handle.
func (h Handle) Generation() uint16 {
	return uint16(uint32(h) >> 16)
}

// IsZero reports whether h is the zero handle.
func (h Handle) IsZero() bool {
	return h == 0
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	if h.IsZero() {
		return "handle(none)"
	}
	return fmt.Sprintf("handle(%d#%d)", h.Index(), h.Generation())
}

type slot[T any] struct {
	gen   uint16
	inUse bool
	val   T
}

// Arena is a fixed-capacity pool of T values. Entry addresses are stable
// for the arena's lifetime, so pointers returned by Alloc and Get remain
// valid until the entry is freed.
type Arena[T any] struct {
	slots []slot[T]
	used  int
}

// New creates an arena with room for capacity entries.
func New[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	if capacity > 0xFFFF {
		capacity = 0xFFFF
	}
	slots := make([]slot[T], capacity)
	for i := range slots {
		slots[i].gen = 1
	}
	return &Arena[T]{slots: slots}
}

// Alloc reserves the lowest free slot and returns its handle and a pointer
// to the zeroed entry.
func (a *Arena[T]) Alloc() (Handle, *T, error) {
	for i := range a.slots {
		s := &a.slots[i]
		if s.inUse {
			continue
		}
		var zero T
		s.val = zero
		s.inUse = true
		a.used++
		return makeHandle(i, s.gen), &s.val, nil
	}
	return 0, nil, fmt.Errorf("%w: capacity %d", ErrExhausted, len(a.slots))
}

func (a *Arena[T]) lookup(h Handle) (*slot[T], error) {
	if h.IsZero() || h.Index() >= len(a.slots) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	s := &a.slots[h.Index()]
	if !s.inUse || s.gen != h.Generation() {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return s, nil
}

// Get returns the entry addressed by h.
func (a *Arena[T]) Get(h Handle) (*T, error) {
	s, err := a.lookup(h)
	if err != nil {
		return nil, err
	}
	return &s.val, nil
}

// Valid reports whether h addresses a live entry.
func (a *Arena[T]) Valid(h Handle) bool {
	_, err := a.lookup(h)
	return err == nil
}

// Free releases the entry addressed by h and invalidates every copy of h.
func (a *Arena[T]) Free(h Handle) error {
	s, err := a.lookup(h)
	if err != nil {
		return err
	}
	var zero T
	s.val = zero
	s.inUse = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	a.used--
	return nil
}

// Each calls fn for every live entry in slot order until fn returns false.
func (a *Arena[T]) Each(fn func(Handle, *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.inUse {
			continue
		}
		if !fn(makeHandle(i, s.gen), &s.val) {
			return
		}
	}
}

// Len returns the number of live entries.
func (a *Arena[T]) Len() int {
	return a.used
}

// Cap returns the arena capacity.
func (a *Arena[T]) Cap() int {
	return len(a.slots)
}
