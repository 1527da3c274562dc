package bap

import (
	"fmt"

	"github.com/opd-ai/leaudio/interfaces"
	"github.com/opd-ai/leaudio/iso"
	"github.com/opd-ai/leaudio/pool"
	"github.com/sirupsen/logrus"
)

// EndpointPool is the fixed-capacity endpoint set of one connection or one
// broadcast source.
type EndpointPool struct {
	arena      *pool.Arena[Endpoint]
	kind       Kind
	conn       interfaces.ConnID
	source     pool.Handle
	isos       *iso.Pool
	controller Controller
}

// NewUnicastPool creates the endpoint pool of a unicast connection.
func NewUnicastPool(conn interfaces.ConnID, capacity int, isos *iso.Pool, ctrl Controller) *EndpointPool {
	return &EndpointPool{
		arena:      pool.New[Endpoint](capacity),
		kind:       KindUnicastClient,
		conn:       conn,
		isos:       isos,
		controller: ctrl,
	}
}

// NewBroadcastPool creates the endpoint pool of a broadcast source.
func NewBroadcastPool(source pool.Handle, capacity int, isos *iso.Pool, ctrl Controller) *EndpointPool {
	return &EndpointPool{
		arena:      pool.New[Endpoint](capacity),
		kind:       KindBroadcastSource,
		source:     source,
		isos:       isos,
		controller: ctrl,
	}
}

// Alloc allocates an Idle endpoint. handle is the ASE characteristic value
// handle and is zero for broadcast endpoints.
func (p *EndpointPool) Alloc(dir Dir, id uint8, handle uint16) (*Endpoint, error) {
	if p.Find(dir, id) != nil {
		return nil, fmt.Errorf("%w: %s %d", ErrEndpointExists, dir, id)
	}
	h, ep, err := p.arena.Alloc()
	if err != nil {
		return nil, fmt.Errorf("allocate %s endpoint %d: %w", dir, id, err)
	}
	*ep = Endpoint{
		kind:       p.kind,
		dir:        dir,
		id:         id,
		handle:     handle,
		conn:       p.conn,
		source:     p.source,
		self:       h,
		isos:       p.isos,
		controller: p.controller,
	}

	logrus.WithFields(logrus.Fields{
		"function": "EndpointPool.Alloc",
		"endpoint": ep.String(),
		"handle":   handle,
	}).Debug("Allocated endpoint")

	return ep, nil
}

// Find returns the endpoint with direction dir and id, or nil.
func (p *EndpointPool) Find(dir Dir, id uint8) *Endpoint {
	var found *Endpoint
	p.arena.Each(func(_ pool.Handle, ep *Endpoint) bool {
		if ep.dir == dir && ep.id == id {
			found = ep
			return false
		}
		return true
	})
	return found
}

// FindByHandle returns the endpoint with characteristic value handle h, or nil.
func (p *EndpointPool) FindByHandle(h uint16) *Endpoint {
	var found *Endpoint
	p.arena.Each(func(_ pool.Handle, ep *Endpoint) bool {
		if ep.handle == h {
			found = ep
			return false
		}
		return true
	})
	return found
}

// Each calls fn for every endpoint in allocation order until fn returns false.
func (p *EndpointPool) Each(fn func(ep *Endpoint) bool) {
	p.arena.Each(func(_ pool.Handle, ep *Endpoint) bool {
		return fn(ep)
	})
}

// Count returns the number of endpoints with direction dir.
func (p *EndpointPool) Count(dir Dir) int {
	n := 0
	p.Each(func(ep *Endpoint) bool {
		if ep.dir == dir {
			n++
		}
		return true
	})
	return n
}

// Len returns the number of allocated endpoints.
func (p *EndpointPool) Len() int {
	return p.arena.Len()
}

// Free forces ep to Idle and returns it to the pool.
func (p *EndpointPool) Free(ep *Endpoint) error {
	h := ep.self
	if got, err := p.arena.Get(h); err != nil || got != ep {
		return fmt.Errorf("free %s: %w", ep, pool.ErrStaleHandle)
	}
	ep.ForceIdle()
	return p.arena.Free(h)
}

// Reset forces every endpoint to Idle, detaching its stream and releasing
// its ISO binding, then empties the pool.
func (p *EndpointPool) Reset() {
	var handles []pool.Handle
	p.arena.Each(func(h pool.Handle, ep *Endpoint) bool {
		ep.ForceIdle()
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		_ = p.arena.Free(h)
	}

	logrus.WithFields(logrus.Fields{
		"function": "EndpointPool.Reset",
		"kind":     p.kind.String(),
		"freed":    len(handles),
	}).Debug("Reset endpoint pool")
}
