package capture

import (
	"image"
	"sync"
)

// Planes are recycled through a package pool so that per-frame scoring and
// tracking do not allocate once a session is warm. Sessions do not touch the
// pool directly: they acquire planes from an Arena at arm time and release
// the whole arena when analysis stops.

var planePool sync.Pool // stores *Plane

func acquirePlane(r image.Rectangle) *Plane {
	var p *Plane
	if v := planePool.Get(); v != nil {
		p = v.(*Plane)
	} else {
		p = &Plane{}
	}
	p.resize(r)
	return p
}

// Arena hands out reusable planes for one analysis session. Planes acquired
// from an arena stay valid until Release; callers must not keep references
// past that point. A nil Arena allocates fresh planes and never recycles.
type Arena struct {
	mu   sync.Mutex
	used []*Plane
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Acquire returns a plane sized to r.
func (a *Arena) Acquire(r image.Rectangle) *Plane {
	if a == nil {
		p := &Plane{}
		p.resize(r)
		return p
	}
	p := acquirePlane(r)
	a.mu.Lock()
	a.used = append(a.used, p)
	a.mu.Unlock()
	return p
}

// Len reports how many planes are currently held by the arena.
func (a *Arena) Len() int {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.used)
}

// Release returns every acquired plane to the pool.
func (a *Arena) Release() {
	if a == nil {
		return
	}
	a.mu.Lock()
	used := a.used
	a.used = nil
	a.mu.Unlock()
	for _, p := range used {
		if p.Pix == nil {
			continue
		}
		planePool.Put(p)
	}
}
