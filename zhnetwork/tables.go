package zhnetwork

import (
	"container/list"
	"sync"
)

// idSet is a bounded, insertion-ordered set of message IDs with FIFO
// eviction, used for both seen_ids and confirmed_ids. A guarded set takes
// its own mutex so it can be safely written from more than one goroutine.
type idSet struct {
	mu       sync.Mutex
	guarded  bool
	order    *list.List
	elems    map[uint32]*list.Element
	capacity int
}

func newIDSet(capacity int, guarded bool) *idSet {
	return &idSet{
		guarded:  guarded,
		order:    list.New(),
		elems:    make(map[uint32]*list.Element, capacity),
		capacity: capacity,
	}
}

func (s *idSet) lock() {
	if s.guarded {
		s.mu.Lock()
	}
}

func (s *idSet) unlock() {
	if s.guarded {
		s.mu.Unlock()
	}
}

// Contains reports whether id is currently tracked.
func (s *idSet) Contains(id uint32) bool {
	s.lock()
	defer s.unlock()
	_, ok := s.elems[id]
	return ok
}

// Insert adds id if not already present, evicting the oldest entry if the
// set is over capacity afterward. Returns true if id was newly inserted.
func (s *idSet) Insert(id uint32) bool {
	s.lock()
	defer s.unlock()
	if _, ok := s.elems[id]; ok {
		return false
	}
	el := s.order.PushBack(id)
	s.elems[id] = el
	s.evictLocked()
	return true
}

// Remove deletes id if present, reporting whether it was found.
func (s *idSet) Remove(id uint32) bool {
	s.lock()
	defer s.unlock()
	el, ok := s.elems[id]
	if !ok {
		return false
	}
	s.order.Remove(el)
	delete(s.elems, id)
	return true
}

// Len returns the number of tracked IDs.
func (s *idSet) Len() int {
	s.lock()
	defer s.unlock()
	return s.order.Len()
}

func (s *idSet) evictLocked() {
	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		if oldest == nil {
			return
		}
		s.order.Remove(oldest)
		delete(s.elems, oldest.Value.(uint32))
	}
}

// routeTable is the bounded routes collection: at most one entry per
// destination, FIFO eviction, no internal locking (touched only from the
// worker).
type routeTable struct {
	order    *list.List // of MAC (destination), oldest first
	elems    map[MAC]*list.Element
	next     map[MAC]MAC
	capacity int
}

func newRouteTable(capacity int) *routeTable {
	return &routeTable{
		order:    list.New(),
		elems:    make(map[MAC]*list.Element, capacity),
		next:     make(map[MAC]MAC, capacity),
		capacity: capacity,
	}
}

// Lookup returns the next-hop MAC for destination, if a route is known.
func (r *routeTable) Lookup(destination MAC) (MAC, bool) {
	hop, ok := r.next[destination]
	return hop, ok
}

// Upsert records (destination -> nextHop), removing any prior entry for
// destination first, then evicting the oldest route if now over capacity.
func (r *routeTable) Upsert(destination, nextHop MAC) {
	if el, ok := r.elems[destination]; ok {
		r.order.Remove(el)
		delete(r.elems, destination)
	}
	el := r.order.PushBack(destination)
	r.elems[destination] = el
	r.next[destination] = nextHop

	for r.order.Len() > r.capacity {
		oldest := r.order.Front()
		if oldest == nil {
			break
		}
		dest := oldest.Value.(MAC)
		r.order.Remove(oldest)
		delete(r.elems, dest)
		delete(r.next, dest)
	}
}

// Remove deletes the route to destination, if any, reporting whether one
// existed. Used to invalidate a route after a link-level send failure.
func (r *routeTable) Remove(destination MAC) bool {
	el, ok := r.elems[destination]
	if !ok {
		return false
	}
	r.order.Remove(el)
	delete(r.elems, destination)
	delete(r.next, destination)
	return true
}

// Len returns the number of known routes.
func (r *routeTable) Len() int {
	return r.order.Len()
}
