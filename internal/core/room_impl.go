package core

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Rendezvous/internal/domain"
)

// roomImpl keeps members in join order, one entry per connection.
// It never touches transport resources.
type roomImpl struct {
	name domain.RoomName

	mu      sync.RWMutex
	order   []domain.ConnID
	members map[domain.ConnID]domain.Member

	// dead is set once the room was reclaimed; callers holding it must look it up again.
	dead atomic.Bool
}

func newRoom(name domain.RoomName) *roomImpl {
	return &roomImpl{
		name:    name,
		members: make(map[domain.ConnID]domain.Member),
	}
}

// put inserts or overwrites; an existing member keeps its position. Caller holds mu.
func (r *roomImpl) put(m domain.Member) {
	if _, ok := r.members[m.ConnID]; !ok {
		r.order = append(r.order, m.ConnID)
	}
	r.members[m.ConnID] = m
}

// remove drops id and reports the removed record. Caller holds mu.
func (r *roomImpl) remove(id domain.ConnID) (domain.Member, bool) {
	m, ok := r.members[id]
	if !ok {
		return domain.Member{}, false
	}
	delete(r.members, id)
	if i := slices.Index(r.order, id); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
	return m, true
}

// snapshot copies members in join order. Caller holds mu (read or write).
func (r *roomImpl) snapshot() []domain.Member {
	out := make([]domain.Member, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.members[id])
	}
	return out
}

func (r *roomImpl) ids(except domain.ConnID) []domain.ConnID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ConnID, 0, len(r.order))
	for _, id := range r.order {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}

func (r *roomImpl) has(id domain.ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

func (r *roomImpl) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
