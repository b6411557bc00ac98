package core

import (
	"sort"
	"sync"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// Departure describes one room a disconnecting connection was removed from.
type Departure struct {
	Room      domain.RoomName
	Member    domain.Member
	Remaining []domain.Member
}

// Registry is the single source of truth for room membership.
// The map is guarded by mu; each room has its own lock, so different rooms
// never wait on each other.
type Registry struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]*roomImpl

	retainEmpty bool
}

type RegistryOption func(*Registry)

// RetainEmptyRooms keeps a room listed after its last member departs.
func RetainEmptyRooms(retain bool) RegistryOption {
	return func(r *Registry) { r.retainEmpty = retain }
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{rooms: make(map[domain.RoomName]*roomImpl)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) lookup(name domain.RoomName) *roomImpl {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[name]
}

func (r *Registry) getOrCreate(name domain.RoomName) *roomImpl {
	r.mu.RLock()
	room, ok := r.rooms[name]
	r.mu.RUnlock()
	if ok && !room.dead.Load() {
		return room
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[name]; ok && !room.dead.Load() {
		return room
	}
	room = newRoom(name)
	r.rooms[name] = room
	log.Debug().Str("module", "core.registry").Str("room", string(name)).Msg("room created")
	return room
}

// reclaim drops room from the map if it is still the current entry for its name.
func (r *Registry) reclaim(room *roomImpl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room.name] == room {
		delete(r.rooms, room.name)
		log.Debug().Str("module", "core.registry").Str("room", string(room.name)).Msg("room reclaimed")
	}
}

// Join inserts or overwrites m in room and returns the resulting snapshot.
func (r *Registry) Join(name domain.RoomName, m domain.Member) ([]domain.Member, error) {
	if err := domain.ValidateRoom(name); err != nil {
		return nil, err
	}
	for {
		room := r.getOrCreate(name)
		room.mu.Lock()
		if room.dead.Load() {
			// Reclaimed between lookup and lock; the next getOrCreate yields a fresh room.
			room.mu.Unlock()
			continue
		}
		room.put(m)
		snap := room.snapshot()
		room.mu.Unlock()
		log.Info().Str("module", "core.registry").Str("room", string(name)).Str("conn", string(m.ConnID)).Int("members", len(snap)).Msg("member joined")
		return snap, nil
	}
}

// Leave removes id from room. A missing room or member is not an error:
// ok is false and the snapshot reflects the untouched room.
func (r *Registry) Leave(name domain.RoomName, id domain.ConnID) (removed domain.Member, snap []domain.Member, ok bool) {
	room := r.lookup(name)
	if room == nil {
		return domain.Member{}, []domain.Member{}, false
	}
	removed, snap, ok = r.removeFrom(room, id)
	if ok {
		log.Info().Str("module", "core.registry").Str("room", string(name)).Str("conn", string(id)).Int("members", len(snap)).Msg("member left")
	}
	return removed, snap, ok
}

func (r *Registry) removeFrom(room *roomImpl, id domain.ConnID) (domain.Member, []domain.Member, bool) {
	room.mu.Lock()
	removed, ok := room.remove(id)
	snap := room.snapshot()
	empty := len(snap) == 0 && !r.retainEmpty
	if ok && empty {
		room.dead.Store(true)
	}
	room.mu.Unlock()
	if ok && empty {
		r.reclaim(room)
	}
	return removed, snap, ok
}

// RemoveConnection drops id from every room it belongs to. Safe for unknown ids.
func (r *Registry) RemoveConnection(id domain.ConnID) []Departure {
	r.mu.RLock()
	rooms := make([]*roomImpl, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	var out []Departure
	for _, room := range rooms {
		removed, snap, ok := r.removeFrom(room, id)
		if !ok {
			continue
		}
		out = append(out, Departure{Room: room.name, Member: removed, Remaining: snap})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Room < out[j].Room })
	log.Info().Str("module", "core.registry").Str("conn", string(id)).Int("rooms", len(out)).Msg("connection removed")
	return out
}

// Snapshot returns members of room in join order; empty for unknown rooms.
func (r *Registry) Snapshot(name domain.RoomName) []domain.Member {
	room := r.lookup(name)
	if room == nil {
		return []domain.Member{}
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return room.snapshot()
}

// MemberIDs lists the connection ids of room except one, in join order.
func (r *Registry) MemberIDs(name domain.RoomName, except domain.ConnID) []domain.ConnID {
	room := r.lookup(name)
	if room == nil {
		return nil
	}
	return room.ids(except)
}

// RoomsOf lists the rooms id is currently a member of.
func (r *Registry) RoomsOf(id domain.ConnID) []domain.RoomName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.RoomName
	for name, room := range r.rooms {
		if room.has(id) {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) List() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(r.rooms))
	for name, room := range r.rooms {
		out = append(out, domain.RoomInfo{Name: name, MemberCount: room.count()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats reports room and member totals.
func (r *Registry) Stats() (rooms, members int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		members += room.count()
	}
	return len(r.rooms), members
}
