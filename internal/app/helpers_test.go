package app_test

import (
	"sync"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
)

type delivery struct {
	To      domain.ConnID
	Room    domain.RoomName
	Except  domain.ConnID
	Event   core.Event
	Payload any
}

// recorder is a core.Deliverer that keeps everything it was asked to send.
type recorder struct {
	mu     sync.Mutex
	direct []delivery
	rooms  []delivery
	gone   map[domain.ConnID]bool
}

func newRecorder() *recorder {
	return &recorder{gone: map[domain.ConnID]bool{}}
}

func (r *recorder) Deliver(to domain.ConnID, ev core.Event, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gone[to] {
		return core.ErrNotLive
	}
	r.direct = append(r.direct, delivery{To: to, Event: ev, Payload: payload})
	return nil
}

func (r *recorder) DeliverRoom(room domain.RoomName, except domain.ConnID, ev core.Event, payload any) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, delivery{Room: room, Except: except, Event: ev, Payload: payload})
	return 1
}

func (r *recorder) to(id domain.ConnID) []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []delivery
	for _, d := range r.direct {
		if d.To == id {
			out = append(out, d)
		}
	}
	return out
}

func events(ds []delivery) []core.Event {
	out := make([]core.Event, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Event)
	}
	return out
}

type staticIndex map[domain.RoomName][]domain.ConnID

func (s staticIndex) MemberIDs(room domain.RoomName, except domain.ConnID) []domain.ConnID {
	var out []domain.ConnID
	for _, id := range s[room] {
		if id != except {
			out = append(out, id)
		}
	}
	return out
}
