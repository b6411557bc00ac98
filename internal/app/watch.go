package app

import (
	"sync"

	"github.com/dkeye/Rendezvous/internal/domain"
)

const watchBuffer = 8

// Watchers fans users-update snapshots out to read-only observers (the SSE feed).
type Watchers struct {
	mu   sync.Mutex
	subs map[domain.RoomName]map[chan []domain.MemberView]struct{}
}

func NewWatchers() *Watchers {
	return &Watchers{subs: make(map[domain.RoomName]map[chan []domain.MemberView]struct{})}
}

// Subscribe returns a feed for room and the func that ends it.
func (w *Watchers) Subscribe(room domain.RoomName) (<-chan []domain.MemberView, func()) {
	ch := make(chan []domain.MemberView, watchBuffer)
	w.mu.Lock()
	if w.subs[room] == nil {
		w.subs[room] = make(map[chan []domain.MemberView]struct{})
	}
	w.subs[room][ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.subs[room], ch)
			if len(w.subs[room]) == 0 {
				delete(w.subs, room)
			}
			close(ch)
		})
	}
}

// Publish never blocks; a full observer misses the update.
func (w *Watchers) Publish(room domain.RoomName, views []domain.MemberView) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for ch := range w.subs[room] {
		select {
		case ch <- views:
		default:
		}
	}
}
