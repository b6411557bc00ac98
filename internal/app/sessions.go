package app

import (
	"errors"
	"sync"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/rs/zerolog/log"
)

// MemberIndex resolves the audience of a room broadcast.
type MemberIndex interface {
	MemberIDs(room domain.RoomName, except domain.ConnID) []domain.ConnID
}

// Sessions is the table of live connections. It implements core.Deliverer.
type Sessions struct {
	mu    sync.RWMutex
	conns map[domain.ConnID]core.Connection

	index   MemberIndex
	policy  Policy
	metrics *metrics.Metrics
}

func NewSessions(index MemberIndex, policy Policy, m *metrics.Metrics) *Sessions {
	if policy == nil {
		policy = SimplePolicy{}
	}
	return &Sessions{
		conns:   make(map[domain.ConnID]core.Connection),
		index:   index,
		policy:  policy,
		metrics: m,
	}
}

func (s *Sessions) Bind(conn core.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[conn.ID()] = conn
	log.Info().Str("module", "app.sessions").Str("conn", string(conn.ID())).Msg("bound connection")
}

// Unbind forgets id and reports whether it was bound.
func (s *Sessions) Unbind(id domain.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	log.Info().Str("module", "app.sessions").Str("conn", string(id)).Msg("unbound connection")
	return true
}

func (s *Sessions) Get(id domain.ConnID) (core.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[id]
	return c, ok
}

func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Sessions) Deliver(to domain.ConnID, ev core.Event, payload any) error {
	conn, ok := s.Get(to)
	if !ok {
		s.metrics.Drop("not_live")
		return core.ErrNotLive
	}
	frame, err := core.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.sessions").Msg("encode")
		return err
	}
	return s.send(conn, frame)
}

func (s *Sessions) DeliverRoom(room domain.RoomName, except domain.ConnID, ev core.Event, payload any) int {
	audience := s.index.MemberIDs(room, except)
	if len(audience) == 0 {
		return 0
	}
	frame, err := core.Encode(ev, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.sessions").Msg("encode")
		return 0
	}
	sent := 0
	for _, id := range audience {
		conn, ok := s.Get(id)
		if !ok {
			s.metrics.Drop("not_live")
			continue
		}
		if s.send(conn, frame) == nil {
			sent++
		}
	}
	log.Debug().Str("module", "app.sessions").Str("room", string(room)).Str("event", string(ev)).Int("sent_to", sent).Msg("room delivery")
	return sent
}

func (s *Sessions) send(conn core.Connection, frame core.Frame) error {
	err := conn.TrySend(frame)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrBackpressure) {
		s.metrics.Drop("closed")
		return err
	}
	s.metrics.Drop("backpressure")
	switch s.policy.OnBackPressure(conn) {
	case KickMember:
		log.Warn().Str("module", "app.sessions").Str("conn", string(conn.ID())).Msg("kicking slow connection")
		// Closing runs the disconnect flow, which delivers again; keep it off this call stack.
		go conn.Close("backpressure")
	case DropFrame, NoAction:
	}
	return err
}
