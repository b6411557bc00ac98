// Package orch is the entry point for transport events: connect, join, leave,
// relay and disconnect.
package orch

import (
	"time"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Rooms    *core.Registry
	Sessions *app.Sessions
	Presence *app.Presence
	Router   *app.Router
	Metrics  *metrics.Metrics

	MaxNameLen int
	Now        func() time.Time
}

// Options configures New.
type Options struct {
	RetainEmptyRooms bool
	StrictSignaling  bool
	MaxNameLen       int
	Policy           app.Policy
	Metrics          *metrics.Metrics
	Watchers         *app.Watchers
}

// New wires registry, connection table, presence and router together.
func New(opts Options) *Orchestrator {
	rooms := core.NewRegistry(core.RetainEmptyRooms(opts.RetainEmptyRooms))
	sessions := app.NewSessions(rooms, opts.Policy, opts.Metrics)
	if opts.MaxNameLen <= 0 {
		opts.MaxNameLen = domain.DefaultMaxNameLen
	}
	return &Orchestrator{
		Rooms:      rooms,
		Sessions:   sessions,
		Presence:   &app.Presence{Out: sessions, Watchers: opts.Watchers},
		Router:     &app.Router{Out: sessions, Strict: opts.StrictSignaling, Metrics: opts.Metrics},
		Metrics:    opts.Metrics,
		MaxNameLen: opts.MaxNameLen,
	}
}

type Connected struct {
	ID domain.ConnID `json:"id"`
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// OnConnect binds a fresh connection and wires its close notification to OnDisconnect.
func (o *Orchestrator) OnConnect(conn core.Connection) {
	id := conn.ID()
	o.Sessions.Bind(conn)
	conn.OnClose(func(reason string) { o.OnDisconnect(id, reason) })
	o.Metrics.ConnOpened()
	if err := o.Sessions.Deliver(id, core.EventConnected, Connected{ID: id}); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("conn", string(id)).Msg("connected notice not delivered")
	}
}

// OnDisconnect removes id from every room and tells each room. Unknown ids are a no-op.
func (o *Orchestrator) OnDisconnect(id domain.ConnID, reason string) {
	bound := o.Sessions.Unbind(id)
	departures := o.Rooms.RemoveConnection(id)
	for _, d := range departures {
		o.Presence.Update(d.Room, d.Remaining)
		o.Presence.Left(d.Member, d.Remaining)
		log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(d.Room)).Str("name", d.Member.Name).Msg("removed on disconnect")
	}
	if bound {
		o.Metrics.ConnClosed(reason)
	}
	o.observe()
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("reason", reason).Int("rooms", len(departures)).Msg("disconnected")
}

func (o *Orchestrator) observe() {
	o.Metrics.ObserveRegistry(o.Rooms.Stats())
}
