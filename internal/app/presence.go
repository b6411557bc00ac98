package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinedSuccess struct {
	Room       domain.RoomName `json:"room"`
	UsersCount int             `json:"usersCount"`
	Message    string          `json:"message"`
}

type UserJoined struct {
	ID        domain.ConnID `json:"id"`
	Name      string        `json:"name"`
	Type      string        `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
}

type UserLeft struct {
	ID        domain.ConnID `json:"id"`
	Name      string        `json:"name,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Presence emits membership notifications. Audiences come from the snapshot the
// registry returned for the mutation, never from a second read.
type Presence struct {
	Out      core.Deliverer
	Watchers *Watchers
	Now      func() time.Time
}

func (p *Presence) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

// Acknowledge tells the joining connection, and only it, that the join landed.
func (p *Presence) Acknowledge(to domain.ConnID, room domain.RoomName, count int) {
	p.deliver(to, core.EventJoinedSuccess, JoinedSuccess{
		Room:       room,
		UsersCount: count,
		Message:    fmt.Sprintf("Joined room %s successfully", room),
	})
}

// Joined tells every member except actor.
func (p *Presence) Joined(actor domain.Member, audience []domain.Member) {
	msg := UserJoined{ID: actor.ConnID, Name: actor.Name, Type: actor.Role, Timestamp: p.now()}
	for _, m := range audience {
		if m.ConnID != actor.ConnID {
			p.deliver(m.ConnID, core.EventUserJoined, msg)
		}
	}
}

// Left tells every remaining member except the departed one.
func (p *Presence) Left(departed domain.Member, audience []domain.Member) {
	msg := UserLeft{ID: departed.ConnID, Name: departed.Name, Timestamp: p.now()}
	for _, m := range audience {
		if m.ConnID != departed.ConnID {
			p.deliver(m.ConnID, core.EventUserLeft, msg)
		}
	}
}

// Update sends the full snapshot to every member, plus extra recipients
// that are no longer members (a connection that just left).
func (p *Presence) Update(room domain.RoomName, members []domain.Member, extra ...domain.ConnID) {
	views := domain.Views(members)
	for _, m := range members {
		p.deliver(m.ConnID, core.EventUsersUpdate, views)
	}
	for _, id := range extra {
		p.deliver(id, core.EventUsersUpdate, views)
	}
	p.Watchers.Publish(room, views)
}

func (p *Presence) deliver(to domain.ConnID, ev core.Event, payload any) {
	if err := p.Out.Deliver(to, ev, payload); err != nil && !errors.Is(err, core.ErrNotLive) {
		log.Warn().Err(err).Str("module", "app.presence").Str("conn", string(to)).Str("event", string(ev)).Msg("delivery failed")
	}
}
