package orch

import (
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnJoin adds id to room, then tells the others, the whole room, and finally the joiner.
func (o *Orchestrator) OnJoin(id domain.ConnID, room domain.RoomName, name, role string) error {
	if err := domain.ValidateRoom(room); err != nil {
		return err
	}
	if err := domain.ValidateName(name, o.MaxNameLen); err != nil {
		return err
	}
	m := domain.NewMember(id, name, role, o.now())
	snap, err := o.Rooms.Join(room, m)
	if err != nil {
		return err
	}
	o.Metrics.Joined()
	o.observe()

	o.Presence.Joined(m, snap)
	o.Presence.Update(room, snap)
	o.Presence.Acknowledge(id, room, len(snap))
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Str("name", name).Str("role", role).Msg("join")
	return nil
}

// OnLeave removes id from room. Leaving a room one is not in changes nothing.
func (o *Orchestrator) OnLeave(id domain.ConnID, room domain.RoomName) error {
	if err := domain.ValidateRoom(room); err != nil {
		return err
	}
	removed, snap, ok := o.Rooms.Leave(room, id)
	if !ok {
		log.Debug().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("leave: not a member")
		return nil
	}
	o.Metrics.Left()
	o.observe()

	o.Presence.Update(room, snap, id)
	o.Presence.Left(removed, snap)
	log.Info().Str("module", "orch").Str("conn", string(id)).Str("room", string(room)).Msg("leave")
	return nil
}
