package orch

import (
	"encoding/json"

	"github.com/dkeye/Rendezvous/internal/domain"
)

func (o *Orchestrator) OnOffer(id domain.ConnID, room domain.RoomName, offer json.RawMessage, from string) error {
	return o.Router.Offer(id, room, offer, from)
}

func (o *Orchestrator) OnAnswer(id domain.ConnID, room domain.RoomName, answer json.RawMessage, from string) error {
	return o.Router.Answer(id, room, answer, from)
}

func (o *Orchestrator) OnCandidate(id domain.ConnID, room domain.RoomName, candidate json.RawMessage) error {
	return o.Router.Candidate(id, room, candidate)
}

func (o *Orchestrator) OnRequestNewOffer(id, target domain.ConnID) error {
	return o.Router.RequestNewOffer(id, target)
}
