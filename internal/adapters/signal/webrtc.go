package signal

import (
	"encoding/json"

	"github.com/dkeye/Rendezvous/internal/domain"
)

func (ctl *SignalWSController) handleOffer(c *WsSignalConn, data json.RawMessage) error {
	var p offerPayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnOffer(c.id, domain.RoomName(p.Room), p.Offer, p.From)
}

func (ctl *SignalWSController) handleAnswer(c *WsSignalConn, data json.RawMessage) error {
	var p answerPayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnAnswer(c.id, domain.RoomName(p.Room), p.Answer, p.From)
}

func (ctl *SignalWSController) handleCandidate(c *WsSignalConn, data json.RawMessage) error {
	var p candidatePayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnCandidate(c.id, domain.RoomName(p.Room), p.Candidate)
}

// handleRequestNewOffer asks the peer named by fromId to renegotiate.
func (ctl *SignalWSController) handleRequestNewOffer(c *WsSignalConn, data json.RawMessage) error {
	var p requestNewOfferPayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnRequestNewOffer(c.id, domain.ConnID(p.FromID))
}
