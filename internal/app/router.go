package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/dkeye/Rendezvous/internal/metrics"
	"github.com/pion/ice/v4"
	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type RelayedOffer struct {
	Offer     json.RawMessage `json:"offer"`
	From      string          `json:"from"`
	FromID    domain.ConnID   `json:"fromId"`
	Timestamp time.Time       `json:"timestamp"`
}

type RelayedAnswer struct {
	Answer    json.RawMessage `json:"answer"`
	From      string          `json:"from"`
	FromID    domain.ConnID   `json:"fromId"`
	Timestamp time.Time       `json:"timestamp"`
}

type RelayedCandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	FromID    domain.ConnID   `json:"fromId"`
	Timestamp time.Time       `json:"timestamp"`
}

// Router relays negotiation messages. It trusts the caller-supplied room and
// target and keeps no membership state of its own.
type Router struct {
	Out core.Deliverer
	// Strict rejects descriptions and candidates that do not parse.
	Strict  bool
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func (r *Router) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Offer forwards an offer to the room, sender excluded.
func (r *Router) Offer(from domain.ConnID, room domain.RoomName, offer json.RawMessage, fromName string) error {
	if err := r.checkDescription(room, "offer", offer, webrtc.SDPTypeOffer); err != nil {
		return err
	}
	sent := r.Out.DeliverRoom(room, from, core.EventOffer, RelayedOffer{
		Offer: offer, From: fromName, FromID: from, Timestamp: r.now(),
	})
	r.relayed(core.EventOffer, from, room, sent)
	return nil
}

// Answer forwards an answer to the room, sender excluded.
func (r *Router) Answer(from domain.ConnID, room domain.RoomName, answer json.RawMessage, fromName string) error {
	if err := r.checkDescription(room, "answer", answer, webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer); err != nil {
		return err
	}
	sent := r.Out.DeliverRoom(room, from, core.EventAnswer, RelayedAnswer{
		Answer: answer, From: fromName, FromID: from, Timestamp: r.now(),
	})
	r.relayed(core.EventAnswer, from, room, sent)
	return nil
}

// Candidate forwards a connectivity candidate to the room, sender excluded.
func (r *Router) Candidate(from domain.ConnID, room domain.RoomName, candidate json.RawMessage) error {
	if err := domain.ValidateRoom(room); err != nil {
		return err
	}
	if isAbsent(candidate) {
		return domain.Invalid("candidate", "is required")
	}
	if r.Strict {
		if err := checkCandidate(candidate); err != nil {
			return err
		}
	}
	sent := r.Out.DeliverRoom(room, from, core.EventICECandidate, RelayedCandidate{
		Candidate: candidate, FromID: from, Timestamp: r.now(),
	})
	r.relayed(core.EventICECandidate, from, room, sent)
	return nil
}

// RequestNewOffer asks target to rebuild and resend its offer.
// A target that is gone is not the caller's problem, and a connection never
// asks itself.
func (r *Router) RequestNewOffer(from, target domain.ConnID) error {
	if target == "" {
		return domain.Invalid("fromId", "is required")
	}
	if target == from {
		return nil
	}
	logger := log.With().Str("module", "app.router").Str("conn", string(from)).Str("target", string(target)).Logger()
	switch err := r.Out.Deliver(target, core.EventRecreateOffer, nil); {
	case errors.Is(err, core.ErrNotLive):
		logger.Debug().Msg("recreate-offer target gone")
	case err != nil:
		logger.Warn().Err(err).Msg("recreate-offer not delivered")
	default:
		r.Metrics.Relay(string(core.EventRecreateOffer))
		logger.Debug().Msg("recreate-offer sent")
	}
	return nil
}

func (r *Router) relayed(ev core.Event, from domain.ConnID, room domain.RoomName, sent int) {
	r.Metrics.Relay(string(ev))
	log.Debug().Str("module", "app.router").Str("event", string(ev)).Str("conn", string(from)).Str("room", string(room)).Int("sent_to", sent).Msg("relayed")
}

func (r *Router) checkDescription(room domain.RoomName, field string, raw json.RawMessage, want ...webrtc.SDPType) error {
	if err := domain.ValidateRoom(room); err != nil {
		return err
	}
	if isAbsent(raw) {
		return domain.Invalid(field, "is required")
	}
	if !r.Strict {
		return nil
	}
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return domain.Invalid(field, "is not a session description")
	}
	typeOK := false
	for _, t := range want {
		typeOK = typeOK || desc.Type == t
	}
	if !typeOK {
		return domain.Invalid(field, "has type "+desc.Type.String())
	}
	var parsed sdp.SessionDescription
	if err := parsed.Unmarshal([]byte(desc.SDP)); err != nil {
		return domain.Invalid(field, "carries unparsable sdp")
	}
	return nil
}

func checkCandidate(raw json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &init); err != nil {
		return domain.Invalid("candidate", "is not a candidate")
	}
	line := strings.TrimPrefix(init.Candidate, "candidate:")
	if line == "" {
		// end-of-candidates
		return nil
	}
	if _, err := ice.UnmarshalCandidate(line); err != nil {
		return domain.Invalid("candidate", "does not parse")
	}
	return nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
