package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Rendezvous/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
	ErrNotLive      = errors.New("connection not live")
)

// Frame is one encoded envelope.
type Frame []byte

// Envelope is the wire shape of every message in both directions.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode wraps payload into an envelope. A nil payload produces no data field.
func Encode(ev Event, payload any) (Frame, error) {
	env := Envelope{Event: ev}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev, err)
		}
		env.Data = raw
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev, err)
	}
	return b, nil
}

//go:generate mockgen -destination=mocks/mock_connection.go -package=mocks github.com/dkeye/Rendezvous/internal/core Connection

// Connection abstracts a live signaling transport endpoint.
// Owned by the adapter; Close fires the OnClose handler exactly once.
type Connection interface {
	ID() domain.ConnID
	TrySend(Frame) error
	OnClose(func(reason string))
	Close(reason string)
}

// Deliverer is what presence and relay code needs from the transport side.
type Deliverer interface {
	// Deliver sends to one connection. ErrNotLive if it is gone.
	Deliver(to domain.ConnID, ev Event, payload any) error
	// DeliverRoom sends to every member of room except one and reports how many got it.
	DeliverRoom(room domain.RoomName, except domain.ConnID, ev Event, payload any) int
}
