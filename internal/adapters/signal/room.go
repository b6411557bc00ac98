package signal

import (
	"encoding/json"

	"github.com/dkeye/Rendezvous/internal/domain"
)

func (ctl *SignalWSController) handleJoin(c *WsSignalConn, data json.RawMessage) error {
	var p joinPayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnJoin(c.id, domain.RoomName(p.Room), p.Name, p.Type)
}

// handleLeave leaves one room; the connection itself stays open.
func (ctl *SignalWSController) handleLeave(c *WsSignalConn, data json.RawMessage) error {
	var p leavePayload
	if err := ctl.decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.OnLeave(c.id, domain.RoomName(p.Room))
}
