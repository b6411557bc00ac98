package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	ReasonClientClosed   = "client-closed"
	ReasonPingTimeout    = "ping-timeout"
	ReasonTransportError = "transport-error"
	ReasonServerShutdown = "server-shutdown"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ReasonServerShutdown),
				time.Now().Add(ctl.writeWait))
			return
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(ctl.writeWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ping")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, c *WsSignalConn) {
	reason := ReasonTransportError
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("reason", reason).Msg("readPump closing")
		c.Close(reason)
	}()

	c.conn.SetReadLimit(ctl.readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			reason = disconnectReason(ctx, err)
			if reason == ReasonTransportError {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("readPump read error")
			}
			return
		}
		// Any inbound frame proves liveness as well as a pong does.
		_ = c.conn.SetReadDeadline(time.Now().Add(ctl.pongWait))
		ctl.handleSignal(c, data)
	}
}

func disconnectReason(ctx context.Context, err error) string {
	var netErr net.Error
	switch {
	case ctx.Err() != nil:
		return ReasonServerShutdown
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		return ReasonClientClosed
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonPingTimeout
	default:
		return ReasonTransportError
	}
}

func (ctl *SignalWSController) handleSignal(c *WsSignalConn, data []byte) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("bad json")
		ctl.sendError(c, "", errorBadPayload, "", "message is not a JSON envelope")
		return
	}

	var err error
	switch env.Event {
	case core.EventJoin:
		err = ctl.handleJoin(c, env.Data)
	case core.EventLeave:
		err = ctl.handleLeave(c, env.Data)
	case core.EventOffer:
		err = ctl.handleOffer(c, env.Data)
	case core.EventAnswer:
		err = ctl.handleAnswer(c, env.Data)
	case core.EventICECandidate:
		err = ctl.handleCandidate(c, env.Data)
	case core.EventRequestNewOffer:
		err = ctl.handleRequestNewOffer(c, env.Data)
	default:
		log.Warn().Str("module", "signal").Str("conn", string(c.id)).Str("event", string(env.Event)).Msg("unknown signal")
		ctl.sendError(c, env.Event, errorUnknownEvent, "", "unknown event")
		return
	}
	if err != nil {
		ctl.reject(c, env.Event, err)
	}
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, ev core.Event, v any) {
	frame, err := core.Encode(ev, v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(frame)
}
