package signal

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type SignalWSController struct {
	Orch *orch.Orchestrator

	readLimit  int64
	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration
	sendBuffer int

	validate *validator.Validate
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Orch:       o,
		readLimit:  cfg.ReadLimit,
		pingPeriod: cfg.PingPeriod,
		pongWait:   cfg.PongWait,
		writeWait:  cfg.WriteWait,
		sendBuffer: cfg.SendBuffer,
		validate:   newValidator(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// WsSignalConn is the WebSocket endpoint of one participant.
// It implements core.Connection; only writePump writes to the socket.
type WsSignalConn struct {
	id   domain.ConnID
	conn *websocket.Conn
	send chan core.Frame

	mu      sync.RWMutex
	closed  bool
	onClose func(reason string)
}

func (c *WsSignalConn) ID() domain.ConnID { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) OnClose(fn func(reason string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

// Close stops the writer, which closes the socket and unblocks the reader.
// The close handler runs once, with the first reason given.
func (c *WsSignalConn) Close(reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	fn := c.onClose
	c.mu.Unlock()

	log.Info().Str("module", "signal").Str("conn", string(c.id)).Str("reason", reason).Msg("connection closed")
	if fn != nil {
		fn(reason)
	}
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		id:   domain.ConnID(uuid.NewString()),
		conn: ws,
		send: make(chan core.Frame, ctl.sendBuffer),
	}
	log.Info().Str("module", "signal").Str("conn", string(conn.id)).Str("client", c.GetString("client_token")).Str("remote", c.ClientIP()).Msg("new WS connection")

	ctl.Orch.OnConnect(conn)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}
