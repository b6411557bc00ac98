package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/core"
	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sseHeartbeat = 15 * time.Second

// GET /api/rooms
func listRooms(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	}
}

// GET /api/rooms/:name/members
func roomMembers(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := domain.RoomName(c.Param("name"))
		c.JSON(http.StatusOK, gin.H{
			"room":    name,
			"members": domain.Views(o.Rooms.Snapshot(name)),
		})
	}
}

// GET /api/rooms/:name/events streams users-update for one room.
func roomEvents(ctx context.Context, o *orch.Orchestrator, watchers *app.Watchers) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := domain.RoomName(c.Param("name"))
		feed, stop := watchers.Subscribe(name)
		defer stop()

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)

		write := func(ev sse.Event) bool {
			if err := sse.Encode(c.Writer, ev); err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Str("room", string(name)).Msg("sse write")
				return false
			}
			c.Writer.Flush()
			return true
		}

		if !write(sse.Event{Event: string(core.EventUsersUpdate), Data: domain.Views(o.Rooms.Snapshot(name))}) {
			return
		}
		log.Info().Str("module", "adapters.http").Str("room", string(name)).Msg("sse watcher attached")

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.Request.Context().Done():
				return
			case views, ok := <-feed:
				if !ok || !write(sse.Event{Event: string(core.EventUsersUpdate), Data: views}) {
					return
				}
			case t := <-heartbeat.C:
				if !write(sse.Event{Event: "ping", Data: t.UTC().Format(time.RFC3339)}) {
					return
				}
			}
		}
	}
}
