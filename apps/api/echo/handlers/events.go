package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/edusuite/presence/core"
	"github.com/edusuite/presence/core/event"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

type eventsApi struct {
	bus      *event.Bus
	upgrader websocket.Upgrader
	log      core.Logger
}

func RegisterEventsAPI(g *echo.Group, jwt echo.MiddlewareFunc, bus *event.Bus, log core.Logger) {
	api := eventsApi{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}

	eg := g.Group("/events", jwt)
	eg.GET("", api.eventsSubscribe)
}

// eventsSubscribe upgrades to a websocket and streams fanout events for
// the requested topics (?topic=session:{id}&topic=presenter:{id}).
// Delivery is best-effort; a slow dashboard misses events, it never
// backs up the protocol.
func (api *eventsApi) eventsSubscribe(ctx echo.Context) error {
	topics := ctx.QueryParams()["topic"]
	if len(topics) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one topic is required")
	}

	// subscribe before the handshake completes so no event published
	// after the client sees the 101 is missed
	sub := api.bus.Subscribe(topics...)
	conn, err := api.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		api.bus.Unsubscribe(sub)
		return err
	}
	go api.writePump(conn, sub)
	go api.readPump(conn, sub)
	return nil
}

func (api *eventsApi) writePump(conn *websocket.Conn, sub *event.Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				api.log.Debug(fmt.Sprintf("events: write failed: %v", err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames and unsubscribes when the peer goes
// away, which also ends the write pump.
func (api *eventsApi) readPump(conn *websocket.Conn, sub *event.Subscriber) {
	defer api.bus.Unsubscribe(sub)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
