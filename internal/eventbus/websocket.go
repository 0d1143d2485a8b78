// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package eventbus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// SnapshotFunc returns the ticket slice to embed in a new subscriber's
// first frame, already filtered according to include_terminal.
type SnapshotFunc func(includeTerminal bool) []domain.Ticket

// ServeWS upgrades the request to a WebSocket and pumps Hub messages to it
// until the connection closes, per §6's `WS /ws?include_terminal=`.
func ServeWS(hub *Hub, snapshot SnapshotFunc, w http.ResponseWriter, r *http.Request) {
	includeTerminal, _ := strconv.ParseBool(r.URL.Query().Get("include_terminal"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := hub.Subscribe(snapshot(includeTerminal))
	log.Info().Uint64("subscriber_id", sub.ID()).Msg("event bus subscriber connected")

	done := make(chan struct{})
	go readPump(conn, hub, sub, done)
	writePump(conn, sub, done)
}

// readPump only exists to detect the client closing the connection and to
// answer pings with pongs at the protocol level; the engine never expects
// inbound application messages on this endpoint.
func readPump(conn *websocket.Conn, hub *Hub, sub *Subscriber, done chan struct{}) {
	defer func() {
		hub.Unsubscribe(sub)
		_ = conn.Close()
		close(done)
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Uint64("subscriber_id", sub.ID()).Msg("event bus subscriber read error")
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscriber, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case <-done:
			return

		case msg, ok := <-sub.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn().Err(err).Uint64("subscriber_id", sub.ID()).Msg("event bus subscriber write error")
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
