// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eyevinn/strom/internal/log"
)

// wsUpgrader wraps gorilla/websocket's Upgrader, restricting the Origin
// header to the configured allowlist when one is set.
type wsUpgrader struct {
	upgrader websocket.Upgrader
}

func newWSUpgrader(allowedOrigins []string) wsUpgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = true
		}
		u.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return allowed[origin]
		}
	}
	return wsUpgrader{upgrader: u}
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// handleWS implements GET /ws (spec §6): upgrades the connection, then
// forwards every StromEvent published on the broadcaster as a JSON
// text frame until the client disconnects or its mailbox is torn down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.L().Debug().Err(err).Msg("httpapi: ws upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	sub := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(sub)

	// Drain and discard client frames so gorilla's read loop notices a
	// closed connection; this is a server-push stream, clients don't send.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
