package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"portraitstudio/internal/studio"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = (eventsPongWait * 9) / 10
)

// Events streams session snapshots over a WebSocket until the client goes away.
func (a *App) Events(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := a.Studio.Get(r.Context(), id); err != nil {
		a.stageError(w, r, err, studio.Session{})
		return
	}

	// The server write timeout would otherwise close long-lived streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Str("session_id", id).Msg("handler: websocket upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel, err := a.Studio.Watch(r.Context(), id)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session not found"),
			time.Now().Add(eventsWriteWait))
		return
	}
	defer cancel()

	// The reader only handles control frames; it ends when the client closes.
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(eventsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case sess, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteJSON(newSessionView(sess)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
