package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wakemeup/internal/domain/alarm"
	"wakemeup/internal/logger"
	"wakemeup/internal/metrics"
)

const (
	// writeTimeout bounds a single WebSocket write.
	writeTimeout = 10 * time.Second
	// eventsPingInterval keeps idle event streams alive through proxies.
	eventsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon serves trusted local clients; origin checks stay off.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handlePositionsWS accepts a stream of position samples from a feeder. Each
// text message is one coordinate. A dropped connection injects a transient
// stream error so the session knows the feed went dark.
func (s *Server) handlePositionsWS(w http.ResponseWriter, r *http.Request) {
	if s.push == nil {
		writeError(w, http.StatusConflict, "position feed disabled: daemon runs on a replayed track")

		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(r.Context(), "Position feed upgrade failed", "error", err)

		return
	}

	defer func() {
		_ = conn.Close()
	}()

	logger.InfoKV(r.Context(), "Position feeder connected", "remote", conn.RemoteAddr().String())

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.push.Fail(errors.New("position feed disconnected"))
			}

			logger.InfoKV(r.Context(), "Position feeder disconnected", "error", err)

			return
		}

		var position alarm.Coordinate
		if err := json.Unmarshal(data, &position); err != nil {
			logger.WarnKV(r.Context(), "Dropping malformed position sample", "error", err)

			continue
		}

		metrics.PositionsReceived.Inc()
		s.push.Push(position)
	}
}

// handleEventsWS streams trigger events to a watcher until it disconnects.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(r.Context(), "Event stream upgrade failed", "error", err)

		return
	}

	defer func() {
		_ = conn.Close()
	}()

	events := s.events.Subscribe()
	defer s.events.Unsubscribe(events)

	// Reads are drained so close frames and the disconnect surface promptly.
	done := make(chan struct{})

	go func() {
		defer close(done)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := conn.WriteJSON(event); err != nil {
				logger.InfoKV(r.Context(), "Event watcher disconnected", "error", err)

				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
