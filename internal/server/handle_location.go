package server

import (
	"errors"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/playperu/walkquest/internal/geo"
)

// LocationMessage is one client-side position sample. Error carries the
// platform failure (permission denied, timeout) when no fix is available.
type LocationMessage struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// fix leaves At unset; the monitor stamps it with the session clock.
func (m LocationMessage) fix() geo.Fix {
	if m.Error != "" {
		return geo.Fix{Err: errors.New(m.Error)}
	}
	return geo.Fix{Coord: geo.Coord{Lat: m.Lat, Lng: m.Lng}, Accuracy: m.Accuracy}
}

// handleLocation upgrades to a websocket and feeds every received sample
// into the session's location feed until either side goes away.
func handleLocation(logger *slog.Logger, reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		ls, err := reg.Get(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(4096)

		ctx := r.Context()
		for {
			var msg LocationMessage
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				logger.Debug("location stream ended", "error", err)
				return
			}
			if _, err := reg.Get(token); err != nil {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			ls.feed.Publish(msg.fix())
		}
	}
}
