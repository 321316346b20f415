package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/planea/portal/internal/portal"
)

const (
	streamWriteTimeout = 5 * time.Second
	streamKeepAlive    = 30 * time.Second
)

// handleStream upgrades to a WebSocket and pushes a snapshot now and after every
// change of the session. Client messages are ignored.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		slog.Warn("websocket accept failed", "session_id", sess.ID(), "error", err)
		return
	}
	defer conn.CloseNow()

	updates, cancel := sess.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	if err := writeSnapshot(ctx, conn, sess); err != nil {
		return
	}

	// An open stream keeps the session from idling out.
	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if err := ping(ctx, conn); err != nil {
				slog.Debug("stream ping failed", "session_id", sess.ID(), "error", err)
				return
			}
			sess.Touch()
		case _, open := <-updates:
			if !open {
				conn.Close(websocket.StatusGoingAway, "session closed")
				return
			}
			if err := writeSnapshot(ctx, conn, sess); err != nil {
				slog.Debug("stream write failed", "session_id", sess.ID(), "error", err)
				return
			}
		}
	}
}

func ping(ctx context.Context, conn *websocket.Conn) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return conn.Ping(ctx)
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, sess *portal.Session) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, sess.Snapshot(ctx))
}
