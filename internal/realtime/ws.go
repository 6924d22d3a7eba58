package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// ServeWS upgrades the request to a websocket and streams hints to it until
// either side goes away. The optional student_id query parameter limits the
// stream to one student.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var studentID int64
	if v := r.URL.Query().Get("student_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, `{"error":"invalid student_id"}`, http.StatusBadRequest)
			return
		}
		studentID = id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Any origin may connect, matching the CORS policy of the REST API.
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	sub := h.Subscribe(studentID)
	defer h.Unsubscribe(sub)

	slog.Debug("websocket subscriber connected", "subscriber_id", sub.ID, "student_id", studentID)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer closes.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case hint, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := writeHint(ctx, conn, hint); err != nil {
				slog.Debug("websocket write failed", "subscriber_id", sub.ID, "error", err)
				return
			}
		}
	}
}

func writeHint(ctx context.Context, conn *websocket.Conn, hint Hint) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, hint)
}
