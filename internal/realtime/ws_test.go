package realtime_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-progress/internal/realtime"
)

func waitForSubscribers(t *testing.T, hub *realtime.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Len(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServeWS_StreamsHints(t *testing.T) {
	hub := realtime.NewHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?student_id=1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	waitForSubscribers(t, hub, 1)

	hub.Broadcast(realtime.Hint{Type: realtime.HintProgressUpdated, StudentID: 2, TopicID: 1})
	hub.Broadcast(realtime.Hint{Type: realtime.HintProgressUpdated, StudentID: 1, TopicID: 6})

	var got realtime.Hint
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.StudentID != 1 || got.TopicID != 6 {
		t.Errorf("hint = %+v, want student 1 topic 6", got)
	}

	conn.Close(websocket.StatusNormalClosure, "")
	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Len() != 0 {
		t.Errorf("subscribers after close = %d, want 0", hub.Len())
	}
}

func TestServeWS_InvalidStudent(t *testing.T) {
	hub := realtime.NewHub()
	req := httptest.NewRequest(http.MethodGet, "/ws?student_id=abc", nil)
	rec := httptest.NewRecorder()

	hub.ServeWS(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
