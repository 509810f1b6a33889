package relay

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startRelay(t *testing.T) (srv *Server, url string) {
	t.Helper()
	srv = NewServer(nil)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dialClient(t *testing.T, url, room, id string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := Dial(ctx, url, room, id, "name-"+id)
	if err != nil {
		t.Fatalf("Dial %s: %v", id, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestRelayFansOutBinaryFrames(t *testing.T) {
	srv, url := startRelay(t)
	a := dialClient(t, url, "physics-101", "a")
	b := dialClient(t, url, "physics-101", "b")

	if got := srv.RoomSize("physics-101"); got != 2 {
		t.Fatalf("RoomSize=%d, want 2", got)
	}

	pcm := []byte{1, 0, 2, 0, 3, 0}
	if err := a.SendFrame(pcm); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}

	select {
	case frame := <-b.Frames():
		if !bytes.Equal(frame.Binary, pcm) {
			t.Fatalf("frame=%v, want %v", frame.Binary, pcm)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the frame")
	}

	// Sender must not hear its own frame back.
	select {
	case frame := <-a.Frames():
		t.Fatalf("sender received its own frame: %v", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelayIsolatesRooms(t *testing.T) {
	_, url := startRelay(t)
	a := dialClient(t, url, "room-1", "a")
	b := dialClient(t, url, "room-2", "b")

	if err := a.SendFrame([]byte{9, 9}); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	select {
	case frame := <-b.Frames():
		t.Fatalf("cross-room frame leaked: %v", frame)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRelayFansOutTextEvents(t *testing.T) {
	_, url := startRelay(t)
	a := dialClient(t, url, "r", "a")
	b := dialClient(t, url, "r", "b")

	type chat struct {
		Kind string `json:"kind"`
		Text string `json:"text"`
	}
	if err := a.SendEvent(chat{Kind: "chat", Text: "hola"}); err != nil {
		t.Fatalf("SendEvent: %v", err)
	}

	select {
	case frame := <-b.Frames():
		if frame.Text == nil || !strings.Contains(string(frame.Text), "hola") {
			t.Fatalf("frame=%+v, want text event", frame)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("peer never received the event")
	}
}

func TestRelayRejectsBadJoin(t *testing.T) {
	_, url := startRelay(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"join"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "bad_request") {
		t.Fatalf("response=%s, want bad_request error", data)
	}
}

func TestRelayLeaveShrinksRoom(t *testing.T) {
	srv, url := startRelay(t)
	a := dialClient(t, url, "r", "a")
	_ = dialClient(t, url, "r", "b")

	a.Close()
	deadline := time.Now().Add(2 * time.Second)
	for srv.RoomSize("r") != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("RoomSize=%d, want 1 after leave", srv.RoomSize("r"))
		}
		time.Sleep(5 * time.Millisecond)
	}
}
