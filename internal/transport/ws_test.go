package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/genuine-oj/judger/internal/grader"
)

// dialWS spins up a one-shot upgrade server and returns both ends of
// the resulting websocket connection for a test to drive directly,
// mirroring how cmd/judger's own /ws handler is exercised in practice.
func dialWS(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverReady := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverReady <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("client dial failed: %v", err)
	}
	t.Cleanup(func() { clientConn.Close() })

	return <-serverReady, clientConn
}

func TestWSSinkEmitWritesTextFrame(t *testing.T) {
	server, client := dialWS(t)
	sink := NewWSSink(server)

	if err := sink.Emit(grader.TaskEvent{Kind: grader.EventPart, PartTestCase: "1", PartStatus: 0}); err != nil {
		t.Fatalf("Emit returned error: %v", err)
	}

	_, body, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("client read failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if decoded["type"] != "part" {
		t.Fatalf("frame type = %v, want part", decoded["type"])
	}
	if decoded["test_case"] != "1" {
		t.Fatalf("frame test_case = %v, want 1", decoded["test_case"])
	}
}

func TestWSSinkEmitAfterCloseErrors(t *testing.T) {
	server, _ := dialWS(t)
	sink := NewWSSink(server)
	sink.closed = true
	if err := sink.Emit(grader.TaskEvent{Kind: grader.EventFinal}); err == nil {
		t.Fatal("expected Emit after Close to error")
	}
}

func TestWSSinkCloseSendsCloseFrame(t *testing.T) {
	server, client := dialWS(t)
	sink := NewWSSink(server)

	if err := sink.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	_, _, err := client.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal closure error, got %v", err)
	}
}
