package transport

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/genuine-oj/judger/internal/grader"
	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
)

// WSSink writes one JSON text frame per event. Unlike TCPSink it sends
// no ack frame on Close — a browser client has no equivalent of reading
// a single byte before hanging up, so Close just sends the WebSocket
// close handshake.
type WSSink struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

// NewWSSink wraps an upgraded connection.
func NewWSSink(conn *websocket.Conn) *WSSink {
	return &WSSink{conn: conn}
}

// Emit writes evt as a single text frame.
func (s *WSSink) Emit(evt grader.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pkgerrors.New(pkgerrors.JudgeSystemError).WithMessage("websocket sink already closed")
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("marshal event failed")
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("write websocket frame failed")
	}
	return nil
}

// Close sends a normal closure frame and releases the connection.
func (s *WSSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	return s.conn.Close()
}
