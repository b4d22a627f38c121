package ws

import (
	"sync/atomic"

	"github.com/gorilla/websocket"
)

type outMsg struct {
	kind int // websocket.TextMessage or websocket.BinaryMessage
	data []byte
}

type session struct {
	id  string
	out chan outMsg

	wantMeshes    atomic.Bool
	driveObserver atomic.Bool
	needResync    atomic.Bool
	dropped       atomic.Uint64
}

func newSession(id string, buffer int) *session {
	return &session{
		id:  id,
		out: make(chan outMsg, buffer),
	}
}

// send queues a message without blocking. A full buffer drops the message and
// flags the session for a resync.
func (s *session) send(kind int, data []byte) bool {
	select {
	case s.out <- outMsg{kind: kind, data: data}:
		return true
	default:
		s.dropped.Add(1)
		s.needResync.Store(true)
		return false
	}
}

func (s *session) sendText(data []byte) bool {
	return s.send(websocket.TextMessage, data)
}

func (s *session) sendBinary(data []byte) bool {
	return s.send(websocket.BinaryMessage, data)
}
