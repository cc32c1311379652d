package broker

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Session wraps one websocket connection with a write lock, since gorilla
// permits only a single concurrent writer per connection.
type Session struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func NewSession(conn *websocket.Conn) *Session {
	return &Session{conn: conn}
}

func (s *Session) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *Session) Close() error {
	return s.conn.Close()
}
