package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds a single frame write so a stalled peer cannot
// wedge a broadcast.
const writeTimeout = 10 * time.Second

// Conn is the connection surface a Handle needs. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Handle is one attached live session. Writes are serialized; gorilla
// connections allow only one concurrent writer.
type Handle struct {
	identity string
	conn     Conn

	writeMu sync.Mutex
}

func NewHandle(identity string, conn Conn) *Handle {
	return &Handle{identity: identity, conn: conn}
}

func (h *Handle) Identity() string {
	return h.identity
}

func (h *Handle) Send(payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if err := h.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return h.conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Handle) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return h.Send(payload)
}

// CloseWithCode sends a close control frame, then tears the connection
// down.
func (h *Handle) CloseWithCode(code int, reason string) {
	h.writeMu.Lock()
	h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	h.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason))
	h.writeMu.Unlock()
	h.conn.Close()
}

func (h *Handle) Close() error {
	return h.conn.Close()
}
