package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds how long a control-frame write may block on a stuck peer.
const writeWait = 5 * time.Second

// leg wraps one side of a connection pair with a write mutex.
// gorilla/websocket does not support concurrent writes.
type leg struct {
	name string // "client" or "upstream"
	conn *websocket.Conn

	wmu       sync.Mutex
	open      atomic.Bool
	closeOnce sync.Once
}

func newLeg(name string, conn *websocket.Conn) *leg {
	l := &leg{name: name, conn: conn}
	l.open.Store(true)
	return l
}

func (l *leg) isOpen() bool { return l.open.Load() }

func (l *leg) markClosed() { l.open.Store(false) }

func (l *leg) writeMessage(msgType int, data []byte) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	return l.conn.WriteMessage(msgType, data)
}

// ping sends a WebSocket ping control frame. The peer's protocol stack
// answers it; the relayed application traffic never sees it.
func (l *leg) ping() error {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	return l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// closeGraceful sends a close frame with the given code and reason.
// Repeat calls are no-ops, so concurrent teardown triggers collapse into
// at most one close attempt per leg.
func (l *leg) closeGraceful(code int, reason string) {
	l.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(code, truncateReason(reason))
		l.wmu.Lock()
		_ = l.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		l.wmu.Unlock()
		// The leg has left Open: anything still relayed toward it is
		// dropped instead of queued behind a dying connection.
		l.markClosed()
	})
}

// terminate drops the transport without a close handshake.
func (l *leg) terminate() {
	l.markClosed()
	_ = l.conn.Close()
}

// truncateReason keeps close reasons inside the 123-byte limit the
// protocol imposes on control frame payloads.
func truncateReason(reason string) string {
	if len(reason) > 123 {
		return reason[:123]
	}
	return reason
}
