package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one established transport connection. Implementations must allow
// ReadMessage to run concurrently with WriteMessage/Ping, and must make
// WriteMessage safe for serialized callers.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Ping() error
	Close() error
}

// Dialer establishes a Conn against the relay endpoint. The default is the
// websocket dialer; tests inject fakes, and a polling fallback can be
// supplied through Config.FallbackDialer for networks that break websockets.
type Dialer interface {
	Dial(ctx context.Context, endpoint, token string) (Conn, error)
}

// ConnectError carries the classified failure kind of a dial attempt.
type ConnectError struct {
	Kind ErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect (%s): %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

const (
	writeTimeout   = 10 * time.Second
	maxMessageSize = 512 * 1024 // 512KB max message size
	pongWait       = 60 * time.Second
)

// wsDialer is the production Dialer on top of gorilla/websocket.
type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, &ConnectError{Kind: KindNetworkUnreachable, Err: err}
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		kind := KindNetworkUnreachable
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			kind = KindAuthRejected
		}
		return nil, &ConnectError{Kind: kind, Err: err}
	}
	return newWSConn(conn), nil
}

// wsConn wraps a gorilla connection with the limits and write serialization
// the relay side also applies.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsConn{conn: conn}
}

func (w *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	return data, err
}

func (w *wsConn) WriteMessage(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Ping() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

func (w *wsConn) Close() error {
	return w.conn.Close()
}
