package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSocketPair upgrades a loopback connection and returns the server side
// wrapped in our WebSocket plus the raw client side for reading.
func newSocketPair(t *testing.T) (*WebSocket, *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	serverConn := <-serverConns
	return NewWebSocket(context.Background(), serverConn), clientConn
}

func TestSendAfterCloseReturnsErrorWithoutPanic(t *testing.T) {
	serverWS, _ := newSocketPair(t)
	client := NewClient(context.Background(), serverWS, "c1", "alice")

	client.Close()

	// Enough sends to wrap the buffer several times over.
	for i := 0; i < 1000; i++ {
		err := client.Send(context.Background(), []byte(`{"event":"x"}`))
		assert.Error(t, err)
	}
}

func TestCloseIsSafeConcurrentlyWithSend(t *testing.T) {
	serverWS, _ := newSocketPair(t)
	client := NewClient(context.Background(), serverWS, "c1", "alice")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				_ = client.Send(context.Background(), []byte(`{}`))
			}
		}()
	}
	time.Sleep(time.Millisecond)
	client.Close()
	client.Close() // double Close must be a no-op
	wg.Wait()
}

func TestSendDeliversWhileOpen(t *testing.T) {
	serverWS, clientConn := newSocketPair(t)
	client := NewClient(context.Background(), serverWS, "c1", "alice")
	defer client.Close()

	require.NoError(t, client.Send(context.Background(), []byte(`{"event":"hello"}`)))

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := clientConn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"hello"}`, string(data))
}
