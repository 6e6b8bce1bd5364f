package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory Conn: tests push inbound frames and inspect what
// the client wrote.
type fakeConn struct {
	inbound chan []byte
	done    chan struct{}
	once    sync.Once

	mu   sync.Mutex
	sent [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 64),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.sent = append(c.sent, cp)
	return nil
}

func (c *fakeConn) Ping() error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := EncodeFrame(event, payload)
	require.NoError(t, err)
	c.inbound <- data
}

func (c *fakeConn) pushRaw(data []byte) {
	c.inbound <- data
}

func (c *fakeConn) sentFrames(t *testing.T) []Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([]Envelope, 0, len(c.sent))
	for _, data := range c.sent {
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		frames = append(frames, env)
	}
	return frames
}

func (c *fakeConn) sentEvents(t *testing.T, event string) []Envelope {
	t.Helper()
	var out []Envelope
	for _, env := range c.sentFrames(t) {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

// fakeDialer fails the first failures dials (and every dial from failFrom
// on, when set), otherwise hands out fresh fakeConns.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	failFrom int
	failKind ErrorKind
	dials    int
	conns    []*fakeConn
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint, token string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failures || (d.failFrom > 0 && d.dials >= d.failFrom) {
		kind := d.failKind
		if kind == "" {
			kind = KindNetworkUnreachable
		}
		return nil, &ConnectError{Kind: kind, Err: errors.New("dial refused")}
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func newTestService(t *testing.T, cfg Config) (*Service, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	cfg.Endpoint = "http://fake"
	cfg.Dialer = dialer
	if cfg.Backoff.Floor == 0 {
		cfg.Backoff = BackoffPolicy{Floor: time.Millisecond, Ceiling: 2 * time.Millisecond, MaxAttempts: 5}
	}
	svc := New(cfg)
	t.Cleanup(svc.Close)
	return svc, dialer
}

// collect records every payload emitted under an event.
func collect[T any](t *testing.T, svc *Service, event string) *payloadRecorder[T] {
	t.Helper()
	rec := &payloadRecorder[T]{}
	unsub := svc.On(event, func(payload any) {
		p, ok := payload.(T)
		require.True(t, ok, "unexpected payload type %T for %s", payload, event)
		rec.append(p)
	})
	t.Cleanup(unsub)
	return rec
}

type payloadRecorder[T any] struct {
	mu   sync.Mutex
	seen []T
}

func (r *payloadRecorder[T]) append(p T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, p)
}

func (r *payloadRecorder[T]) all() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.seen))
	copy(out, r.seen)
	return out
}

func (r *payloadRecorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func TestConnectPublishesStatus(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	statuses := collect[StatusPayload](t, svc, EventConnectionStatus)

	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	require.Equal(t, StatusConnected, svc.Status())
	require.Equal(t, 1, dialer.dialCount())
	require.Equal(t, []StatusPayload{{Connected: true}}, statuses.all())
}

func TestConnectIsIdempotent(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	require.Equal(t, 1, dialer.dialCount())
}

func TestConnectAuthRejected(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	dialer.failures = 100
	dialer.failKind = KindAuthRejected
	errs := collect[ErrorPayload](t, svc, EventConnectionError)

	err := svc.Connect(context.Background(), "u1", "bad-token")
	require.Error(t, err)
	require.Equal(t, StatusDisconnected, svc.Status())
	require.Eventually(t, func() bool { return errs.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, KindAuthRejected, errs.all()[0].Kind)
}

func TestSendDroppedWhileOffline(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	// Never connected: sends must be silent no-ops, not queued.
	svc.Cursors.UpdateCursor("dream-1", json.RawMessage(`{"x":1}`))
	svc.Documents.BroadcastChange("dream-1", json.RawMessage(`{"op":"ins"}`))
	require.Equal(t, 0, dialer.dialCount())

	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	conn := dialer.conn(0)
	require.Empty(t, conn.sentFrames(t), "offline sends must not be replayed after connect")
}

func TestMalformedFrameIsDroppedNotFatal(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	errs := collect[ErrorPayload](t, svc, EventConnectionError)
	cursors := collect[PresenceCursorPayload](t, svc, EventPresenceCursor)

	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	conn := dialer.conn(0)

	conn.pushRaw([]byte(`{not json`))
	conn.pushRaw([]byte(`{"event":"presence:join","payload":{"roomId":""}}`))
	conn.push(t, EventPresenceCursor, PresenceCursorPayload{
		RoomID: "dream-1", UserID: "u2", Position: json.RawMessage(`{"x":3}`),
	})

	require.Eventually(t, func() bool { return cursors.count() == 1 }, time.Second, time.Millisecond)
	require.Equal(t, StatusConnected, svc.Status(), "connection must survive malformed frames")
	require.Equal(t, 2, errs.count())
	for _, e := range errs.all() {
		require.Equal(t, KindProtocolError, e.Kind)
	}
}

func TestDisconnectPublishesStatusAndIsSafeTwice(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	statuses := collect[StatusPayload](t, svc, EventConnectionStatus)

	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	svc.Disconnect()
	svc.Disconnect()

	require.Eventually(t, func() bool { return statuses.count() == 2 }, time.Second, time.Millisecond)
	require.Equal(t, []StatusPayload{{Connected: true}, {Connected: false}}, statuses.all())
	require.Equal(t, StatusDisconnected, svc.Status())
	// Explicit disconnect must not trigger the reconnect supervisor.
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, dialer.dialCount())
}

func TestInboundFramesRepublishedVerbatim(t *testing.T) {
	svc, dialer := newTestService(t, Config{})
	changes := collect[DocChangePayload](t, svc, EventDocChange)

	require.NoError(t, svc.Connect(context.Background(), "u1", "tok"))
	conn := dialer.conn(0)
	change := json.RawMessage(`{"pos":5,"insert":"falling"}`)
	conn.push(t, EventDocChange, DocChangePayload{RoomID: "dream-1", UserID: "u2", Change: change})

	require.Eventually(t, func() bool { return changes.count() == 1 }, time.Second, time.Millisecond)
	got := changes.all()[0]
	require.Equal(t, "dream-1", got.RoomID)
	require.Equal(t, "u2", got.UserID)
	require.JSONEq(t, string(change), string(got.Change))
}
