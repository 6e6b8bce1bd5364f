package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Status is the transport connection state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Client owns the single transport connection of a process. It performs no
// business logic: inbound frames are validated and republished verbatim on
// the bus under their event name, outbound sends are best-effort.
type Client struct {
	endpoint  string
	dialer    Dialer
	fallback  Dialer
	bus       *Bus
	log       *slog.Logger
	heartbeat time.Duration

	mu          sync.Mutex
	conn        Conn
	status      Status
	userID      string
	token       string
	intentional bool
	loopCancel  context.CancelFunc
	onDrop      func()
}

func newClient(cfg Config, bus *Bus) *Client {
	return &Client{
		endpoint:  cfg.Endpoint,
		dialer:    cfg.Dialer,
		fallback:  cfg.FallbackDialer,
		bus:       bus,
		log:       cfg.Logger,
		heartbeat: cfg.HeartbeatInterval,
		status:    StatusDisconnected,
	}
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// setOnDrop installs the unexpected-disconnect callback. Explicit Disconnect
// never triggers it.
func (c *Client) setOnDrop(fn func()) {
	c.mu.Lock()
	c.onDrop = fn
	c.mu.Unlock()
}

// Connect establishes the connection. Idempotent: calling it while already
// connected or connecting is a no-op. It suspends until the handshake
// completes or fails. Failures are both returned and published as
// connection:error with a classified kind.
func (c *Client) Connect(ctx context.Context, userID, token string) error {
	c.mu.Lock()
	if c.status != StatusDisconnected {
		c.mu.Unlock()
		return nil
	}
	c.status = StatusConnecting
	c.userID = userID
	c.token = token
	c.intentional = false
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		c.mu.Lock()
		c.status = StatusDisconnected
		c.mu.Unlock()
		kind := KindNetworkUnreachable
		var ce *ConnectError
		if errors.As(err, &ce) {
			kind = ce.Kind
		}
		c.bus.Emit(EventConnectionError, ErrorPayload{Kind: kind, Message: err.Error()})
		return err
	}

	// Loops outlive the Connect call's context: the connection belongs to
	// the process, not to the caller's request.
	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.conn = conn
	c.status = StatusConnected
	c.loopCancel = cancel
	c.mu.Unlock()

	c.bus.Emit(EventConnectionStatus, StatusPayload{Connected: true})
	go c.readLoop(conn)
	go c.heartbeatLoop(loopCtx, conn)
	return nil
}

// dial prefers the persistent bidirectional transport and falls back to the
// configured secondary transport on network failure. Auth rejections are
// final: the fallback would be rejected too.
func (c *Client) dial(ctx context.Context) (Conn, error) {
	conn, err := c.dialer.Dial(ctx, c.endpoint, c.token)
	if err == nil || c.fallback == nil {
		return conn, err
	}
	var ce *ConnectError
	if errors.As(err, &ce) && ce.Kind == KindAuthRejected {
		return nil, err
	}
	c.log.Warn("primary transport failed, trying fallback", "err", err)
	return c.fallback.Dial(ctx, c.endpoint, c.token)
}

// reconnect re-dials with the credentials from the last Connect call.
func (c *Client) reconnect(ctx context.Context) error {
	c.mu.Lock()
	userID, token := c.userID, c.token
	c.mu.Unlock()
	return c.Connect(ctx, userID, token)
}

// Disconnect tears the connection down. Safe to call when already
// disconnected. The drop callback is suppressed; connection:status with
// connected=false still fires from the read loop teardown.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Send is a best-effort fire-and-forget: while not connected the frame is
// silently dropped, never queued.
func (c *Client) Send(event string, payload any) {
	c.mu.Lock()
	conn := c.conn
	connected := c.status == StatusConnected
	c.mu.Unlock()
	if !connected || conn == nil {
		c.log.Debug("send dropped while offline", "event", event)
		return
	}
	data, err := EncodeFrame(event, payload)
	if err != nil {
		c.log.Error("frame encode failed", "event", event, "err", err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		c.log.Warn("send failed", "event", event, "err", err)
	}
}

// readLoop processes inbound frames sequentially. A malformed frame is
// logged, surfaced as a protocol error, and dropped; the connection stays up.
func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		event, payload, derr := DecodeServerFrame(data)
		if derr != nil {
			c.log.Warn("dropping malformed frame", "err", derr)
			c.bus.Emit(EventConnectionError, ErrorPayload{Kind: KindProtocolError, Message: derr.Error()})
			continue
		}
		c.bus.Emit(event, payload)
	}
	c.teardown(conn)
}

func (c *Client) teardown(conn Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// A stale loop from an earlier connection; the live one owns state.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.status = StatusDisconnected
	if c.loopCancel != nil {
		c.loopCancel()
		c.loopCancel = nil
	}
	wasIntentional := c.intentional
	onDrop := c.onDrop
	c.mu.Unlock()

	conn.Close()
	c.bus.Emit(EventConnectionStatus, StatusPayload{Connected: false})
	if !wasIntentional && onDrop != nil {
		onDrop()
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn Conn) {
	if c.heartbeat <= 0 {
		return
	}
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				c.log.Warn("heartbeat failed", "err", err)
				conn.Close()
				return
			}
		}
	}
}
