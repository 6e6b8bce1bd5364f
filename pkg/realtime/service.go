package realtime

import (
	"context"
	"log/slog"
	"time"
)

// Config configures a realtime Service. Zero values take the defaults below.
type Config struct {
	// Endpoint is the relay base URL, e.g. https://sync.example.com.
	Endpoint string

	// HeartbeatInterval paces transport pings; PresenceTTL bounds how long a
	// silent presence entry survives. The TTL should cover several missed
	// heartbeats.
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration

	// Backoff is the reconnection policy applied on unexpected drops.
	Backoff BackoffPolicy

	// Loader reloads collections for change-feed subscriptions. Usually an
	// HTTPLoader against the relay's /api endpoints.
	Loader CollectionLoader

	// Applier optionally consumes inbound document changes; nil means the
	// application reads doc:change from the bus itself.
	Applier ChangeApplier

	Logger         *slog.Logger
	Dialer         Dialer
	FallbackDialer Dialer
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Dialer == nil {
		c.Dialer = wsDialer{}
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.PresenceTTL <= 0 {
		c.PresenceTTL = 45 * time.Second
	}
	c.Backoff = c.Backoff.withDefaults()
}

// Service bundles the realtime components behind one explicit instance.
// Construct it once at startup and pass it by reference; tests construct
// isolated instances per case. There is no package-level singleton.
type Service struct {
	bus    *Bus
	client *Client
	cancel context.CancelFunc

	Presence  *Tracker
	Cursors   *CursorBroadcaster
	Documents *DocumentBroadcaster
	Feed      *Subscriber
	recon     *Reconnector
}

func New(cfg Config) *Service {
	cfg.defaults()
	bus := NewBus(cfg.Logger)
	client := newClient(cfg, bus)
	ctx, cancel := context.WithCancel(context.Background())

	tracker := newTracker(cfg, bus, client)
	feed := newSubscriber(ctx, cfg, bus)
	recon := newReconnector(ctx, cfg, bus, client, tracker, feed)
	client.setOnDrop(recon.handleDrop)
	go tracker.runSweeper(ctx)

	return &Service{
		bus:       bus,
		client:    client,
		cancel:    cancel,
		Presence:  tracker,
		Cursors:   newCursorBroadcaster(client),
		Documents: newDocumentBroadcaster(cfg, bus, client),
		Feed:      feed,
		recon:     recon,
	}
}

// Connect establishes the transport connection. Idempotent; suspends until
// the handshake completes or fails.
func (s *Service) Connect(ctx context.Context, userID, token string) error {
	return s.client.Connect(ctx, userID, token)
}

// Disconnect tears down the connection and clears the room replay list.
// Safe when already disconnected.
func (s *Service) Disconnect() {
	s.Presence.Reset()
	s.client.Disconnect()
}

// Status reports the transport connection status.
func (s *Service) Status() Status {
	return s.client.Status()
}

// On registers a handler on the local event bus and returns its unsubscribe.
func (s *Service) On(event string, fn Handler) func() {
	return s.bus.On(event, fn)
}

// Close releases background goroutines and bus registrations. The Service
// is not usable afterwards.
func (s *Service) Close() {
	s.Disconnect()
	s.cancel()
	s.Presence.close()
	s.Documents.close()
}
