package realtime

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// BackoffPolicy is the explicit, injected reconnection policy. No transport
// library defaults are relied on; behavior is deterministic and testable.
type BackoffPolicy struct {
	Floor       time.Duration // first delay
	Ceiling     time.Duration // delay cap
	MaxAttempts int           // attempts before giving up
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.Floor <= 0 {
		p.Floor = time.Second
	}
	if p.Ceiling <= 0 {
		p.Ceiling = 30 * time.Second
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 10
	}
	return p
}

// Delay returns the wait before the given zero-based attempt: the floor
// doubled per attempt, capped at the ceiling, with up to 10% jitter so a
// fleet of clients does not thunder back in lockstep.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	delay := p.Floor
	for i := 0; i < attempt && delay < p.Ceiling; i++ {
		delay *= 2
	}
	if delay > p.Ceiling {
		delay = p.Ceiling
	}
	return delay + time.Duration(rand.Int63n(int64(delay)/10+1))
}

// Reconnector supervises the transport connection: on an unexpected drop it
// re-dials with the same credentials under the backoff policy, then replays
// desired room membership and refreshes change-feed subscriptions. Explicit
// Disconnect never triggers it. Exhausting the attempt budget is terminal
// until the caller explicitly reconnects.
type Reconnector struct {
	ctx     context.Context
	client  *Client
	tracker *Tracker
	feed    *Subscriber
	bus     *Bus
	log     *slog.Logger
	policy  BackoffPolicy

	mu      sync.Mutex
	running bool
}

func newReconnector(ctx context.Context, cfg Config, bus *Bus, client *Client, tracker *Tracker, feed *Subscriber) *Reconnector {
	return &Reconnector{
		ctx:     ctx,
		client:  client,
		tracker: tracker,
		feed:    feed,
		bus:     bus,
		log:     cfg.Logger,
		policy:  cfg.Backoff.withDefaults(),
	}
}

// handleDrop is installed as the client's unexpected-disconnect callback.
func (r *Reconnector) handleDrop() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()
	go r.run()
}

func (r *Reconnector) run() {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		delay := r.policy.Delay(attempt)
		r.log.Info("reconnecting", "attempt", attempt+1, "max_attempts", r.policy.MaxAttempts, "delay", delay)
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(delay):
		}
		if r.client.Status() == StatusConnected {
			// Caller reconnected explicitly while we were waiting.
			return
		}
		if err := r.client.reconnect(r.ctx); err != nil {
			r.log.Warn("reconnect attempt failed", "attempt", attempt+1, "err", err)
			continue
		}
		r.tracker.Replay()
		r.feed.RefreshAll(r.ctx)
		r.log.Info("reconnected", "attempt", attempt+1)
		return
	}
	r.log.Error("reconnect attempts exhausted", "max_attempts", r.policy.MaxAttempts)
	r.bus.Emit(EventConnectionError, ErrorPayload{Kind: KindReconnectExhausted, Message: "reconnect attempts exhausted"})
}
