package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
)

// CollectionLoader is the boundary to the persistence/query layer: given an
// entity table name it returns the whole current collection. The change feed
// never patches incrementally; it always refetches through this interface,
// which keeps it idempotent under duplicate or reordered notifications.
type CollectionLoader interface {
	Reload(ctx context.Context, table string) ([]json.RawMessage, error)
}

// ChangeHandler receives the freshly reloaded collection.
type ChangeHandler func(collection []json.RawMessage)

type subscription struct {
	fn ChangeHandler
}

type tableFeed struct {
	unsub func()
	subs  []*subscription
}

// Subscriber reacts to notification frames: any mutation notification for a
// subscribed table triggers a full reload of that table's collection.
// Notifications are processed sequentially on the connection read loop, so
// back-to-back notifications cannot interleave partial state.
type Subscriber struct {
	ctx    context.Context
	loader CollectionLoader
	bus    *Bus
	log    *slog.Logger

	mu    sync.Mutex
	feeds map[string]*tableFeed
}

func newSubscriber(ctx context.Context, cfg Config, bus *Bus) *Subscriber {
	return &Subscriber{
		ctx:    ctx,
		loader: cfg.Loader,
		bus:    bus,
		log:    cfg.Logger,
		feeds:  make(map[string]*tableFeed),
	}
}

// Subscribe registers interest in mutation notifications for one entity
// table. The underlying notification registration is opened on the first
// subscriber of a table and reused by later ones. The returned unsubscribe
// removes exactly this registration, even among duplicates on the same
// table; the registration is closed when the last subscriber leaves.
func (s *Subscriber) Subscribe(table string, onChange ChangeHandler) func() {
	if s.loader == nil {
		s.log.Error("change feed subscribe without a collection loader", "table", table)
		return func() {}
	}

	s.mu.Lock()
	tf := s.feeds[table]
	if tf == nil {
		tf = &tableFeed{}
		tf.unsub = s.bus.On(EventNotification, func(payload any) {
			s.handleNotification(table, payload)
		})
		s.feeds[table] = tf
	}
	sub := &subscription{fn: onChange}
	tf.subs = append(tf.subs, sub)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		tf := s.feeds[table]
		if tf == nil {
			return
		}
		for i, existing := range tf.subs {
			if existing == sub {
				tf.subs = append(tf.subs[:i], tf.subs[i+1:]...)
				break
			}
		}
		if len(tf.subs) == 0 {
			tf.unsub()
			delete(s.feeds, table)
		}
	}
}

// RefreshAll reloads every subscribed table and invokes all callbacks.
// Called after a reconnect: notifications may have been missed while
// offline, and a fresh reload heals whatever happened in the gap.
func (s *Subscriber) RefreshAll(ctx context.Context) {
	s.mu.Lock()
	tables := make([]string, 0, len(s.feeds))
	for table := range s.feeds {
		tables = append(tables, table)
	}
	s.mu.Unlock()
	sort.Strings(tables)
	for _, table := range tables {
		s.reloadAndNotify(ctx, table)
	}
}

func (s *Subscriber) handleNotification(table string, payload any) {
	p, ok := payload.(NotificationPayload)
	if !ok || p.Table != table {
		return
	}
	s.reloadAndNotify(s.ctx, table)
}

// reloadAndNotify runs one reload per subscription. Reloads are deliberately
// not coalesced across subscribers of the same table; each callback sees its
// own fresh fetch.
func (s *Subscriber) reloadAndNotify(ctx context.Context, table string) {
	s.mu.Lock()
	tf := s.feeds[table]
	var subs []*subscription
	if tf != nil {
		subs = make([]*subscription, len(tf.subs))
		copy(subs, tf.subs)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		collection, err := s.loader.Reload(ctx, table)
		if err != nil {
			s.log.Warn("collection reload failed", "table", table, "err", err)
			continue
		}
		sub.fn(collection)
	}
}
