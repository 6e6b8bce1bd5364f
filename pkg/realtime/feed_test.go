package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	mu      sync.Mutex
	reloads int
	data    map[string][]json.RawMessage
	err     error
}

func (l *fakeLoader) Reload(ctx context.Context, table string) ([]json.RawMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reloads++
	if l.err != nil {
		return nil, l.err
	}
	return l.data[table], nil
}

func (l *fakeLoader) set(table string, docs ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.data == nil {
		l.data = make(map[string][]json.RawMessage)
	}
	collection := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		collection[i] = json.RawMessage(d)
	}
	l.data[table] = collection
}

func (l *fakeLoader) reloadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reloads
}

func newTestSubscriber() (*Subscriber, *Bus, *fakeLoader) {
	bus := NewBus(slog.Default())
	loader := &fakeLoader{}
	sub := newSubscriber(context.Background(), Config{Logger: slog.Default(), Loader: loader}, bus)
	return sub, bus, loader
}

func notify(bus *Bus, table string) {
	bus.Emit(EventNotification, NotificationPayload{Table: table, Action: "update"})
}

func TestSubscribeReloadsOnNotification(t *testing.T) {
	sub, bus, loader := newTestSubscriber()
	loader.set("dreams", `{"id":"d1"}`, `{"id":"d2"}`)

	var got [][]json.RawMessage
	sub.Subscribe("dreams", func(collection []json.RawMessage) {
		got = append(got, collection)
	})

	notify(bus, "dreams")
	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	require.JSONEq(t, `{"id":"d1"}`, string(got[0][0]))
}

func TestNotificationForOtherTableIgnored(t *testing.T) {
	sub, bus, loader := newTestSubscriber()
	loader.set("dreams", `{"id":"d1"}`)

	calls := 0
	sub.Subscribe("dreams", func([]json.RawMessage) { calls++ })

	notify(bus, "fragments")
	require.Zero(t, calls)
	require.Zero(t, loader.reloadCount())
}

func TestUnsubscribePrecisionWithDuplicateTables(t *testing.T) {
	sub, bus, loader := newTestSubscriber()
	loader.set("dreams", `{"id":"d1"}`)

	first, second := 0, 0
	unsubFirst := sub.Subscribe("dreams", func([]json.RawMessage) { first++ })
	sub.Subscribe("dreams", func([]json.RawMessage) { second++ })

	unsubFirst()
	notify(bus, "dreams")

	require.Zero(t, first, "unsubscribed handler must not fire")
	require.Equal(t, 1, second, "remaining handler must keep receiving reloads")
}

func TestEachSubscriptionTriggersOwnReload(t *testing.T) {
	sub, bus, loader := newTestSubscriber()
	loader.set("dreams", `{"id":"d1"}`)

	sub.Subscribe("dreams", func([]json.RawMessage) {})
	sub.Subscribe("dreams", func([]json.RawMessage) {})

	notify(bus, "dreams")
	// Reloads are not coalesced across subscribers of the same table.
	require.Equal(t, 2, loader.reloadCount())
}

func TestLastUnsubscriberClosesUnderlyingChannel(t *testing.T) {
	sub, bus, loader := newTestSubscriber()
	loader.set("dreams", `{"id":"d1"}`)

	unsubA := sub.Subscribe("dreams", func([]json.RawMessage) {})
	unsubB := sub.Subscribe("dreams", func([]json.RawMessage) {})
	require.Equal(t, 1, bus.listenerCount(EventNotification), "same-table subscriptions share one channel")

	unsubA()
	require.Equal(t, 1, bus.listenerCount(EventNotification))
	unsubB()
	require.Zero(t, bus.listenerCount(EventNotification))
}

func TestBackToBackNotificationsConvergeOnFreshState(t *testing.T) {
	sub, bus, loader := newTestSubscriber()

	var last []json.RawMessage
	version := 0
	sub.Subscribe("dreams", func(collection []json.RawMessage) { last = collection })

	// Each notification mutates the source before the next reload, the way
	// rapid remote edits would. The final callback must match a fresh fetch.
	for i := 1; i <= 3; i++ {
		version = i
		loader.set("dreams", fmt.Sprintf(`{"id":"d1","version":%d}`, version))
		notify(bus, "dreams")
	}

	fresh, err := loader.Reload(context.Background(), "dreams")
	require.NoError(t, err)
	require.Equal(t, fresh, last)
	require.JSONEq(t, `{"id":"d1","version":3}`, string(last[0]))
}

func TestReloadErrorSkipsCallback(t *testing.T) {
	sub, bus, loader := newTestSubscriber()
	loader.err = fmt.Errorf("store unavailable")

	calls := 0
	sub.Subscribe("dreams", func([]json.RawMessage) { calls++ })

	notify(bus, "dreams")
	require.Zero(t, calls)
}

func TestRefreshAllReloadsEverySubscribedTable(t *testing.T) {
	sub, _, loader := newTestSubscriber()
	loader.set("dreams", `{"id":"d1"}`)
	loader.set("todos", `{"id":"t1"}`)

	dreams, todos := 0, 0
	sub.Subscribe("dreams", func([]json.RawMessage) { dreams++ })
	sub.Subscribe("todos", func([]json.RawMessage) { todos++ })

	sub.RefreshAll(context.Background())
	require.Equal(t, 1, dreams)
	require.Equal(t, 1, todos)
}
