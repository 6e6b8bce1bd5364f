package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/contracts"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/realtime"
)

type stubListener struct {
	payloads [][]byte
}

func (l *stubListener) Listen(ctx context.Context, channel string, handler func(payload []byte)) error {
	for _, p := range l.payloads {
		handler(p)
	}
	return ctx.Err()
}

type broadcastHub struct {
	frames [][]byte
}

func (h *broadcastHub) Register(c contracts.Client)            {}
func (h *broadcastHub) Unregister(c contracts.Client) []string { return nil }
func (h *broadcastHub) Join(roomID string, c contracts.Client) {}
func (h *broadcastHub) Leave(roomID string, c contracts.Client) {
}
func (h *broadcastHub) Rooms(connID string) []string             { return nil }
func (h *broadcastHub) Members(roomID string) []contracts.Client { return nil }
func (h *broadcastHub) BroadcastRoom(ctx context.Context, roomID string, exceptConnID string, data []byte) {
}
func (h *broadcastHub) BroadcastAll(ctx context.Context, data []byte) {
	h.frames = append(h.frames, data)
}

func TestFeedWorkerBroadcastsKnownTableChanges(t *testing.T) {
	listener := &stubListener{payloads: [][]byte{
		[]byte(`{"table":"dreams","action":"update","id":"d1"}`),
		[]byte(`{"table":"todos","action":"insert","id":"t1"}`),
	}}
	hub := &broadcastHub{}
	w := NewFeedWorker(slog.Default(), listener, hub, "dreamcatcher_changes")

	_ = w.Run(context.Background())

	require.Len(t, hub.frames, 2)
	var env realtime.Envelope
	require.NoError(t, json.Unmarshal(hub.frames[0], &env))
	assert.Equal(t, realtime.EventNotification, env.Event)

	event, payload, err := realtime.DecodeServerFrame(hub.frames[1])
	require.NoError(t, err)
	assert.Equal(t, realtime.EventNotification, event)
	assert.Equal(t, "todos", payload.(realtime.NotificationPayload).Table)
}

func TestFeedWorkerDropsUnknownAndMalformed(t *testing.T) {
	listener := &stubListener{payloads: [][]byte{
		[]byte(`{"table":"secrets","action":"update","id":"s1"}`),
		[]byte(`not json`),
	}}
	hub := &broadcastHub{}
	w := NewFeedWorker(slog.Default(), listener, hub, "dreamcatcher_changes")

	_ = w.Run(context.Background())
	assert.Empty(t, hub.frames)
}
