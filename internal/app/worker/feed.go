package worker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/contracts"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/domain"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/realtime"
)

// FeedWorker bridges the database change feed to connected clients. Every
// NOTIFY payload on the feed channel becomes a notification frame broadcast
// to all connections; clients decide per table whether they care.
type FeedWorker struct {
	log      *slog.Logger
	listener contracts.ChangeListener
	hub      contracts.Registry
	channel  string
}

func NewFeedWorker(
	log *slog.Logger,
	listener contracts.ChangeListener,
	hub contracts.Registry,
	channel string,
) *FeedWorker {
	return &FeedWorker{
		log:      log,
		listener: listener,
		hub:      hub,
		channel:  channel,
	}
}

// Run blocks until ctx is cancelled.
func (w *FeedWorker) Run(ctx context.Context) error {
	return w.listener.Listen(ctx, w.channel, func(payload []byte) {
		w.process(ctx, payload)
	})
}

func (w *FeedWorker) process(ctx context.Context, payload []byte) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.log.Error("feed worker - malformed change payload dropped", "err", err)
		return
	}
	if !domain.KnownTable(event.Table) {
		w.log.Warn("feed worker - change for unknown table dropped", "table", event.Table)
		return
	}
	frame, err := realtime.EncodeFrame(realtime.EventNotification, event)
	if err != nil {
		w.log.ErrorContext(ctx, "feed worker - encode failed", "err", err)
		return
	}
	w.hub.BroadcastAll(ctx, frame)
	w.log.InfoContext(ctx, "feed worker - change broadcast", "table", event.Table, "action", event.Action)
}
