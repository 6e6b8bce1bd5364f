package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
)

// ChangeListener holds a dedicated connection in LISTEN mode and hands every
// NOTIFY payload to the worker. The pool above (database/sql) cannot serve
// this; LISTEN binds to a single session, so we dial with pgx directly.
type ChangeListener struct {
	log *slog.Logger
	dsn string
}

func NewChangeListener(log *slog.Logger, dsn string) *ChangeListener {
	return &ChangeListener{log: log, dsn: dsn}
}

/*
	-- Trigger wiring, one per synced table:
	CREATE OR REPLACE FUNCTION notify_change() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('dreamcatcher_changes', json_build_object(
			'table', TG_TABLE_NAME,
			'action', lower(TG_OP),
			'id', COALESCE(NEW.id, OLD.id)
		)::text);
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql;
*/

// Listen blocks until ctx is cancelled. A dropped connection is redialled
// with a short backoff; notifications emitted while disconnected are lost,
// which is fine because clients reload whole collections on every signal.
func (l *ChangeListener) Listen(ctx context.Context, channel string, handler func(payload []byte)) error {
	for {
		if err := l.listenOnce(ctx, channel, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.ErrorContext(ctx, "change listener - connection lost, redialling", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (l *ChangeListener) listenOnce(ctx context.Context, channel string, handler func(payload []byte)) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return err
	}
	l.log.InfoContext(ctx, "change listener - listening", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		handler([]byte(notification.Payload))
	}
}
