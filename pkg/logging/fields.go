// Package logging holds the shared slog attribute vocabulary so every
// component names the same identifier the same way.
package logging

import "log/slog"

// Domain identifiers

func Room(id string) slog.Attr {
	return slog.String("room_id", id)
}

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Connection(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func Table(name string) slog.Attr {
	return slog.String("table", name)
}

func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Request / tracing

func TraceID(id string) slog.Attr {
	return slog.String("trace_id", id)
}

func Err(err error) slog.Attr {
	return slog.Any("err", err)
}
