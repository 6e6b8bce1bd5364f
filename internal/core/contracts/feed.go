package contracts

import "context"

// ChangeListener delivers raw change notifications from the database until
// ctx is cancelled. The Postgres implementation sits on LISTEN/NOTIFY with a
// dedicated connection; handlers receive the trigger payload verbatim.
type ChangeListener interface {
	Listen(ctx context.Context, channel string, handler func(payload []byte)) error
}
