// Package realtime is the client SDK for the dreamcatcher realtime layer:
// one websocket connection to the relay, a local event bus, room presence,
// cursor and document-change broadcasting, and a change-feed subscriber that
// refetches whole collections on mutation notifications.
//
// The package also defines the wire vocabulary shared with the server side.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client → server events.
const (
	EventDreamJoin      = "dream:join"
	EventDreamLeave     = "dream:leave"
	EventCursorUpdate   = "cursor:update"
	EventDocumentChange = "document:change"
)

// Server → client events.
const (
	EventPresenceJoin   = "presence:join"
	EventPresenceLeave  = "presence:leave"
	EventPresenceCursor = "presence:cursor"
	EventDocChange      = "doc:change"
	EventNotification   = "notification"
)

// Local (in-process only) events, never sent on the wire.
const (
	EventConnectionStatus = "connection:status"
	EventConnectionError  = "connection:error"
	EventPresenceUpdated  = "presence:updated"
)

// ErrorKind classifies connection-level failures surfaced on the bus as
// connection:error. Fire-and-forget calls never return these.
type ErrorKind string

const (
	KindAuthRejected       ErrorKind = "auth_rejected"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindProtocolError      ErrorKind = "protocol_error"
	KindReconnectExhausted ErrorKind = "reconnect_exhausted"
)

// ErrMalformedFrame marks an inbound frame that failed envelope decoding or
// payload validation. The connection survives; the frame is dropped.
var ErrMalformedFrame = errors.New("malformed frame")

// Envelope is the wire format for every frame in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// JoinPayload is sent with dream:join and dream:leave.
type JoinPayload struct {
	RoomID string `json:"roomId"`
}

// CursorUpdatePayload is sent with cursor:update. Position is opaque to the
// relay; only the UI on the far side interprets it.
type CursorUpdatePayload struct {
	RoomID   string          `json:"roomId"`
	Position json.RawMessage `json:"position"`
}

// DocumentChangePayload is sent with document:change. Change is forwarded
// verbatim; no merge or transform happens anywhere in this layer.
type DocumentChangePayload struct {
	RoomID string          `json:"roomId"`
	Change json.RawMessage `json:"change"`
}

// PresenceJoinPayload arrives when a user enters a room.
type PresenceJoinPayload struct {
	RoomID     string `json:"roomId"`
	UserID     string `json:"userId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
}

// PresenceLeavePayload arrives when a user exits a room.
type PresenceLeavePayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// PresenceCursorPayload relays another member's cursor position.
type PresenceCursorPayload struct {
	RoomID   string          `json:"roomId"`
	UserID   string          `json:"userId"`
	Position json.RawMessage `json:"position"`
}

// DocChangePayload relays another member's document change.
type DocChangePayload struct {
	RoomID string          `json:"roomId"`
	UserID string          `json:"userId"`
	Change json.RawMessage `json:"change"`
}

// NotificationPayload signals that an entity table was mutated. The payload
// is forwarded verbatim in Raw; only Table is interpreted here, as the
// routing key for change-feed subscriptions.
type NotificationPayload struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	ID     string `json:"id"`

	Raw json.RawMessage `json:"-"`
}

// StatusPayload is published locally as connection:status.
type StatusPayload struct {
	Connected bool `json:"connected"`
}

// ErrorPayload is published locally as connection:error.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message,omitempty"`
}

// Member is one entry of a room's presence list.
type Member struct {
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar string    `json:"userAvatar"`
	LastSeen   time.Time `json:"lastSeen"`
}

// PresenceUpdatedPayload is published locally as presence:updated whenever a
// room's member list changes for any reason (join, leave, staleness).
type PresenceUpdatedPayload struct {
	RoomID string   `json:"roomId"`
	Users  []Member `json:"users"`
}

// EncodeFrame wraps a payload in the wire envelope.
func EncodeFrame(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

// DecodeServerFrame validates a frame received from the relay and returns its
// typed payload. Unknown events and missing required fields are rejected here
// so downstream handlers never see half-formed payloads.
func DecodeServerFrame(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	switch env.Event {
	case EventPresenceJoin:
		var p PresenceJoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.UserID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	case EventPresenceLeave:
		var p PresenceLeavePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.UserID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	case EventPresenceCursor:
		var p PresenceCursorPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.UserID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	case EventDocChange:
		var p DocChangePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" || p.UserID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	case EventNotification:
		var p NotificationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Table == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		p.Raw = env.Payload
		return env.Event, p, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown event %q", ErrMalformedFrame, env.Event)
	}
}

// DecodeClientFrame validates a frame received from a client. Used by the
// relay's frame router.
func DecodeClientFrame(data []byte) (string, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch env.Event {
	case EventDreamJoin, EventDreamLeave:
		var p JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	case EventCursorUpdate:
		var p CursorUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	case EventDocumentChange:
		var p DocumentChangePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.RoomID == "" {
			return "", nil, fmt.Errorf("%w: bad %s payload", ErrMalformedFrame, env.Event)
		}
		return env.Event, p, nil
	default:
		return "", nil, fmt.Errorf("%w: unknown event %q", ErrMalformedFrame, env.Event)
	}
}
