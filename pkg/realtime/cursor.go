package realtime

import "encoding/json"

// CursorBroadcaster sends ephemeral, high-frequency cursor positions for a
// room. Explicitly lossy: a dropped update self-heals on the next one, so
// there is no retry and no buffering. Inbound presence:cursor frames reach
// consumers straight from the bus in arrival order; last write wins at the
// rendering layer, not here.
type CursorBroadcaster struct {
	sender Sender
}

func newCursorBroadcaster(sender Sender) *CursorBroadcaster {
	return &CursorBroadcaster{sender: sender}
}

// UpdateCursor is a best-effort send, silently dropped while disconnected.
func (c *CursorBroadcaster) UpdateCursor(roomID string, position json.RawMessage) {
	c.sender.Send(EventCursorUpdate, CursorUpdatePayload{RoomID: roomID, Position: position})
}
