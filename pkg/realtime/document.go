package realtime

import (
	"context"
	"encoding/json"
)

// ChangeApplier is where merge semantics live, if an application wants any.
// The relay and this SDK forward changes verbatim with per-sender-per-room
// ordering; reconciling concurrent edits (CRDT, OT, last-write-wins) is the
// applier's decision.
type ChangeApplier interface {
	Apply(ctx context.Context, change DocChangePayload) error
}

// DocumentBroadcaster sends content-mutation events for a room and forwards
// inbound doc:change frames to an optional ChangeApplier. No merge, no
// transform, no conflict detection.
type DocumentBroadcaster struct {
	sender  Sender
	applier ChangeApplier
	unsub   func()
}

func newDocumentBroadcaster(cfg Config, bus *Bus, sender Sender) *DocumentBroadcaster {
	d := &DocumentBroadcaster{sender: sender, applier: cfg.Applier}
	if d.applier != nil {
		log := cfg.Logger
		d.unsub = bus.On(EventDocChange, func(payload any) {
			p, ok := payload.(DocChangePayload)
			if !ok {
				return
			}
			if err := d.applier.Apply(context.Background(), p); err != nil {
				log.Warn("change applier failed", "room_id", p.RoomID, "user_id", p.UserID, "err", err)
			}
		})
	}
	return d
}

// BroadcastChange is a best-effort send of an opaque change payload.
func (d *DocumentBroadcaster) BroadcastChange(roomID string, change json.RawMessage) {
	d.sender.Send(EventDocumentChange, DocumentChangePayload{RoomID: roomID, Change: change})
}

func (d *DocumentBroadcaster) close() {
	if d.unsub != nil {
		d.unsub()
	}
}
