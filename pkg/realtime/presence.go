package realtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Sender is the outbound half of the transport, satisfied by *Client.
type Sender interface {
	Send(event string, payload any)
}

// PresenceEntry tracks one (room, user) pair, keyed roomID + ":" + userID.
// Entries exist exactly while the user has an unexpired join for the room.
type PresenceEntry struct {
	RoomID     string
	UserID     string
	UserName   string
	UserAvatar string
	LastSeen   time.Time
}

// Tracker maintains room membership as seen from this client: the
// desired-membership set (rooms this client joined, replayed on reconnect)
// and the live presence entries learned from server notifications.
type Tracker struct {
	sender Sender
	bus    *Bus
	log    *slog.Logger
	ttl    time.Duration
	now    func() time.Time

	mu      sync.Mutex
	desired map[string]struct{}
	entries map[string]*PresenceEntry
	unsubs  []func()
}

func newTracker(cfg Config, bus *Bus, sender Sender) *Tracker {
	t := &Tracker{
		sender:  sender,
		bus:     bus,
		log:     cfg.Logger,
		ttl:     cfg.PresenceTTL,
		now:     time.Now,
		desired: make(map[string]struct{}),
		entries: make(map[string]*PresenceEntry),
	}
	t.unsubs = append(t.unsubs,
		bus.On(EventPresenceJoin, t.handleJoin),
		bus.On(EventPresenceLeave, t.handleLeave),
		bus.On(EventPresenceCursor, t.handleActivity),
		bus.On(EventDocChange, t.handleActivity),
	)
	return t
}

// JoinRoom records the room in desired membership and sends the join
// command. Fire-and-forget: no acknowledgment is awaited.
func (t *Tracker) JoinRoom(roomID string) {
	t.mu.Lock()
	t.desired[roomID] = struct{}{}
	t.mu.Unlock()
	t.sender.Send(EventDreamJoin, JoinPayload{RoomID: roomID})
}

// LeaveRoom removes the room from desired membership, drops its local
// presence entries, and sends the leave command.
func (t *Tracker) LeaveRoom(roomID string) {
	t.mu.Lock()
	delete(t.desired, roomID)
	for key, e := range t.entries {
		if e.RoomID == roomID {
			delete(t.entries, key)
		}
	}
	t.mu.Unlock()
	t.sender.Send(EventDreamLeave, JoinPayload{RoomID: roomID})
	t.bus.Emit(EventPresenceUpdated, PresenceUpdatedPayload{RoomID: roomID, Users: nil})
}

// GetPresence returns the current member list for a room. Pure read.
func (t *Tracker) GetPresence(roomID string) []Member {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.membersLocked(roomID)
}

// DesiredRooms returns a copy of the rooms this client wants to be in.
func (t *Tracker) DesiredRooms() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	rooms := make([]string, 0, len(t.desired))
	for r := range t.desired {
		rooms = append(rooms, r)
	}
	sort.Strings(rooms)
	return rooms
}

// Replay resends a join command for every desired room. Called by the
// reconnection manager after a successful reconnect so the client never
// silently loses a room it explicitly joined.
func (t *Tracker) Replay() {
	for _, roomID := range t.DesiredRooms() {
		t.sender.Send(EventDreamJoin, JoinPayload{RoomID: roomID})
	}
}

// Reset clears desired membership and presence state. Called on explicit
// disconnect; an unexpected drop keeps both for replay.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.desired = make(map[string]struct{})
	t.entries = make(map[string]*PresenceEntry)
	t.mu.Unlock()
}

func (t *Tracker) close() {
	for _, unsub := range t.unsubs {
		unsub()
	}
}

func (t *Tracker) handleJoin(payload any) {
	p, ok := payload.(PresenceJoinPayload)
	if !ok {
		return
	}
	key := p.RoomID + ":" + p.UserID
	t.mu.Lock()
	t.entries[key] = &PresenceEntry{
		RoomID:     p.RoomID,
		UserID:     p.UserID,
		UserName:   p.UserName,
		UserAvatar: p.UserAvatar,
		LastSeen:   t.now(),
	}
	users := t.membersLocked(p.RoomID)
	t.mu.Unlock()
	t.bus.Emit(EventPresenceUpdated, PresenceUpdatedPayload{RoomID: p.RoomID, Users: users})
}

func (t *Tracker) handleLeave(payload any) {
	p, ok := payload.(PresenceLeavePayload)
	if !ok {
		return
	}
	t.mu.Lock()
	delete(t.entries, p.RoomID+":"+p.UserID)
	users := t.membersLocked(p.RoomID)
	t.mu.Unlock()
	t.bus.Emit(EventPresenceUpdated, PresenceUpdatedPayload{RoomID: p.RoomID, Users: users})
}

// handleActivity refreshes last-seen on any room activity from a user, so a
// member who streams cursor or document events is never evicted as stale.
func (t *Tracker) handleActivity(payload any) {
	var roomID, userID string
	switch p := payload.(type) {
	case PresenceCursorPayload:
		roomID, userID = p.RoomID, p.UserID
	case DocChangePayload:
		roomID, userID = p.RoomID, p.UserID
	default:
		return
	}
	t.mu.Lock()
	if e, ok := t.entries[roomID+":"+userID]; ok {
		e.LastSeen = t.now()
	}
	t.mu.Unlock()
}

// runSweeper evicts stale entries until ctx is cancelled. Eviction guards
// against silently dropped leave notifications, e.g. a crashed tab.
func (t *Tracker) runSweeper(ctx context.Context) {
	if t.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(t.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.evictStale(t.now())
		}
	}
}

func (t *Tracker) evictStale(now time.Time) {
	t.mu.Lock()
	stale := make(map[string]struct{})
	for key, e := range t.entries {
		if now.Sub(e.LastSeen) > t.ttl {
			t.log.Debug("presence entry expired", "room_id", e.RoomID, "user_id", e.UserID)
			delete(t.entries, key)
			stale[e.RoomID] = struct{}{}
		}
	}
	updates := make([]PresenceUpdatedPayload, 0, len(stale))
	for roomID := range stale {
		updates = append(updates, PresenceUpdatedPayload{RoomID: roomID, Users: t.membersLocked(roomID)})
	}
	t.mu.Unlock()
	for _, u := range updates {
		t.bus.Emit(EventPresenceUpdated, u)
	}
}

func (t *Tracker) membersLocked(roomID string) []Member {
	var users []Member
	for _, e := range t.entries {
		if e.RoomID == roomID {
			users = append(users, Member{
				UserID:     e.UserID,
				UserName:   e.UserName,
				UserAvatar: e.UserAvatar,
				LastSeen:   e.LastSeen,
			})
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}
