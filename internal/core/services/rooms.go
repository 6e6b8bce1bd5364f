package services

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/contracts"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/logging"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/realtime"
)

var tracer = otel.Tracer("room-service")

// RoomService owns the room lifecycle on the relay side: membership in the
// local hub, last-seen state in the presence store, and fan-out of presence
// and activity frames to room members.
type RoomService struct {
	log      *slog.Logger
	hub      contracts.Registry
	presence contracts.PresenceStore
	users    *UserService

	ttl       time.Duration
	heartbeat time.Duration
}

func NewRoomService(
	log *slog.Logger,
	hub contracts.Registry,
	presence contracts.PresenceStore,
	users *UserService,
	ttl, heartbeat time.Duration,
) *RoomService {
	return &RoomService{
		log:       log,
		hub:       hub,
		presence:  presence,
		users:     users,
		ttl:       ttl,
		heartbeat: heartbeat,
	}
}

// HandleJoin registers the connection in the room, announces it to everyone
// including the joiner, and replays the current roster to the joiner so its
// local presence map converges without a separate snapshot call.
func (s *RoomService) HandleJoin(ctx context.Context, c contracts.Client, roomID string) {
	ctx, span := tracer.Start(ctx, "RoomService.HandleJoin", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("user.id", c.UserID()),
	))
	defer span.End()

	s.hub.Join(roomID, c)
	if err := s.presence.UpdateOnlineStatus(ctx, roomID, c.UserID(), s.ttl); err != nil {
		s.log.ErrorContext(ctx, "rooms - handle join - presence update failed",
			logging.Room(roomID), logging.User(c.UserID()), logging.Err(err))
	}

	joiner := s.users.Profile(ctx, c.UserID())
	frame, err := realtime.EncodeFrame(realtime.EventPresenceJoin, realtime.PresenceJoinPayload{
		RoomID:     roomID,
		UserID:     joiner.ID,
		UserName:   joiner.Name,
		UserAvatar: joiner.Avatar,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "rooms - handle join - encode failed", logging.Err(err))
		return
	}
	// The joiner hears its own join; the client treats it as confirmation.
	s.hub.BroadcastRoom(ctx, roomID, "", frame)

	for _, member := range s.hub.Members(roomID) {
		if member.ConnID() == c.ConnID() {
			continue
		}
		profile := s.users.Profile(ctx, member.UserID())
		existing, err := realtime.EncodeFrame(realtime.EventPresenceJoin, realtime.PresenceJoinPayload{
			RoomID:     roomID,
			UserID:     profile.ID,
			UserName:   profile.Name,
			UserAvatar: profile.Avatar,
		})
		if err != nil {
			continue
		}
		if err := c.Send(ctx, existing); err != nil {
			s.log.WarnContext(ctx, "rooms - handle join - roster replay failed",
				logging.Room(roomID), logging.Connection(c.ConnID()), logging.Err(err))
			return
		}
	}

	s.log.InfoContext(ctx, "rooms - member joined",
		logging.Room(roomID), logging.User(c.UserID()), logging.Connection(c.ConnID()))
}

// HandleLeave removes the connection from the room and announces the leave to
// the remaining members.
func (s *RoomService) HandleLeave(ctx context.Context, c contracts.Client, roomID string) {
	ctx, span := tracer.Start(ctx, "RoomService.HandleLeave", trace.WithAttributes(
		attribute.String("room.id", roomID),
		attribute.String("user.id", c.UserID()),
	))
	defer span.End()

	s.hub.Leave(roomID, c)
	s.announceLeave(ctx, roomID, c.UserID())

	s.log.InfoContext(ctx, "rooms - member left",
		logging.Room(roomID), logging.User(c.UserID()), logging.Connection(c.ConnID()))
}

// HandleCursor relays a cursor position to everyone else in the room. The
// frame doubles as an activity signal, so the sender's presence TTL is
// refreshed on the way through.
func (s *RoomService) HandleCursor(ctx context.Context, c contracts.Client, p realtime.CursorUpdatePayload) {
	if !s.inRoom(c, p.RoomID) {
		s.log.DebugContext(ctx, "rooms - cursor for unjoined room dropped",
			logging.Room(p.RoomID), logging.Connection(c.ConnID()))
		return
	}
	if err := s.presence.UpdateOnlineStatus(ctx, p.RoomID, c.UserID(), s.ttl); err != nil {
		s.log.WarnContext(ctx, "rooms - cursor - presence refresh failed",
			logging.Room(p.RoomID), logging.Err(err))
	}

	frame, err := realtime.EncodeFrame(realtime.EventPresenceCursor, realtime.PresenceCursorPayload{
		RoomID:   p.RoomID,
		UserID:   c.UserID(),
		Position: p.Position,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "rooms - cursor - encode failed", logging.Err(err))
		return
	}
	s.hub.BroadcastRoom(ctx, p.RoomID, c.ConnID(), frame)
}

// HandleChange relays a document edit to everyone else in the room.
func (s *RoomService) HandleChange(ctx context.Context, c contracts.Client, p realtime.DocumentChangePayload) {
	if !s.inRoom(c, p.RoomID) {
		s.log.DebugContext(ctx, "rooms - change for unjoined room dropped",
			logging.Room(p.RoomID), logging.Connection(c.ConnID()))
		return
	}
	if err := s.presence.UpdateOnlineStatus(ctx, p.RoomID, c.UserID(), s.ttl); err != nil {
		s.log.WarnContext(ctx, "rooms - change - presence refresh failed",
			logging.Room(p.RoomID), logging.Err(err))
	}

	frame, err := realtime.EncodeFrame(realtime.EventDocChange, realtime.DocChangePayload{
		RoomID: p.RoomID,
		UserID: c.UserID(),
		Change: p.Change,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "rooms - change - encode failed", logging.Err(err))
		return
	}
	s.hub.BroadcastRoom(ctx, p.RoomID, c.ConnID(), frame)
}

// HandleHeartbeat keeps the presence TTL alive for every room the connection
// is joined to. Runs until ctx is cancelled; the websocket handler ties ctx to
// the connection lifetime.
func (s *RoomService) HandleHeartbeat(ctx context.Context, c contracts.Client) {
	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, roomID := range s.hub.Rooms(c.ConnID()) {
				if err := s.presence.UpdateOnlineStatus(ctx, roomID, c.UserID(), s.ttl); err != nil {
					s.log.WarnContext(ctx, "rooms - heartbeat - presence refresh failed",
						logging.Room(roomID), logging.User(c.UserID()), logging.Err(err))
				}
			}
		}
	}
}

// HandleHeartbeatTick refreshes one room's TTL immediately, outside the
// ticker cadence. Used when a client ping arrives.
func (s *RoomService) HandleHeartbeatTick(ctx context.Context, c contracts.Client, roomID string) {
	if err := s.presence.UpdateOnlineStatus(ctx, roomID, c.UserID(), s.ttl); err != nil {
		s.log.WarnContext(ctx, "rooms - heartbeat tick - presence refresh failed",
			logging.Room(roomID), logging.User(c.UserID()), logging.Err(err))
	}
}

// HandleDisconnect tears down every room the connection was still joined to.
// Mirrors an explicit leave per room so remaining members see the departure.
func (s *RoomService) HandleDisconnect(ctx context.Context, c contracts.Client) {
	ctx, span := tracer.Start(ctx, "RoomService.HandleDisconnect", trace.WithAttributes(
		attribute.String("user.id", c.UserID()),
	))
	defer span.End()

	rooms := s.hub.Unregister(c)
	for _, roomID := range rooms {
		s.announceLeave(ctx, roomID, c.UserID())
	}

	s.log.InfoContext(ctx, "rooms - connection closed",
		logging.User(c.UserID()), logging.Connection(c.ConnID()),
		slog.Int("rooms", len(rooms)))
}

func (s *RoomService) announceLeave(ctx context.Context, roomID, userID string) {
	if err := s.presence.RemoveMember(ctx, roomID, userID); err != nil {
		s.log.ErrorContext(ctx, "rooms - presence remove failed",
			logging.Room(roomID), logging.User(userID), logging.Err(err))
	}

	frame, err := realtime.EncodeFrame(realtime.EventPresenceLeave, realtime.PresenceLeavePayload{
		RoomID: roomID,
		UserID: userID,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "rooms - leave - encode failed", logging.Err(err))
		return
	}
	s.hub.BroadcastRoom(ctx, roomID, "", frame)

	members, err := s.presence.GetOnlineMembers(ctx, roomID)
	if err == nil && len(members) == 0 {
		if err := s.presence.ClearRoom(ctx, roomID); err != nil {
			s.log.WarnContext(ctx, "rooms - clear empty room failed",
				logging.Room(roomID), logging.Err(err))
		}
	}
}

func (s *RoomService) inRoom(c contracts.Client, roomID string) bool {
	for _, id := range s.hub.Rooms(c.ConnID()) {
		if id == roomID {
			return true
		}
	}
	return false
}
