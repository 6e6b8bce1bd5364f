package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/registry"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/app/server/ws"
	"github.com/garthpuckerin/dreamcatcher-sub000/internal/core/services"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/middleware"
	"github.com/garthpuckerin/dreamcatcher-sub000/pkg/realtime"
)

type WSHandler struct {
	hub   *registry.Registry
	rooms *services.RoomService
}

func NewWSHandler(hub *registry.Registry, rooms *services.RoomService) *WSHandler {
	return &WSHandler{
		hub:   hub,
		rooms: rooms,
	}
}

func (s *WSHandler) Handler(w http.ResponseWriter, r *http.Request) {
	log, _ := r.Context().Value(middleware.LoggerKey).(*slog.Logger)
	span := trace.SpanFromContext(r.Context())
	userID, ok := r.Context().Value(middleware.UserIDKey).(string)
	if !ok {
		log.ErrorContext(r.Context(), "ws handler - unauthorised missing user_id")
		http.Error(w, "Unauthorized: User ID missing", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))
	// The session outlives the HTTP request context.
	sessionCtx := context.WithoutCancel(r.Context())
	ctx, cancel := context.WithCancel(sessionCtx)
	var upgrader = websocket.Upgrader{
		ReadBufferSize:  32,
		WriteBufferSize: 32,
		CheckOrigin: func(r *http.Request) bool {
			return true // tighten later
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.ErrorContext(r.Context(), "ws handler - upgrade - ws upgrade failed", "err", err)
		cancel()
		return
	}
	defer conn.Close()
	conn.SetCloseHandler(func(code int, text string) error {
		log.Info("ws handler - ws closed", "user_id", userID)
		cancel()
		return nil
	})
	websocket := ws.NewWebSocket(ctx, conn)

	connID := uuid.NewString()
	client := ws.NewClient(ctx, websocket, connID, userID)
	s.hub.Register(client)
	// Teardown order matters: unregister from the hub before cancelling the
	// client, so broadcasts never target a connection mid-close.
	defer cancel()
	defer s.rooms.HandleDisconnect(sessionCtx, client)
	span.SetAttributes(attribute.String("ws.conn_id", connID))
	log.InfoContext(r.Context(), "ws handler - ws connection established", "conn_id", connID, "user_id", userID)

	// Presence TTL upkeep: client pings refresh immediately, the ticker
	// covers quiet connections.
	websocket.OnPong(func() {
		for _, roomID := range s.hub.Rooms(connID) {
			s.rooms.HandleHeartbeatTick(ctx, client, roomID)
		}
	})
	go s.rooms.HandleHeartbeat(ctx, client)

	// Read loop: every inbound frame is validated then routed to the room
	// service. Malformed frames are dropped without closing the socket.
	websocket.ReadLoop(func(data []byte) {
		event, payload, err := realtime.DecodeClientFrame(data)
		if err != nil {
			log.WarnContext(ctx, "ws handler - malformed frame dropped", "conn_id", connID, "err", err)
			return
		}
		switch event {
		case realtime.EventDreamJoin:
			s.rooms.HandleJoin(ctx, client, payload.(realtime.JoinPayload).RoomID)
		case realtime.EventDreamLeave:
			s.rooms.HandleLeave(ctx, client, payload.(realtime.JoinPayload).RoomID)
		case realtime.EventCursorUpdate:
			s.rooms.HandleCursor(ctx, client, payload.(realtime.CursorUpdatePayload))
		case realtime.EventDocumentChange:
			s.rooms.HandleChange(ctx, client, payload.(realtime.DocumentChangePayload))
		}
	})
}
