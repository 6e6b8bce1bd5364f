package contracts

import (
	"context"
	"time"
)

// For each room, use ZSET to store presence info
type PresenceStore interface {
	// UpdateOnlineStatus refreshes the TTL-based last-seen for a member
	UpdateOnlineStatus(ctx context.Context, roomID string, userID string, ttl time.Duration) error
	// RemoveMember drops a member immediately (explicit leave)
	RemoveMember(ctx context.Context, roomID string, userID string) error
	// GetOnlineMembers returns user ids currently active in a room
	GetOnlineMembers(ctx context.Context, roomID string) ([]string, error)
	// Manual clean up
	ClearRoom(ctx context.Context, roomID string) error
}
