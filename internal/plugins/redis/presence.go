package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore keeps one ZSet per room: member = user id, score = the
// unix timestamp of the last sign of life. Reads self-clean by trimming
// entries older than the staleness window first, so a crashed client
// disappears without any explicit cleanup.
type RedisPresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisPresenceStore takes the staleness window used to trim silent
// members on reads. It must match the TTL the heartbeats refresh with.
func NewRedisPresenceStore(rdb *redis.Client, ttl time.Duration) *RedisPresenceStore {
	return &RedisPresenceStore{
		rdb: rdb,
		ttl: ttl,
	}
}

// staleBefore is the oldest last-seen score still counted as online.
func (p *RedisPresenceStore) staleBefore(now time.Time) int64 {
	return now.Add(-p.ttl).Unix()
}

// UpdateOnlineStatus adds/updates a user in the room's ZSet with the current timestamp.
func (p *RedisPresenceStore) UpdateOnlineStatus(
	ctx context.Context,
	roomID string,
	userID string,
	ttl time.Duration, // "inactivity threshold"
) error {
	key := "presence:" + roomID
	now := time.Now().Unix()

	// Add/Update user with current timestamp
	err := p.rdb.ZAdd(ctx, key, redis.Z{
		Score:  float64(now),
		Member: userID,
	}).Err()
	if err != nil {
		return err
	}

	// Set an expiration on the whole ZSet so it doesn't leak memory
	// if the room becomes inactive.
	return p.rdb.Expire(ctx, key, ttl*2).Err()
}

// RemoveMember drops a user immediately on explicit leave or disconnect.
func (p *RedisPresenceStore) RemoveMember(ctx context.Context, roomID string, userID string) error {
	key := "presence:" + roomID
	return p.rdb.ZRem(ctx, key, userID).Err()
}

// GetOnlineMembers returns users who have checked in within the staleness window.
func (p *RedisPresenceStore) GetOnlineMembers(
	ctx context.Context,
	roomID string,
) ([]string, error) {
	key := "presence:" + roomID

	// Anyone silent longer than the window is gone; trim before reading.
	threshold := p.staleBefore(time.Now())

	// Remove stale members first (Self-cleaning)
	p.rdb.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(threshold, 10))

	// Get all members remaining in the set
	return p.rdb.ZRange(ctx, key, 0, -1).Result()
}

// ClearRoom deletes the entire ZSet for the room.
func (p *RedisPresenceStore) ClearRoom(ctx context.Context, roomID string) error {
	key := "presence:" + roomID
	return p.rdb.Del(ctx, key).Err()
}
