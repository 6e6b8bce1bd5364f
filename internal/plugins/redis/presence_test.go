package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStaleBeforeTracksConfiguredTTL(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	short := NewRedisPresenceStore(nil, 10*time.Second)
	long := NewRedisPresenceStore(nil, 2*time.Minute)

	assert.Equal(t, now.Add(-10*time.Second).Unix(), short.staleBefore(now))
	assert.Equal(t, now.Add(-2*time.Minute).Unix(), long.staleBefore(now))
	assert.Less(t, long.staleBefore(now), short.staleBefore(now),
		"a longer TTL must tolerate older last-seen scores")
}
