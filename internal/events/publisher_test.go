package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zhanbolat/datecore/internal/events"
)

func setupPublisher(t *testing.T) (*events.RedisPublisher, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return events.NewRedisPublisher(client, 5*time.Second), client
}

func TestPublishMatchEvent(t *testing.T) {
	ctx := context.Background()
	pub, client := setupPublisher(t)

	matchedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := pub.Publish(ctx, events.TopicMatches, events.MatchEvent{
		User1ID:       1,
		User2ID:       2,
		User1Username: "aida",
		User2Username: "bek",
		MatchedAt:     matchedAt,
	})
	require.NoError(t, err)

	msgs, err := client.XRange(ctx, events.TopicMatches, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	var ev events.MatchEvent
	require.NoError(t, msgpack.Unmarshal([]byte(msgs[0].Values["payload"].(string)), &ev))
	assert.Equal(t, uint64(1), ev.User1ID)
	assert.Equal(t, uint64(2), ev.User2ID)
	assert.Equal(t, "aida", ev.User1Username)
	assert.Equal(t, "bek", ev.User2Username)
	assert.True(t, ev.MatchedAt.Equal(matchedAt))
}

func TestPublishLikeEvent(t *testing.T) {
	ctx := context.Background()
	pub, client := setupPublisher(t)

	err := pub.Publish(ctx, events.TopicLikes, events.LikeEvent{
		LikerID:   7,
		LikedID:   9,
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	n, err := client.XLen(ctx, events.TopicLikes).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestPublishUnreachableBroker(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	pub := events.NewRedisPublisher(client, 500*time.Millisecond)
	mr.Close()

	err = pub.Publish(context.Background(), events.TopicLikes, events.LikeEvent{LikerID: 1, LikedID: 2})
	assert.Error(t, err)
}
