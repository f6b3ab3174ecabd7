// Package events is the outbound edge of the core: like and match records
// published for the notification workers. Delivery is at-least-once and
// fire-and-forget — a failed publish is logged by the caller and never
// rolls back the committed like/match/rating writes.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Topics consumed by the notification workers.
const (
	TopicLikes   = "likes"
	TopicMatches = "matches"
)

// LikeEvent is emitted for every recorded like.
type LikeEvent struct {
	LikerID   uint64    `msgpack:"liker_id"`
	LikedID   uint64    `msgpack:"liked_id"`
	CreatedAt time.Time `msgpack:"created_at"`
}

// MatchEvent is emitted exactly once per new match, with both usernames at
// match time so consumers need no profile lookup.
type MatchEvent struct {
	User1ID       uint64    `msgpack:"user1_id"`
	User2ID       uint64    `msgpack:"user2_id"`
	User1Username string    `msgpack:"user1_username"`
	User2Username string    `msgpack:"user2_username"`
	MatchedAt     time.Time `msgpack:"matched_at"`
}

// Publisher pushes a binary-encoded record onto a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// RedisPublisher writes msgpack-encoded records to Redis streams, one
// stream per topic. Every publish is bounded by its own timeout so a slow
// broker can never block the write path.
type RedisPublisher struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisPublisher(client *redis.Client, timeout time.Duration) *RedisPublisher {
	return &RedisPublisher{client: client, timeout: timeout}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload any) error {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{"payload": body},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
