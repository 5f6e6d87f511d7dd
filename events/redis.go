package events

import (
	"context"
	"encoding/json"
	"log"

	"civicwatch-be/lifecycle"

	"github.com/redis/go-redis/v9"
)

const recentEventsLimit = 100

// RedisPublisher fans lifecycle events out on a Redis channel and keeps a
// capped list of the most recent ones.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) recentKey() string {
	return p.channel + ":recent"
}

// HandleEvent is a Handler. Failures are logged only.
func (p *RedisPublisher) HandleEvent(ctx context.Context, ev lifecycle.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[EVENTS] encode %s %s: %v", ev.Kind, ev.ID, err)
		return
	}

	pipe := p.client.TxPipeline()
	pipe.Publish(ctx, p.channel, payload)
	pipe.LPush(ctx, p.recentKey(), payload)
	pipe.LTrim(ctx, p.recentKey(), 0, recentEventsLimit-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[EVENTS] publish %s %s to %s: %v", ev.Kind, ev.ID, p.channel, err)
	}
}

// Recent returns up to limit events, newest first.
func (p *RedisPublisher) Recent(ctx context.Context, limit int) ([]lifecycle.Event, error) {
	if limit <= 0 || limit > recentEventsLimit {
		limit = recentEventsLimit
	}
	raw, err := p.client.LRange(ctx, p.recentKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]lifecycle.Event, 0, len(raw))
	for _, item := range raw {
		var ev lifecycle.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			log.Printf("[EVENTS] skip undecodable recent event: %v", err)
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}
