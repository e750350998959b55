package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence marks which players are currently connected to a room.
// Keys carry a TTL so a crashed instance cannot leave members behind
// forever. Membership is advisory; the broadcast registry remains the
// in-process source of truth for delivery.
type Presence struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresence(client *redis.Client, ttl time.Duration) *Presence {
	return &Presence{client: client, ttl: ttl}
}

func (p *Presence) Connect(ctx context.Context, room, playerID string) error {
	key := p.key(room)
	pipe := p.client.Pipeline()
	pipe.SAdd(ctx, key, playerID)
	if p.ttl > 0 {
		pipe.Expire(ctx, key, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark presence: %w", err)
	}
	return nil
}

func (p *Presence) Disconnect(ctx context.Context, room, playerID string) error {
	key := p.key(room)
	if err := p.client.SRem(ctx, key, playerID).Err(); err != nil {
		return fmt.Errorf("clear presence: %w", err)
	}
	// Drop the key once the room empties out.
	if n, err := p.client.SCard(ctx, key).Result(); err == nil && n == 0 {
		_ = p.client.Del(ctx, key).Err()
	}
	return nil
}

func (p *Presence) Members(ctx context.Context, room string) ([]string, error) {
	members, err := p.client.SMembers(ctx, p.key(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

func (p *Presence) key(room string) string {
	return "room:" + room + ":presence"
}
