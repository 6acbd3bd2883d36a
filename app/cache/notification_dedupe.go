package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const notificationKeyPrefix = "payments:webhook:seen:"

// NotificationDeduper remembers webhook deliveries so gateway retries of an
// already handled notification can be dropped early.
type NotificationDeduper struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewNotificationDeduper(client *goredis.Client, ttl time.Duration) *NotificationDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &NotificationDeduper{client: client, ttl: ttl}
}

// MarkSeen reports true for the first delivery of key within the TTL.
func (d *NotificationDeduper) MarkSeen(ctx context.Context, key string) (bool, error) {
	if d.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("notification key is required")
	}

	first, err := d.client.SetNX(ctx, notificationKeyPrefix+key, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mark notification seen: %w", err)
	}
	return first, nil
}

// Forget drops key so a later retry of a failed delivery is processed again.
func (d *NotificationDeduper) Forget(ctx context.Context, key string) error {
	if d.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := d.client.Del(ctx, notificationKeyPrefix+strings.TrimSpace(key)).Err(); err != nil {
		return fmt.Errorf("forget notification: %w", err)
	}
	return nil
}
