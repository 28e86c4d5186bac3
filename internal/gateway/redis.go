package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/senyabanana/procurement-core/internal/models"
)

// RedisNotifier публикует уведомления в Redis Pub/Sub; слушатели
// каналов доставляют их получателям в реальном времени.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier создает клиента Redis и проверяет соединение.
func NewRedisNotifier(addr, password string, db int, channel string) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisNotifier{client: rdb, channel: channel}, nil
}

// Notify публикует уведомление в канал вида "{channel}:{eventType}".
func (n *RedisNotifier) Notify(ctx context.Context, eventType models.EventType, payload models.NotificationPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := fmt.Sprintf("%s:%s", n.channel, eventType)
	return n.client.Publish(ctx, channel, body).Err()
}

// Close закрывает соединение с Redis.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
