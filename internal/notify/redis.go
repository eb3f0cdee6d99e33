package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clearance-monitor/internal/domain"
)

// RedisBridge mirrors every broadcast envelope onto a Redis pub/sub channel
// so external consumers (or other dashboard instances) can follow the same
// event streams. Publish failures are logged, never propagated: the bridge
// must not stall ingestion.
type RedisBridge struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBridge(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*RedisBridge, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBridge{client: client, logger: logger}, nil
}

func (r *RedisBridge) Close() error {
	return r.client.Close()
}

func (r *RedisBridge) Publish(channel domain.Channel, n domain.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		r.logger.Error("failed to marshal notification for redis",
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		return
	}

	key := fmt.Sprintf("dashboard:%s", channel)
	if err := r.client.Publish(context.Background(), key, payload).Err(); err != nil {
		r.logger.Error("redis publish failed",
			zap.String("channel", key),
			zap.Error(err),
		)
	}
}
