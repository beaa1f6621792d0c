package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisObserver bridges the hub onto Redis pub/sub so live-log consumers
// outside the process can subscribe per execution.
type RedisObserver struct {
	id     string
	client *redis.Client
	prefix string
}

// NewRedisObserver creates an observer publishing to
// "<prefix>:<execution_id>:log" channels.
func NewRedisObserver(id string, client *redis.Client, prefix string) *RedisObserver {
	if prefix == "" {
		prefix = "nodeflow:executions"
	}

	return &RedisObserver{id: id, client: client, prefix: prefix}
}

func (o *RedisObserver) ID() string {
	return o.id
}

func (o *RedisObserver) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	channel := fmt.Sprintf("%s:%s:log", o.prefix, msg.ExecutionID)

	if err := o.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish log line: %w", err)
	}

	return nil
}
