package dedup

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Redis implements Tracker on Redis sets, so notification state survives a
// process restart and is shared between replicas.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr, Password: password})}
}

func notifiedKey(orderID string) string { return "dispatch:notified:" + orderID }

func (r *Redis) HasBeenNotified(ctx context.Context, orderID, driverID string) (bool, error) {
	return r.client.SIsMember(ctx, notifiedKey(orderID), driverID).Result()
}

func (r *Redis) MarkNotified(ctx context.Context, orderID, driverID string) error {
	return r.client.SAdd(ctx, notifiedKey(orderID), driverID).Err()
}

func (r *Redis) Reset(ctx context.Context, orderID string) error {
	return r.client.Del(ctx, notifiedKey(orderID)).Err()
}

func (r *Redis) Close() error { return r.client.Close() }
