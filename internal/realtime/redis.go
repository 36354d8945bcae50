package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/logger"
)

// Channel is the pub/sub channel change events travel on.
const Channel = "realtime:changes"

// NewRedis creates a Redis client. It does not dial; callers Ping.
func NewRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	logger.Info("redis client created", "addr", addr)
	return rdb
}

// RedisBroker shares change events between API instances.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb}
}

func (b *RedisBroker) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, Channel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan ChangeEvent, func()) {
	ps := b.rdb.Subscribe(ctx, Channel)
	out := make(chan ChangeEvent, 256)

	var once sync.Once
	cancel := func() {
		once.Do(func() { _ = ps.Close() })
	}

	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			var ev ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("realtime: bad payload on redis", "err", err)
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				cancel()
				return
			}
		}
	}()
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return out, cancel
}
