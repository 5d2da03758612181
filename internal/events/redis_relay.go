package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/lucemdev/fundtrace/internal/platform/logger"
	"github.com/lucemdev/fundtrace/internal/store"
)

// Relay fans change events out between processes so a dispatcher can run
// apart from the process observing the store.
type Relay interface {
	Publish(ctx context.Context, change store.Change) error
	StartForwarder(ctx context.Context, onChange func(change store.Change)) error
	Close() error
}

type redisRelay struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

// NewRedisRelay connects to Redis and relays change events over pub/sub.
func NewRedisRelay(log *logger.Logger, addr, channel string) (Relay, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if strings.TrimSpace(channel) == "" {
		channel = "changes"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisRelay{
		log:     log.With("component", "RedisRelay"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (r *redisRelay) Publish(ctx context.Context, change store.Change) error {
	if r == nil || r.rdb == nil {
		return fmt.Errorf("redis relay not initialized")
	}
	raw, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, raw).Err()
}

func (r *redisRelay) StartForwarder(ctx context.Context, onChange func(change store.Change)) error {
	if r == nil || r.rdb == nil {
		return fmt.Errorf("redis relay not initialized")
	}
	sub := r.rdb.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var change store.Change
				if err := json.Unmarshal([]byte(m.Payload), &change); err != nil {
					r.log.Warn("bad relay payload", "error", err)
					continue
				}
				onChange(change)
			}
		}
	}()

	return nil
}

func (r *redisRelay) Close() error {
	if r == nil || r.rdb == nil {
		return nil
	}
	return r.rdb.Close()
}
