package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"wablast/internal/eventbus"
	logx "wablast/pkg/logx"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// publishClient is the part of *redis.Client the publisher uses.
type publishClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Close() error
}

// RedisPublisher mirrors bus events onto a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     publishClient
	channel string
	log     logx.Logger
}

func NewRedisPublisher(cfg RedisConfig, log logx.Logger) (*RedisPublisher, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("notify.redis.addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisPublisher(rdb, cfg.Channel, log), nil
}

func newRedisPublisher(rdb publishClient, channel string, log logx.Logger) *RedisPublisher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if strings.TrimSpace(channel) == "" {
		channel = "wablast:events"
	}
	return &RedisPublisher{rdb: rdb, channel: channel, log: log}
}

// Publish sends one event.
func (p *RedisPublisher) Publish(ctx context.Context, ev eventbus.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Run forwards bus events until ctx is done. Publish failures are logged and skipped.
func (p *RedisPublisher) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			if err := p.Publish(pctx, ev); err != nil {
				p.log.Warn("redis publish failed", logx.String("type", ev.Type), logx.Err(err))
			}
			cancel()
		}
	}
}

func (p *RedisPublisher) Close() error { return p.rdb.Close() }
