// Package redis holds the Redis-backed adapters: the notification outbox,
// rate-limit counters and the idempotency cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"splatchain-ledger/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces every key this service writes.
const keyPrefix = "splatchain:"

const connectBackoff = 500 * time.Millisecond

// NewClient dials Redis and pings it up to cfg.ConnectTries times, backing
// off linearly between attempts. Redis often starts after the ledger in
// local compose setups.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	tries := max(cfg.ConnectTries, 1)
	var err error
	for attempt := 1; attempt <= tries; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			log.Info().
				Str("addr", cfg.Addr()).
				Int("db", cfg.DB).
				Int("attempt", attempt).
				Msg("redis connection established")
			return client, nil
		}
		if attempt == tries {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("redis not reachable, retrying")
		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * connectBackoff):
		}
	}

	client.Close()
	return nil, fmt.Errorf("pinging redis at %s after %d attempts: %w", cfg.Addr(), tries, err)
}
