// Package ratelimit implements a per-key token bucket stored in Redis.
package ratelimit

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed token_bucket.lua
var tokenBucketScript string

type Rule struct {
	Limit      int // bucket size
	RefillRate int // tokens per second
}

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Redis evaluates the bucket atomically with a Lua script. When Redis cannot
// be reached requests are let through and the error is returned for logging.
type Redis struct {
	client *redis.Client
	script *redis.Script
	rule   Rule
	prefix string
	now    func() time.Time
}

func NewRedis(addr, password string, rule Rule) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("redis address is empty")
	}
	if rule.Limit < 1 || rule.RefillRate < 1 {
		return nil, errors.New("rate limit and refill rate must be positive")
	}
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})
	return &Redis{
		client: client,
		script: redis.NewScript(tokenBucketScript),
		rule:   rule,
		prefix: "ratelimit:",
		now:    time.Now,
	}, nil
}

// Ping checks connectivity; callers use it to log a warning at startup.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	res, err := r.script.Run(ctx, r.client, []string{r.prefix + key},
		r.rule.RefillRate, r.rule.Limit, r.now().Unix()).Int64()
	if err != nil {
		// fail open
		return true, err
	}
	return res == 1, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
