package config

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// redisOptions accepts a bare host:port or a redis:// / rediss:// URL.
func redisOptions(target string) (*redis.Options, error) {
	if target == "" {
		return nil, errNoRedis
	}
	opt := &redis.Options{Addr: target}
	if strings.HasPrefix(target, "redis://") || strings.HasPrefix(target, "rediss://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, err
		}
		opt = parsed
	}
	// worker XREADGROUP blocks for 5s; reads must outlast it
	opt.ReadTimeout = 10 * time.Second
	return opt, nil
}

// InitRedis connects the analysis queue, status pub/sub and policy cache.
func InitRedis(c Connections) error {
	opt, err := redisOptions(c.redisTarget())
	if err != nil {
		return err
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return err
	}

	RedisClient = client
	return nil
}
