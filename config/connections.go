package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Connections holds the store endpoints and pool sizes. URIs are required
// for Postgres and Mongo; Redis is optional and an empty address disables
// the worker queue.
type Connections struct {
	PostgresURI      string        `env:"POSTGRES_URI"`
	PostgresMaxOpen  int           `env:"POSTGRES_MAX_OPEN" envDefault:"50"`
	PostgresMaxIdle  int           `env:"POSTGRES_MAX_IDLE" envDefault:"10"`
	PostgresLifetime time.Duration `env:"POSTGRES_CONN_LIFETIME" envDefault:"30m"`

	MongoURI         string `env:"MONGO_URI"`
	MongoMaxPool     uint64 `env:"MONGO_MAX_POOL" envDefault:"20"`
	MongoForceTLS12  bool   `env:"MONGO_FORCE_TLS_CONFIG"`
	MongoInsecureTLS bool   `env:"MONGO_INSECURE_TLS"`

	RedisAddr string `env:"REDIS_ADDR"`
	RedisURL  string `env:"REDIS_URL"`
}

var (
	errNoPostgres = errors.New("POSTGRES_URI environment variable is not set")
	errNoMongo    = errors.New("MONGO_URI environment variable is not set")
	errNoRedis    = errors.New("REDIS_ADDR (or REDIS_URL) environment variable is not set")
)

func LoadConnections() (Connections, error) {
	var c Connections
	err := env.Parse(&c)
	return c, err
}

// redisTarget prefers REDIS_ADDR over REDIS_URL.
func (c Connections) redisTarget() string {
	if c.RedisAddr != "" {
		return c.RedisAddr
	}
	return c.RedisURL
}
