package config

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for the redis record store
type RedisConfig struct {
	Host      string `env:"REDIS_HOST" env-default:"localhost"`
	Port      uint16 `env:"REDIS_PORT" env-default:"6379"`
	Password  string `env:"REDIS_PASSWORD" env-default:""`
	DB        int    `env:"REDIS_DB" env-default:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" env-default:"user"`
}

// ToOptions converts the config to go-redis client options
func (r RedisConfig) ToOptions() *redis.Options {
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", r.Host, r.Port),
		Password: r.Password,
		DB:       r.DB,
	}
}

func (r RedisConfig) Validate() error {
	return Validate(func() ValidationErrors {
		return CollectErrors(
			RequireNonEmpty("REDIS_HOST", r.Host),
			RequireValidPort("REDIS_PORT", r.Port),
			RequireInRange("REDIS_DB", r.DB, 0, 15),
		)
	})
}
