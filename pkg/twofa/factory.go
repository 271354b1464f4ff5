package twofa

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RepositoryConfig holds what each persistence type needs. Only the fields
// for the selected type are read.
type RepositoryConfig struct {
	Pool           PgxExecutor
	Redis          redis.UniversalClient
	RedisKeyPrefix string
	DataDir        string
}

// NewUserTwoFactorRepository creates a repository for persistenceType, one
// of postgres, redis, file or memory.
func NewUserTwoFactorRepository(persistenceType string, config RepositoryConfig) (UserTwoFactorRepository, error) {
	switch persistenceType {
	case "postgres":
		if config.Pool == nil {
			return nil, fmt.Errorf("postgres persistence requires a database pool")
		}
		return NewPostgresUserRepository(config.Pool), nil
	case "redis":
		if config.Redis == nil {
			return nil, fmt.Errorf("redis persistence requires a redis client")
		}
		return NewRedisUserRepository(config.Redis, config.RedisKeyPrefix), nil
	case "file":
		if config.DataDir == "" {
			return nil, fmt.Errorf("file persistence requires a data directory")
		}
		return NewFileUserRepository(config.DataDir)
	case "memory":
		return NewInMemoryUserRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", persistenceType)
	}
}
