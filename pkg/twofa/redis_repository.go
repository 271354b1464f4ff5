package twofa

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	fieldEmail        = "email"
	fieldPasswordHash = "password_hash"
	fieldEnabled      = "two_factor_enabled"
	fieldSecret       = "two_factor_secret"
	fieldBackupCodes  = "two_factor_backup_codes"

	defaultRedisKeyPrefix = "user"
	redisTxMaxRetries     = 10
)

// RedisUserRepository keeps each user in a hash at {prefix}:{id}. Writes
// that depend on the current value run in a WATCH/MULTI transaction and are
// retried when another client touches the key first.
type RedisUserRepository struct {
	client    redis.UniversalClient
	keyPrefix string
}

func NewRedisUserRepository(client redis.UniversalClient, keyPrefix string) *RedisUserRepository {
	if keyPrefix == "" {
		keyPrefix = defaultRedisKeyPrefix
	}
	return &RedisUserRepository{client: client, keyPrefix: keyPrefix}
}

func (r *RedisUserRepository) key(userID uuid.UUID) string {
	return r.keyPrefix + ":" + userID.String()
}

func (r *RedisUserRepository) CreateUser(ctx context.Context, user UserRecord) error {
	key := r.key(user.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldEmail, user.Email,
			fieldPasswordHash, user.PasswordHash,
			fieldEnabled, strconv.FormatBool(user.TwoFactorEnabled),
		)
		setOptional(ctx, pipe, key, fieldSecret, user.TwoFactorSecret)
		setOptional(ctx, pipe, key, fieldBackupCodes, user.TwoFactorBackupCodes)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.ID, err)
	}
	return nil
}

func (r *RedisUserRepository) GetUser(ctx context.Context, userID uuid.UUID) (UserRecord, error) {
	fields, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return decodeUser(userID, fields)
}

func (r *RedisUserRepository) UpdateTwoFactor(ctx context.Context, userID uuid.UUID, update TwoFactorUpdate) error {
	key := r.key(userID)
	return r.watch(ctx, key, func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if exists == 0 {
			return ErrRecordNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldEnabled, strconv.FormatBool(update.Enabled))
			setOptional(ctx, pipe, key, fieldSecret, update.Secret)
			setOptional(ctx, pipe, key, fieldBackupCodes, update.BackupCodes)
			return nil
		})
		return err
	})
}

func (r *RedisUserRepository) ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, codes string) (bool, error) {
	key := r.key(userID)
	var replaced bool
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		replaced = false
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		rec, err := decodeUser(userID, fields)
		if err != nil {
			return err
		}
		if !rec.TwoFactorEnabled {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldBackupCodes, codes)
			return nil
		})
		if err == nil {
			replaced = true
		}
		return err
	})
	return replaced, err
}

func (r *RedisUserRepository) RemoveBackupCodeIfPresent(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	key := r.key(userID)
	var removed bool
	err := r.watch(ctx, key, func(tx *redis.Tx) error {
		removed = false
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}
		rec, err := decodeUser(userID, fields)
		if err != nil {
			return err
		}
		ok, err := removeCode(&rec, code)
		if err != nil || !ok {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldBackupCodes, *rec.TwoFactorBackupCodes)
			return nil
		})
		if err == nil {
			removed = true
		}
		return err
	})
	return removed, err
}

// watch runs fn under WATCH key, retrying while the transaction is aborted
// by a concurrent write.
func (r *RedisUserRepository) watch(ctx context.Context, key string, fn func(tx *redis.Tx) error) error {
	for i := 0; i < redisTxMaxRetries; i++ {
		err := r.client.Watch(ctx, fn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("watch %s: %w", key, redis.TxFailedErr)
}

func setOptional(ctx context.Context, pipe redis.Pipeliner, key, field string, value *string) {
	if value == nil {
		pipe.HDel(ctx, key, field)
		return
	}
	pipe.HSet(ctx, key, field, *value)
}

func decodeUser(userID uuid.UUID, fields map[string]string) (UserRecord, error) {
	if len(fields) == 0 {
		return UserRecord{}, ErrRecordNotFound
	}
	rec := UserRecord{
		ID:           userID,
		Email:        fields[fieldEmail],
		PasswordHash: fields[fieldPasswordHash],
	}
	if v, ok := fields[fieldEnabled]; ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return UserRecord{}, fmt.Errorf("decode %s for %s: %w", fieldEnabled, userID, err)
		}
		rec.TwoFactorEnabled = enabled
	}
	if v, ok := fields[fieldSecret]; ok {
		rec.TwoFactorSecret = &v
	}
	if v, ok := fields[fieldBackupCodes]; ok {
		rec.TwoFactorBackupCodes = &v
	}
	return rec, nil
}
