package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vcrelay/internal/correlation/models"
	"vcrelay/pkg/platform/sentinel"
)

const redisKeyPrefix = "correlation:state:"

// maxUpdateRetries bounds the optimistic-lock loop in Update. Contention on
// a single token is rare (duplicate webhook delivery), so a handful of
// attempts is plenty.
const maxUpdateRetries = 5

// RedisStore is a Redis-backed implementation of Store. This is the
// recommended backend when several relay instances sit behind one callback
// URL and need to share correlation state.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed correlation store. Entries expire ttl
// after their last write via native key TTLs.
func NewRedis(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, token string) (*models.Record, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get correlation record: %w", err)
	}
	return decodeRecord(raw, token)
}

func (s *RedisStore) Put(ctx context.Context, token string, record *models.Record) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode correlation record: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+token, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("put correlation record: %w", err)
	}
	return nil
}

// Update runs fn inside a WATCH/EXEC optimistic transaction so concurrent
// callback redelivery for the same token cannot produce lost updates.
func (s *RedisStore) Update(ctx context.Context, token string, fn func(*models.Record) error) error {
	key := redisKeyPrefix + token

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get correlation record: %w", err)
		}
		record, err := decodeRecord(raw, token)
		if err != nil {
			return err
		}
		if err := fn(record); err != nil {
			return err
		}
		updated, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode correlation record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update correlation record: too much contention on token %s", token)
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete correlation record: %w", err)
	}
	return nil
}

func decodeRecord(raw []byte, token string) (*models.Record, error) {
	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("decode correlation record: %w", err)
	}
	record.Token = token
	return &record, nil
}
