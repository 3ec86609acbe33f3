package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"route-tracker/internal/session"
)

const redisKeyPrefix = "route-tracker:session:"

// RedisSessionStore keeps sessions as JSON values in Redis so several
// replicas can serve the same driver. Every save refreshes the TTL and is
// rejected when another replica saved the session in between.
type RedisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, ttl: ttl}
}

// OpenRedis parses a redis:// URL and checks the server is reachable.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return rdb, nil
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	data, err := r.rdb.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis session store: get %s: %w", id, err)
	}

	var s session.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("redis session store: decode %s: %w", id, err)
	}
	return &s, nil
}

// Save writes s under WATCH so that two replicas saving the same loaded
// version cannot both succeed.
func (r *RedisSessionStore) Save(ctx context.Context, s *session.Session) error {
	next := *s
	next.Version++
	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("redis session store: encode %s: %w", s.ID, err)
	}

	key := r.key(s.ID)
	txf := func(tx *redis.Tx) error {
		stored, found, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := checkVersion(s.ID, stored, found, s.Version); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	err = r.rdb.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("redis session store: save %s: %w", s.ID, session.ErrSessionConflict)
	}
	if err != nil {
		return fmt.Errorf("redis session store: %w", err)
	}

	s.Version = next.Version
	return nil
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, bool, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get %s: %w", key, err)
	}

	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return head.Version, true, nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("redis session store: delete %s: %w", id, err)
	}
	return nil
}

func (r *RedisSessionStore) key(id string) string { return redisKeyPrefix + id }
