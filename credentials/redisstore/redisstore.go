// Package redisstore keeps credentials in a Redis hash, one hash per namespace.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jrsteele09/academy-portal/credentials"
	perrors "github.com/jrsteele09/academy-portal/internal/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "portal:credentials:"

var _ credentials.Store = (*Store)(nil)

type Store struct {
	rdb  redis.UniversalClient
	hash string
}

func New(rdb redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = "default"
	}
	return &Store{rdb: rdb, hash: keyPrefix + namespace}
}

// Connect dials Redis and verifies the connection with a PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("[redisstore Connect] %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *Store) Get(ctx context.Context, key credentials.Key) (string, bool, error) {
	v, err := s.rdb.HGet(ctx, s.hash, string(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("[redisstore Get] %w: %v", perrors.ErrStorage, err)
	}
	return v, true, nil
}

func (s *Store) Set(ctx context.Context, key credentials.Key, value string) error {
	if err := s.rdb.HSet(ctx, s.hash, string(key), value).Err(); err != nil {
		return fmt.Errorf("[redisstore Set] %w: %v", perrors.ErrStorage, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys ...credentials.Key) error {
	if len(keys) == 0 {
		return nil
	}
	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = string(k)
	}
	if err := s.rdb.HDel(ctx, s.hash, fields...).Err(); err != nil {
		return fmt.Errorf("[redisstore Delete] %w: %v", perrors.ErrStorage, err)
	}
	return nil
}
