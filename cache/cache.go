// Package cache puts a Redis read-through cache in front of account lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"go-bankledger/models"
	"go-bankledger/store"
)

const DefaultTTL = 60 * time.Second

// NewClient connects to Redis at addr and pings it.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func AccountKey(number string) string {
	return "bank:account:" + number
}

// Store wraps another store.Store. FindAccountByNumber outside a transaction
// is served from Redis when possible; writes drop the affected keys. Redis
// failures are logged and never fail the call.
type Store struct {
	store.Store
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func New(inner store.Store, client *redis.Client, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{Store: inner, client: client, ttl: ttl, log: log.Named("cache")}
}

func (s *Store) FindAccountByNumber(ctx context.Context, number string) (*models.Account, error) {
	key := AccountKey(number)
	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var a models.Account
		if err := json.Unmarshal(data, &a); err == nil {
			return &a, nil
		}
		s.log.Warn("dropping undecodable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	}

	a, err := s.Store.FindAccountByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(a); err == nil {
		if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return a, nil
}

func (s *Store) SaveAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	saved, err := s.Store.SaveAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, AccountKey(a.Number))
	return saved, nil
}

func (s *Store) DeleteCustomerByID(ctx context.Context, id int64) error {
	keys, err := ownedKeys(ctx, s.Store, id)
	if err != nil {
		return err
	}
	if err := s.Store.DeleteCustomerByID(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, keys...)
	return nil
}

// WithinTx reads and writes through the inner transaction directly and drops
// the keys it touched once the transaction has committed.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	view := &txView{}
	err := s.Store.WithinTx(ctx, func(tx store.Store) error {
		view.Store = tx
		return fn(view)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, view.touched...)
	return nil
}

func (s *Store) invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.log.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// txView records which account keys a transaction writes.
type txView struct {
	store.Store
	touched []string
}

func (v *txView) SaveAccount(ctx context.Context, a *models.Account) (*models.Account, error) {
	saved, err := v.Store.SaveAccount(ctx, a)
	if err != nil {
		return nil, err
	}
	v.touched = append(v.touched, AccountKey(a.Number))
	return saved, nil
}

func (v *txView) DeleteCustomerByID(ctx context.Context, id int64) error {
	keys, err := ownedKeys(ctx, v.Store, id)
	if err != nil {
		return err
	}
	if err := v.Store.DeleteCustomerByID(ctx, id); err != nil {
		return err
	}
	v.touched = append(v.touched, keys...)
	return nil
}

func (v *txView) WithinTx(_ context.Context, fn func(tx store.Store) error) error {
	return fn(v)
}

func ownedKeys(ctx context.Context, s store.Store, customerID int64) ([]string, error) {
	c, err := s.FindCustomerByID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(c.AccountNumbers))
	for _, number := range c.AccountNumbers {
		keys = append(keys, AccountKey(number))
	}
	return keys, nil
}

var _ store.Store = (*Store)(nil)
