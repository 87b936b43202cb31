// Package redis provides a TTL-scoped state store. Each client instance
// persists under its own namespace so widget state stays scoped the way a
// browser tab's storage is, with expiry standing in for tab lifetime.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bookworm-labs/bookchat/internal/config"
	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/storage"
)

const defaultTTL = 24 * time.Hour

// StateStore implements domain.StateStore on Redis.
type StateStore struct {
	rdb       *redis.Client
	namespace string
	ttl       time.Duration
}

// New connects to Redis and verifies the connection. The namespace keys
// one client's state apart from others sharing the same database.
func New(cfg config.RedisConfig, namespace string) (*StateStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &StateStore{rdb: rdb, namespace: namespace, ttl: ttl}, nil
}

func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	raw, err := s.rdb.Get(ctx, s.key(storage.KeySessions)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	var sessions []domain.ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	current, err := s.rdb.Get(ctx, s.key(storage.KeyCurrentID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read current session id: %w", err)
	}

	openRaw, err := s.rdb.Get(ctx, s.key(storage.KeyIsOpen)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read open flag: %w", err)
	}
	isOpen, _ := strconv.ParseBool(openRaw)

	return &domain.State{Sessions: sessions, CurrentID: current, IsOpen: isOpen}, nil
}

func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	data, err := json.Marshal(state.Sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key(storage.KeySessions), data, s.ttl)
	pipe.Set(ctx, s.key(storage.KeyCurrentID), state.CurrentID, s.ttl)
	pipe.Set(ctx, s.key(storage.KeyIsOpen), strconv.FormatBool(state.IsOpen), s.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func (s *StateStore) Close() error {
	return s.rdb.Close()
}

func (s *StateStore) key(name string) string {
	return s.namespace + ":" + name
}
