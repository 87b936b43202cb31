// Package postgres provides an account-scoped durable state store, for
// deployments where chat history should survive the local machine.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS widget_state (
    namespace TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (namespace, key)
)`

// StateStore implements domain.StateStore on PostgreSQL.
type StateStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// New connects to PostgreSQL and ensures the state table exists. The
// namespace is typically a user or device identifier.
func New(ctx context.Context, dsn, namespace string) (*StateStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create state table: %w", err)
	}

	return &StateStore{pool: pool, namespace: namespace}, nil
}

func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	raw, found, err := s.get(ctx, storage.KeySessions)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	var sessions []domain.ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	current, _, err := s.get(ctx, storage.KeyCurrentID)
	if err != nil {
		return nil, err
	}

	openRaw, _, err := s.get(ctx, storage.KeyIsOpen)
	if err != nil {
		return nil, err
	}
	isOpen, _ := strconv.ParseBool(openRaw)

	return &domain.State{Sessions: sessions, CurrentID: current, IsOpen: isOpen}, nil
}

func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	data, err := json.Marshal(state.Sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	entries := map[string]string{
		storage.KeySessions:  string(data),
		storage.KeyCurrentID: state.CurrentID,
		storage.KeyIsOpen:    strconv.FormatBool(state.IsOpen),
	}
	for key, value := range entries {
		if _, err := tx.Exec(ctx,
			`INSERT INTO widget_state (namespace, key, value, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (namespace, key) DO UPDATE SET value = $3, updated_at = NOW()`,
			s.namespace, key, value,
		); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

func (s *StateStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *StateStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM widget_state WHERE namespace = $1 AND key = $2`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}
