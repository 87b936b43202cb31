// Package sqlite provides a durable single-file state store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/storage"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// StateStore implements domain.StateStore on a SQLite key-value table.
type StateStore struct {
	db *sql.DB
}

// New opens (or creates) the database at path and runs schema migrations.
func New(path string) (*StateStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &StateStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	raw, err := s.get(ctx, storage.KeySessions)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}

	var sessions []domain.ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sessions: %w", err)
	}

	current, err := s.get(ctx, storage.KeyCurrentID)
	if err != nil {
		return nil, err
	}

	openRaw, err := s.get(ctx, storage.KeyIsOpen)
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// All three keys are written together so a restored state is
	// internally consistent.
	entries := map[string]string{
		storage.KeySessions:  string(data),
		storage.KeyCurrentID: state.CurrentID,
		storage.KeyIsOpen:    strconv.FormatBool(state.IsOpen),
	}
	for key, value := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO widget_state (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

func (s *StateStore) Close() error {
	return s.db.Close()
}

func (s *StateStore) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM widget_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}
