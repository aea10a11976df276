/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// RetroStore persists full room snapshots in SQLite. One row per room;
// the snapshot column holds the JSON-encoded RetroState, the secret sits
// in its own column and never travels inside a snapshot.
type RetroStore struct {
	sqlDB *sql.DB
}

const retroSchema = `
CREATE TABLE IF NOT EXISTS retros (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	secret TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);`

// OpenRetroStore opens (and creates, if needed) the room database.
func OpenRetroStore(path string) (*RetroStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(retroSchema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &RetroStore{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *RetroStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateRetro inserts a freshly initialized room. Fails if the id is
// already taken, so callers can collision-check generated ids.
func (s *RetroStore) CreateRetro(ctx context.Context, state *RetroState, secret string) error {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO retros (id, name, secret, snapshot, updated_at) VALUES (?, ?, ?, ?, ?)`,
		state.ID, state.Name, secret, string(snapshot), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert retro %s: %w", state.ID, err)
	}
	return nil
}

// SaveRetro writes the full snapshot for an existing room. Called
// synchronously after every accepted mutation, before any broadcast.
func (s *RetroStore) SaveRetro(ctx context.Context, state *RetroState) error {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE retros SET name = ?, snapshot = ?, updated_at = ? WHERE id = ?`,
		state.Name, string(snapshot), time.Now().Unix(), state.ID,
	)
	if err != nil {
		return fmt.Errorf("save retro %s: %w", state.ID, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save retro %s: room not initialized", state.ID)
	}
	return nil
}

// LoadRetro rehydrates a room snapshot and its owner secret. A missing
// room returns (nil, "", nil).
func (s *RetroStore) LoadRetro(ctx context.Context, id string) (*RetroState, string, error) {
	var snapshot, secret string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT snapshot, secret FROM retros WHERE id = ?`,
		id,
	).Scan(&snapshot, &secret)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("load retro %s: %w", id, err)
	}

	state := &RetroState{}
	if err := json.Unmarshal([]byte(snapshot), state); err != nil {
		return nil, "", fmt.Errorf("decode retro %s: %w", id, err)
	}
	if state.Votes == nil {
		state.Votes = make(map[string][]string)
	}
	if state.DisplayNames == nil {
		state.DisplayNames = make(map[string]string)
	}
	return state, secret, nil
}

// RetroName reports whether a room id is initialized, and its display
// name. Backs the existence-check endpoint without decoding snapshots.
func (s *RetroStore) RetroName(ctx context.Context, id string) (string, bool, error) {
	var name string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT name FROM retros WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("check retro %s: %w", id, err)
	}
	return name, true, nil
}
