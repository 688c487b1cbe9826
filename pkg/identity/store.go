/*
 * Copyright 2025 The steamwatch Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package identity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wzken/steamwatch/pkg/models"
)

// Store persists resolved identities so restarts do not re-resolve every
// monitored target from scratch.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the identity database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create identity db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open identity db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS identities (
			raw_input    TEXT PRIMARY KEY,
			steam_id     TEXT NOT NULL,
			display_name TEXT,
			avatar_url   TEXT,
			resolved_at  INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create identities table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_identities_steam_id ON identities(steam_id)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create identities index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert stores the identity resolved for rawInput, replacing any earlier
// resolution of the same input.
func (s *Store) Upsert(ctx context.Context, rawInput string, ident models.Identity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO identities (raw_input, steam_id, display_name, avatar_url, resolved_at)
		VALUES (?, ?, ?, ?, ?)
	`, rawInput, ident.SteamID, ident.DisplayName, ident.AvatarURL, ident.ResolvedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	return nil
}

// LoadAll returns every stored identity keyed by its raw input.
func (s *Store) LoadAll(ctx context.Context) (map[string]models.Identity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT raw_input, steam_id, display_name, avatar_url, resolved_at
		FROM identities
	`)
	if err != nil {
		return nil, fmt.Errorf("load identities: %w", err)
	}
	defer rows.Close()

	identities := make(map[string]models.Identity)

	for rows.Next() {
		var (
			rawInput   string
			ident      models.Identity
			resolvedAt int64
		)

		if err := rows.Scan(&rawInput, &ident.SteamID, &ident.DisplayName, &ident.AvatarURL, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}

		ident.ResolvedAt = time.Unix(resolvedAt, 0)
		identities[rawInput] = ident
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}

	return identities, nil
}
