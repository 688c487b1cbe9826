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

// Package rulestore persists monitoring rules in sqlite. Every mutation is
// written through synchronously; the scheduler treats the store as the
// source of truth at each tick boundary.
package rulestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wzken/steamwatch/pkg/models"
)

// Store is the durable rule table.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the rule database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create rule db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open rule db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rules (
			id                  TEXT PRIMARY KEY,
			raw_target          TEXT NOT NULL,
			steam_id            TEXT NOT NULL,
			display_name        TEXT,
			avatar_url          TEXT,
			game_filter         TEXT NOT NULL DEFAULT '',
			destination         TEXT NOT NULL,
			created_at          INTEGER NOT NULL,
			history_json        TEXT NOT NULL DEFAULT '[]',
			playtime_today_secs INTEGER NOT NULL DEFAULT 0,
			last_reset_day      TEXT NOT NULL DEFAULT '',
			game_started_at     INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rules table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_dedupe
		ON rules(steam_id, destination, game_filter)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rules dedupe index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_rules_destination ON rules(destination)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rules destination index: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add inserts a new rule and returns its assigned ID. A rule watching the
// same identity for the same destination with the same game filter is
// rejected with ErrDuplicateRule.
func (s *Store) Add(ctx context.Context, rule *models.Rule) (string, error) {
	var exists bool

	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM rules WHERE steam_id = ? AND destination = ? AND game_filter = ?
		)
	`, rule.SteamID, rule.Destination, rule.GameFilter).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("check duplicate rule: %w", err)
	}

	if exists {
		return "", fmt.Errorf("%w: %s for %s", ErrDuplicateRule, rule.SteamID, rule.Destination)
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	historyJSON, err := json.Marshal(rule.History)
	if err != nil {
		return "", fmt.Errorf("marshal rule history: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rules (
			id, raw_target, steam_id, display_name, avatar_url,
			game_filter, destination, created_at,
			history_json, playtime_today_secs, last_reset_day, game_started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rule.ID, rule.RawTarget, rule.SteamID, rule.DisplayName, rule.AvatarURL,
		rule.GameFilter, rule.Destination, rule.CreatedAt.Unix(),
		string(historyJSON), int64(rule.PlaytimeToday.Seconds()), rule.LastResetDay, unixOrZero(rule.GameStartedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert rule: %w", err)
	}

	return rule.ID, nil
}

// Remove deletes the single rule whose ID starts with prefix and returns it.
// Zero matches yield ErrRuleNotFound, more than one ErrAmbiguousPrefix.
func (s *Store) Remove(ctx context.Context, prefix string) (*models.Rule, error) {
	rules, err := s.queryRules(ctx, `WHERE substr(id, 1, ?) = ?`, len(prefix), prefix)
	if err != nil {
		return nil, err
	}

	switch len(rules) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, prefix)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s matches %d rules", ErrAmbiguousPrefix, prefix, len(rules))
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, rules[0].ID); err != nil {
		return nil, fmt.Errorf("delete rule: %w", err)
	}

	return rules[0], nil
}

// List returns rules ordered by creation time. An empty destination returns
// every rule.
func (s *Store) List(ctx context.Context, destination string) ([]*models.Rule, error) {
	if destination == "" {
		return s.queryRules(ctx, `ORDER BY created_at, id`)
	}

	return s.queryRules(ctx, `WHERE destination = ? ORDER BY created_at, id`, destination)
}

// Update persists the mutable fields of an existing rule: the display
// identity and the session bookkeeping. Filter, destination, and target are
// immutable; replacing them means removing and re-adding the rule.
func (s *Store) Update(ctx context.Context, rule *models.Rule) error {
	historyJSON, err := json.Marshal(rule.History)
	if err != nil {
		return fmt.Errorf("marshal rule history: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET display_name = ?, avatar_url = ?,
		    history_json = ?, playtime_today_secs = ?, last_reset_day = ?, game_started_at = ?
		WHERE id = ?
	`,
		rule.DisplayName, rule.AvatarURL,
		string(historyJSON), int64(rule.PlaytimeToday.Seconds()), rule.LastResetDay, unixOrZero(rule.GameStartedAt),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}

	return nil
}

func (s *Store) queryRules(ctx context.Context, clause string, args ...any) ([]*models.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, raw_target, steam_id, display_name, avatar_url,
		       game_filter, destination, created_at,
		       history_json, playtime_today_secs, last_reset_day, game_started_at
		FROM rules `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var rules []*models.Rule

	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}

	return rules, nil
}

func scanRule(rows *sql.Rows) (*models.Rule, error) {
	var (
		rule          models.Rule
		createdAt     int64
		historyJSON   string
		playtimeSecs  int64
		gameStartedAt int64
	)

	if err := rows.Scan(
		&rule.ID, &rule.RawTarget, &rule.SteamID, &rule.DisplayName, &rule.AvatarURL,
		&rule.GameFilter, &rule.Destination, &createdAt,
		&historyJSON, &playtimeSecs, &rule.LastResetDay, &gameStartedAt,
	); err != nil {
		return nil, fmt.Errorf("scan rule: %w", err)
	}

	rule.CreatedAt = time.Unix(createdAt, 0)
	rule.PlaytimeToday = time.Duration(playtimeSecs) * time.Second

	if gameStartedAt != 0 {
		rule.GameStartedAt = time.Unix(gameStartedAt, 0)
	}

	if err := json.Unmarshal([]byte(historyJSON), &rule.History); err != nil {
		return nil, fmt.Errorf("unmarshal rule history: %w", err)
	}

	return &rule, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.Unix()
}
