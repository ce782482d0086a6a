// Package store is the device-local persistence layer: four independently
// keyed, versioned text records in a single SQLite table. Each record is
// loaded defensively so that one corrupted payload never blocks the rest.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"parksign-service/internal/domain/parking"
)

// Versioned record keys. Bumping a version abandons the old payload
// instead of migrating it, so schema changes cannot corrupt unrelated
// records.
const (
	keyOnboarding = "parksign.onboarding.v1"
	keyLegal      = "parksign.legal.v1"
	keyProfile    = "parksign.profile.v1"
	keyHistory    = "parksign.history.v1"
)

type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the local record store at path. Use ":memory:"
// in tests.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS records (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// get returns the raw record value. Read failures other than absence are
// logged and reported as absence: local storage trouble must never crash
// the session.
func (s *Store) get(ctx context.Context, key string) (string, bool) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM records WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("local store read failed")
		return "", false
	}
	return value, true
}

// set overwrites the whole record. Mutations at the application layer are
// read-modify-write; there are no partial patches.
func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	if err != nil {
		return fmt.Errorf("local store write %s: %w", key, err)
	}
	return nil
}

func (s *Store) OnboardingCompleted(ctx context.Context) bool {
	v, ok := s.get(ctx, keyOnboarding)
	return ok && v == "true"
}

func (s *Store) SetOnboardingCompleted(ctx context.Context, done bool) error {
	v := "false"
	if done {
		v = "true"
	}
	return s.set(ctx, keyOnboarding, v)
}

func (s *Store) LegalAcceptedDate(ctx context.Context) string {
	v, _ := s.get(ctx, keyLegal)
	return v
}

func (s *Store) SetLegalAcceptedDate(ctx context.Context, date string) error {
	return s.set(ctx, keyLegal, date)
}

// Profile returns the stored profile, or nil when absent or malformed.
func (s *Store) Profile(ctx context.Context) *parking.Profile {
	raw, ok := s.get(ctx, keyProfile)
	if !ok {
		return nil
	}
	var p parking.Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.Warn().Err(err).Msg("skipping malformed profile record")
		return nil
	}
	return &p
}

func (s *Store) SaveProfile(ctx context.Context, p *parking.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	return s.set(ctx, keyProfile, string(raw))
}

// History returns the stored scan history, newest first. A malformed
// record yields an empty history; entries without an id are dropped
// silently.
func (s *Store) History(ctx context.Context) []parking.HistoryItem {
	raw, ok := s.get(ctx, keyHistory)
	if !ok {
		return nil
	}
	var items []parking.HistoryItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Warn().Err(err).Msg("skipping malformed history record")
		return nil
	}
	kept := items[:0]
	for _, it := range items {
		if it.ID == "" {
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

func (s *Store) SaveHistory(ctx context.Context, items []parking.HistoryItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.set(ctx, keyHistory, string(raw))
}
