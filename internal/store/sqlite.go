package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/haven-app/haven/internal/profile"
	"github.com/haven-app/haven/internal/recovery"
)

//go:embed schema.sql
var schema string

// SQLiteStore persists the profile and snapshot history as JSON documents
// in a local sqlite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p profile.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_profile (id, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
	`, string(doc), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadProfile(ctx context.Context) (profile.Profile, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM user_profile WHERE id = 1").Scan(&doc)
	if err == sql.ErrNoRows {
		return profile.Profile{}, ErrNoProfile
	}
	if err != nil {
		return profile.Profile{}, fmt.Errorf("load profile: %w", err)
	}

	var p profile.Profile
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return profile.Profile{}, fmt.Errorf("%w: %v", ErrCorruptProfile, err)
	}
	return p, nil
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap recovery.WeeklySnapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weekly_snapshots (week, document, finalized_at) VALUES (?, ?, ?)
		ON CONFLICT (week) DO UPDATE SET document = excluded.document, finalized_at = excluded.finalized_at
	`, snap.Week, string(doc), snap.FinalizedAt)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.Week, err)
	}
	return nil
}

func (s *SQLiteStore) Snapshots(ctx context.Context) ([]recovery.WeeklySnapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT document FROM weekly_snapshots ORDER BY week ASC")
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []recovery.WeeklySnapshot
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		var snap recovery.WeeklySnapshot
		if err := json.Unmarshal([]byte(doc), &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) LastWeek(ctx context.Context) (string, error) {
	var week sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT MAX(week) FROM weekly_snapshots").Scan(&week)
	if err != nil {
		return "", fmt.Errorf("last week: %w", err)
	}
	if !week.Valid {
		return "", nil
	}
	return week.String, nil
}
