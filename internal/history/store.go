// Package history persists per-user generation records in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
)

const defaultListLimit = 20

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generations (
		id         TEXT PRIMARY KEY,
		owner_id   TEXT NOT NULL,
		prompt     TEXT NOT NULL,
		model      TEXT NOT NULL,
		image_url  TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_generations_owner ON generations(owner_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Insert(ctx context.Context, rec *models.HistoryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (id, owner_id, prompt, model, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.OwnerID, rec.Prompt, rec.Model, rec.ImageURL, rec.CreatedAt)
	return err
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*models.HistoryRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, prompt, model, image_url, created_at
		FROM generations
		WHERE owner_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.HistoryRecord
	for rows.Next() {
		rec := &models.HistoryRecord{}
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Prompt, &rec.Model, &rec.ImageURL, &rec.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
