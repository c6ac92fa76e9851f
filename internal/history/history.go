// Package history keeps an append-only SQLite log of recorded openings.
// The tally file stays the source of truth for counts; history only adds
// when and from what OCR text each item was recorded.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
)

// DefaultLimit caps List when the caller passes a non-positive limit.
const DefaultLimit = 50

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path and runs
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, common.NewAppError(common.CodeHistory, "open "+path, err)
	}
	// single writer; sqlite serialises anyway
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, common.NewAppError(common.CodeHistory, "migrate", err)
	}
	logger.Debug("history.open.ok", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS openings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			raw_text TEXT NOT NULL DEFAULT '',
			item TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_openings_created ON openings(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_openings_category ON openings(category)`,
	}
	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record appends one opening. A zero ID or timestamp is filled in.
func (s *Store) Record(ctx context.Context, o entity.Opening) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO openings (id, session_id, category, raw_text, item, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.SessionID, o.Category, o.RawText, o.Item, o.Status,
		o.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Error("history.record.failed", "item", o.Item, "error", err)
		return common.NewAppError(common.CodeHistory, "record", err)
	}
	s.logger.Debug("history.record.ok", "id", o.ID, "category", o.Category, "item", o.Item)
	return nil
}

// List returns the most recent openings, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]entity.Opening, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, category, raw_text, item, status, created_at
		 FROM openings ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, common.NewAppError(common.CodeHistory, "list", err)
	}
	defer rows.Close()

	var out []entity.Opening
	for rows.Next() {
		var (
			o           entity.Opening
			id, created string
		)
		if err := rows.Scan(&id, &o.SessionID, &o.Category, &o.RawText, &o.Item, &o.Status, &created); err != nil {
			return nil, common.NewAppError(common.CodeHistory, "scan", err)
		}
		if o.ID, err = uuid.Parse(id); err != nil {
			return nil, common.NewAppError(common.CodeHistory, "parse id "+id, err)
		}
		if o.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, common.NewAppError(common.CodeHistory, "parse created_at "+created, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeHistory, "list", err)
	}
	return out, nil
}

// CountByCategory returns how many openings were logged per category.
func (s *Store) CountByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) FROM openings GROUP BY category`)
	if err != nil {
		return nil, common.NewAppError(common.CodeHistory, "count", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			n        int
		)
		if err := rows.Scan(&category, &n); err != nil {
			return nil, common.NewAppError(common.CodeHistory, "scan", err)
		}
		counts[category] = n
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError(common.CodeHistory, "count", err)
	}
	return counts, nil
}
