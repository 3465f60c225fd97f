// ABOUTME: SQLite-backed persistence for the kill audit trail
// ABOUTME: Schema is created on open; WAL mode for concurrent readers

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists kill audit entries.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a store at the given path, creating parent
// directories and the schema as needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the tables if they don't exist.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS kill_audits (
			id TEXT PRIMARY KEY,
			actor TEXT NOT NULL,
			target TEXT NOT NULL,
			target_type TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			success INTEGER NOT NULL,
			message TEXT NOT NULL,
			cascade_abort_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_kill_audits_created
			ON kill_audits(created_at);

		CREATE INDEX IF NOT EXISTS idx_kill_audits_actor
			ON kill_audits(actor, created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// AppendKillAudit appends a new entry to the kill audit log.
// Generates ID and CreatedAt if not set.
func (s *SQLiteStore) AppendKillAudit(ctx context.Context, e *KillAudit) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kill_audits (id, actor, target, target_type, reason, success, message, cascade_abort_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Actor, e.Target, e.TargetType, e.Reason, boolToInt(e.Success), e.Message, e.CascadeAbortCount, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting kill audit: %w", err)
	}
	return nil
}

// ListKillAudits returns entries matching the filter, newest first.
func (s *SQLiteStore) ListKillAudits(ctx context.Context, filter KillAuditFilter) ([]*KillAudit, error) {
	query := `
		SELECT id, actor, target, target_type, reason, success, message, cascade_abort_count, created_at
		FROM kill_audits WHERE 1=1`
	var args []any

	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.Since)
	}
	if filter.Actor != nil {
		query += " AND actor = ?"
		args = append(args, *filter.Actor)
	}
	if filter.SuccessOnly {
		query += " AND success = 1"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying kill audits: %w", err)
	}
	defer rows.Close()

	var entries []*KillAudit
	for rows.Next() {
		var e KillAudit
		var success int
		if err := rows.Scan(&e.ID, &e.Actor, &e.Target, &e.TargetType, &e.Reason, &success, &e.Message, &e.CascadeAbortCount, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning kill audit: %w", err)
		}
		e.Success = success != 0
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
