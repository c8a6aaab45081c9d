// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vflorio/hbbtv-emu-sub005/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore persists the journal in a single SQLite file. Reads and the
// single writer share a WAL-mode pool.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (and migrates) the journal database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal store: migration failed: %w", err)
	}
	return s, nil
}

func (s *SqliteStore) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS journal (
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		at_ms INTEGER NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		action TEXT NOT NULL,
		reason TEXT,
		err_code TEXT,
		PRIMARY KEY (session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_journal_at ON journal(at_ms);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO journal (session_id, seq, at_ms, from_state, to_state, action, reason, err_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Seq, e.At.UnixMilli(), e.FromState, e.ToState, e.Action,
		nullable(e.Reason), nullable(e.ErrCode),
	)
	return err
}

func (s *SqliteStore) List(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	// The subquery takes the newest rows, the outer ORDER restores seq order.
	query := `SELECT session_id, seq, at_ms, from_state, to_state, action, reason, err_code
		FROM journal WHERE session_id = ? ORDER BY seq ASC`
	args := []any{sessionID}
	if limit > 0 {
		query = `SELECT * FROM (
			SELECT session_id, seq, at_ms, from_state, to_state, action, reason, err_code
			FROM journal WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SqliteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT session_id FROM journal ORDER BY session_id")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SqliteStore) Purge(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM journal WHERE at_ms < ?", olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var atMS int64
	var reason, errCode sql.NullString
	if err := rows.Scan(&e.SessionID, &e.Seq, &atMS, &e.FromState, &e.ToState, &e.Action, &reason, &errCode); err != nil {
		return Entry{}, err
	}
	e.At = time.UnixMilli(atMS).UTC()
	e.Reason = reason.String
	e.ErrCode = errCode.String
	return e, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Store = (*SqliteStore)(nil)
