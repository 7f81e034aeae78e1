// Package journal mirrors the last sealed checkpoint of each client session
// into a local SQLite database. Only ciphertext and tags are stored.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
)

// Entry is one journaled checkpoint.
type Entry struct {
	Envelope   envelope.Envelope `json:"envelope"`
	Revision   int64             `json:"revision"`
	RecordedAt time.Time         `json:"recordedAt"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the journal at path and runs migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			save_session_id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			game_type TEXT NOT NULL,
			data TEXT NOT NULL,
			hash TEXT NOT NULL,
			revision INTEGER NOT NULL DEFAULT 1,
			recorded_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_recorded ON checkpoints(recorded_at DESC);`,
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Record stores env as the latest checkpoint of its session, bumping the
// revision.
func (s *Store) Record(ctx context.Context, env envelope.Envelope) error {
	if env.SaveSessionID == "" {
		return errors.New("journal: record: missing save session id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints(save_session_id, event_id, session_id, game_type, data, hash, revision, recorded_at)
		VALUES(?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(save_session_id) DO UPDATE SET
			event_id=excluded.event_id,
			session_id=excluded.session_id,
			game_type=excluded.game_type,
			data=excluded.data,
			hash=excluded.hash,
			revision=checkpoints.revision + 1,
			recorded_at=excluded.recorded_at`,
		env.SaveSessionID, env.EventID, env.SessionID, env.GameType, env.Data, env.Hash, s.now())
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", env.SaveSessionID, err)
	}
	return nil
}

// Forget removes a session's checkpoint.
func (s *Store) Forget(ctx context.Context, saveSessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE save_session_id=?`, saveSessionID); err != nil {
		return fmt.Errorf("journal: forget %s: %w", saveSessionID, err)
	}
	return nil
}

// Last returns a session's checkpoint.
func (s *Store) Last(ctx context.Context, saveSessionID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT save_session_id, event_id, session_id, game_type, data, hash, revision, recorded_at
		FROM checkpoints WHERE save_session_id=?`, saveSessionID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("journal: last %s: %w", saveSessionID, err)
	}
	return e, true, nil
}

// List returns checkpoints, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT save_session_id, event_id, session_id, game_type, data, hash, revision, recorded_at
		FROM checkpoints
		ORDER BY recorded_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("journal: list: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var e Entry
	err := r.Scan(&e.Envelope.SaveSessionID, &e.Envelope.EventID, &e.Envelope.SessionID, &e.Envelope.GameType,
		&e.Envelope.Data, &e.Envelope.Hash, &e.Revision, &e.RecordedAt)
	return e, err
}
