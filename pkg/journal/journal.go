// Package journal records every mutation the background evaluator applies or
// skips, so a session's plan history can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"interviewer/pkg/logx"
)

// Results recorded for an operation.
const (
	ResultApplied = "applied"
	ResultSkipped = "skipped"
)

// CurrentSchemaVersion is bumped whenever schemaStatements changes.
const CurrentSchemaVersion = 1

// Entry is one journaled mutation.
type Entry struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	PassID     string    `json:"pass_id"` // groups the operations of one evaluation pass
	Tool       string    `json:"tool"`
	Target     string    `json:"target,omitempty"` // item id the operation addressed
	Result     string    `json:"result"`
	Reason     string    `json:"reason,omitempty"`
	Arguments  string    `json:"arguments,omitempty"`
	Provider   string    `json:"provider,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Journal is a SQLite-backed mutation log.
type Journal struct {
	db     *sql.DB
	logger *logx.Logger
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mutations (
		id          TEXT PRIMARY KEY,
		session_key TEXT NOT NULL,
		pass_id     TEXT NOT NULL,
		tool        TEXT NOT NULL,
		target      TEXT NOT NULL DEFAULT '',
		result      TEXT NOT NULL CHECK (result IN ('applied', 'skipped')),
		reason      TEXT NOT NULL DEFAULT '',
		arguments   TEXT NOT NULL DEFAULT '',
		provider    TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mutations_session ON mutations(session_key, created_at)`,
}

// Open opens (creating if needed) the journal at path. An empty path keeps the
// journal in memory for the life of the process.
func Open(path string) (*Journal, error) {
	dsn := "file::memory:"
	if path != "" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, logx.Wrap(err, "failed to open journal")
	}
	// Single writer; also keeps an in-memory database alive on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to ping journal")
	}
	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to initialize journal schema")
	}

	j := &Journal{db: db, logger: logx.NewLogger("journal")}
	if path == "" {
		j.logger.Info("journal initialized in memory")
	} else {
		j.logger.Info("journal initialized: %s", path)
	}
	return j, nil
}

func initializeSchema(db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, CurrentSchemaVersion)
		return err
	case err != nil:
		return err
	case version > CurrentSchemaVersion:
		return logx.Errorf("journal schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}

// Record stores entries in one transaction, filling in missing ids and timestamps.
func (j *Journal) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin journal transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO mutations
		(id, session_key, pass_id, tool, target, result, reason, arguments, provider, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare journal insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.SessionKey, e.PassID, e.Tool, e.Target,
			e.Result, e.Reason, e.Arguments, e.Provider, e.CreatedAt.UnixNano()); err != nil {
			return fmt.Errorf("failed to insert journal entry for %s: %w", e.Tool, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit journal entries: %w", err)
	}
	logx.Debug(logx.WithSessionKey(ctx, entries[0].SessionKey), "journal", "recorded %d entries", len(entries))
	return nil
}

// ListBySession returns a session's entries oldest first.
func (j *Journal) ListBySession(ctx context.Context, sessionKey string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id, session_key, pass_id, tool, target, result,
		reason, arguments, provider, created_at
		FROM mutations WHERE session_key = ? ORDER BY created_at, rowid`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &e.SessionKey, &e.PassID, &e.Tool, &e.Target, &e.Result,
			&e.Reason, &e.Arguments, &e.Provider, &created); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries for a session and result ("" for all results).
func (j *Journal) Count(ctx context.Context, sessionKey, result string) (int, error) {
	query := `SELECT COUNT(*) FROM mutations WHERE session_key = ?`
	args := []any{sessionKey}
	if result != "" {
		query += ` AND result = ?`
		args = append(args, result)
	}
	var n int
	if err := j.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}
