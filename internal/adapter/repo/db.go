// Package repo is the SQLite persistence layer: chat sessions and
// messages, the confirmation queue, and the tool example corpus used
// for retrieval.
package repo

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/storechat/admin-agent/internal/domain"
)

// Open opens (or creates) the SQLite database at path, applies pragmas,
// and runs migrations.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite write safety: single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma: %w", err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// migrate creates the schema if it doesn't exist.
func migrate(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS chat_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			title      TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_user ON chat_sessions(user_id, updated_at DESC);

		CREATE TABLE IF NOT EXISTS chat_messages (
			id            TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL REFERENCES chat_sessions(id),
			role          TEXT NOT NULL,
			content       TEXT NOT NULL DEFAULT '',
			tool_calls    TEXT NOT NULL DEFAULT '',
			tool_call_id  TEXT NOT NULL DEFAULT '',
			is_error      INTEGER NOT NULL DEFAULT 0,
			stop_reason   TEXT NOT NULL DEFAULT '',
			input_tokens  INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			created_at    TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_session ON chat_messages(session_id, created_at);

		CREATE TABLE IF NOT EXISTS pending_actions (
			id             TEXT PRIMARY KEY,
			session_id     TEXT NOT NULL,
			message_id     TEXT NOT NULL DEFAULT '',
			tool_call_id   TEXT NOT NULL DEFAULT '',
			requester_id   TEXT NOT NULL,
			requester_name TEXT NOT NULL DEFAULT '',
			tool_name      TEXT NOT NULL,
			tool_input     TEXT NOT NULL,
			status         TEXT NOT NULL DEFAULT 'pending',
			notify_channel TEXT NOT NULL DEFAULT '',
			notify_ts      TEXT NOT NULL DEFAULT '',
			result         TEXT NOT NULL DEFAULT '',
			error_message  TEXT NOT NULL DEFAULT '',
			resolved_by    TEXT NOT NULL DEFAULT '',
			created_at     TEXT NOT NULL,
			resolved_at    TEXT,
			expires_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_actions_status ON pending_actions(status, expires_at);

		CREATE TABLE IF NOT EXISTS tool_examples (
			id            TEXT PRIMARY KEY,
			tool_name     TEXT NOT NULL,
			domain        TEXT NOT NULL,
			example_query TEXT NOT NULL,
			embedding     BLOB NOT NULL,
			is_learned    INTEGER NOT NULL DEFAULT 0,
			usage_count   INTEGER NOT NULL DEFAULT 1,
			created_at    TEXT NOT NULL,
			UNIQUE(tool_name, example_query)
		);
		CREATE INDEX IF NOT EXISTS idx_examples_domain ON tool_examples(domain);
	`
	_, err := db.Exec(schema)
	return err
}

// NewID returns a sortable unique identifier.
func NewID() string {
	return ulid.Make().String()
}

// Timestamps are stored as RFC3339 UTC text; fixed-width, so string
// comparison in SQL matches time order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func wrapDB(op string, err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return domain.WrapOp(op, domain.ErrNotFound)
	}
	return domain.WrapOp(op, err)
}
