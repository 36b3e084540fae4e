// Package convlog keeps a durable, append-only conversation history in
// Postgres. It is an audit/history surface for the gateway; the memory
// subsystem does not read from it.
package convlog

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS conversation_history (
    id           BIGSERIAL PRIMARY KEY,
    user_id      TEXT        NOT NULL,
    role         TEXT        NOT NULL,
    content      TEXT        NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS conversation_history_user_created_idx
    ON conversation_history (user_id, created_at DESC);
`

// Log is a Postgres-backed conversation history.
type Log struct {
	db *sql.DB
}

// Open opens a PostgreSQL connection using the pgx stdlib driver, verifies
// connectivity and ensures the history table exists.
func Open(ctx context.Context, dsn string) (*Log, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure conversation_history schema: %w", err)
	}
	return &Log{db: db}, nil
}

// NewWithDB wraps an existing handle; the caller owns its lifecycle.
func NewWithDB(db *sql.DB) *Log { return &Log{db: db} }

// Append records the given turns.
func (l *Log) Append(ctx context.Context, turns []model.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, t := range turns {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO conversation_history (user_id, role, content, created_at)
            VALUES ($1,$2,$3,$4)
        `, t.UserID, string(t.Role), t.Content, t.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Recent returns up to limit turns for the user, chronological oldest first.
func (l *Log) Recent(ctx context.Context, userID string, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
        SELECT user_id, role, content, created_at
        FROM conversation_history
        WHERE user_id = $1
        ORDER BY created_at DESC, id DESC
        LIMIT $2
    `, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var newestFirst []model.Turn
	for rows.Next() {
		var t model.Turn
		var role string
		if err := rows.Scan(&t.UserID, &role, &t.Content, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Role = model.Role(role)
		newestFirst = append(newestFirst, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]model.Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}

// HealthPing implements health.HealthPinger.
func (l *Log) HealthPing(ctx context.Context) error { return l.db.PingContext(ctx) }

// Close releases the underlying handle.
func (l *Log) Close() error { return l.db.Close() }
