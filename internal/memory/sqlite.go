package memory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists conversational memory in a local SQLite database.
// AUTOINCREMENT keeps seq monotonic even after rows are deleted by hand.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens dsn with the pure-Go sqlite driver and migrates it.
func OpenSQLiteStore(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an already opened database.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS memory_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_messages_user_seq ON memory_messages (user_id, seq);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	msg, err := prepare(msg)
	if err != nil {
		return Message{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memory_messages (id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, msg.UserID, string(msg.Role), msg.Content, msg.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return Message{}, fmt.Errorf("save message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("read message seq: %w", err)
	}
	msg.Seq = seq
	return msg, nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, userID string, limit int, roles ...Role) ([]Message, error) {
	limit = normalizeLimit(limit)

	query := `SELECT id, seq, user_id, role, content, created_at FROM memory_messages WHERE user_id = ?`
	args := []any{userID}
	if len(roles) > 0 {
		query += ` AND role IN (?` + strings.Repeat(", ?", len(roles)-1) + `)`
		for _, r := range roles {
			args = append(args, string(r))
		}
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	items, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	reverse(items)
	return items, nil
}

func (s *SQLiteStore) Messages(ctx context.Context, userID string, role Role) ([]Message, error) {
	items, err := s.query(ctx,
		`SELECT id, seq, user_id, role, content, created_at FROM memory_messages WHERE user_id = ? AND role = ? ORDER BY seq ASC`,
		userID, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return items, nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []Message
	for rows.Next() {
		var (
			m       Message
			role    string
			created string
		)
		if err := rows.Scan(&m.ID, &m.Seq, &m.UserID, &role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.Role = Role(role)
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.CreatedAt = ts
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Backend() string { return "sqlite" }

func (s *SQLiteStore) Close() error { return s.db.Close() }
