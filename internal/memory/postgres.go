package memory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversational memory in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_messages (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_messages_user_seq ON memory_messages (user_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveMessage(ctx context.Context, msg Message) (Message, error) {
	msg, err := prepare(msg)
	if err != nil {
		return Message{}, err
	}

	err = s.pool.QueryRow(ctx,
		`INSERT INTO memory_messages (id, user_id, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING seq`,
		msg.ID,
		msg.UserID,
		string(msg.Role),
		msg.Content,
		msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return Message{}, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) RecentMessages(ctx context.Context, userID string, limit int, roles ...Role) ([]Message, error) {
	limit = normalizeLimit(limit)

	var (
		rows pgx.Rows
		err  error
	)
	if len(roles) == 0 {
		rows, err = s.pool.Query(ctx,
			`SELECT id, seq, user_id, role, content, created_at
			 FROM memory_messages WHERE user_id=$1 ORDER BY seq DESC LIMIT $2`,
			userID, limit,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, seq, user_id, role, content, created_at
			 FROM memory_messages WHERE user_id=$1 AND role = ANY($2) ORDER BY seq DESC LIMIT $3`,
			userID, roleStrings(roles), limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}

	items, err := collectPgRows(rows, limit)
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order for prompt coherence.
	reverse(items)
	return items, nil
}

func (s *PostgresStore) Messages(ctx context.Context, userID string, role Role) ([]Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, seq, user_id, role, content, created_at
		 FROM memory_messages WHERE user_id=$1 AND role=$2 ORDER BY seq ASC`,
		userID, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return collectPgRows(rows, 0)
}

func collectPgRows(rows pgx.Rows, capacity int) ([]Message, error) {
	defer rows.Close()
	items := make([]Message, 0, capacity)
	for rows.Next() {
		var (
			m    Message
			role string
		)
		if err := rows.Scan(&m.ID, &m.Seq, &m.UserID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Role = Role(role)
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Backend() string { return "postgres" }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
