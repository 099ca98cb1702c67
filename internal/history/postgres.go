package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversation transcripts in PostgreSQL.
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
		`CREATE TABLE IF NOT EXISTS agent_turns (
			id TEXT PRIMARY KEY,
			agent_type TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_agent_turns_agent_created ON agent_turns (agent_type, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveTurns(ctx context.Context, agentType string, turns []Turn) error {
	for _, turn := range turns {
		ts := turn.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO agent_turns (id, agent_type, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(),
			agentType,
			string(turn.Role),
			turn.Content,
			ts,
		)
		if err != nil {
			return fmt.Errorf("save turn: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) (map[string][]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT agent_type, role, content, created_at
		 FROM agent_turns ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Turn)
	for rows.Next() {
		var (
			agentType string
			role      string
			content   string
			createdAt time.Time
		)
		if err := rows.Scan(&agentType, &role, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		out[agentType] = append(out[agentType], Turn{
			Role:      Role(role),
			Content:   content,
			Timestamp: createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load turns: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteAgent(ctx context.Context, agentType string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM agent_turns WHERE agent_type=$1`, agentType); err != nil {
		return fmt.Errorf("delete agent turns: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM agent_turns`); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
