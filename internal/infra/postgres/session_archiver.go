package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"live-quiz-service/internal/domain"
)

// SessionArchiver writes completed session snapshots to Postgres so
// historical leaderboards outlive the Redis TTL.
type SessionArchiver struct {
	pool *pgxpool.Pool
}

func NewSessionArchiver(pool *pgxpool.Pool) *SessionArchiver {
	return &SessionArchiver{pool: pool}
}

func (a *SessionArchiver) ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO sessions (id, quiz_id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, archived_at=now()`,
		snap.ID, snap.QuizID, raw)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}
