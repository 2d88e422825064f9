package audit

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder persists audit entries to the audit_logs table. Insert
// failures are logged and swallowed: the audit trail never fails the
// operation it describes.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgresRecorder(ctx context.Context, databaseURL string, logger *log.Logger) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresRecorder{pool: pool, logger: logger}, nil
}

func (r *PostgresRecorder) Close() {
	r.pool.Close()
}

func (r *PostgresRecorder) Record(ctx context.Context, op Operation) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, module, action, description, actor_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`,
		uuid.NewString(),
		op.Module,
		op.Action,
		op.Description,
		op.ActorID,
		time.Now().UTC(),
	)
	if err != nil && r.logger != nil {
		r.logger.Printf("audit insert failed module=%s action=%s err=%v", op.Module, op.Action, err)
	}
}
