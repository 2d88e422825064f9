package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smartats/ats-backend/internal/domain"
)

type PostgresWebhooksRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresWebhooksRepository(ctx context.Context, databaseURL string) (*PostgresWebhooksRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresWebhooksRepository{pool: pool}, nil
}

func (r *PostgresWebhooksRepository) Close() {
	r.pool.Close()
}

func (r *PostgresWebhooksRepository) CreateWebhook(ctx context.Context, config *domain.WebhookConfig) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_configs (
			id,
			owner_id,
			url,
			events,
			secret,
			description,
			enabled,
			failure_count,
			last_success_at,
			last_failure_at,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		config.ID,
		config.OwnerID,
		config.URL,
		encodeEvents(config.Events),
		config.Secret,
		config.Description,
		config.Enabled,
		config.FailureCount,
		config.LastSuccessAt,
		config.LastFailureAt,
		config.CreatedAt,
		config.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook: %w", err)
	}
	return nil
}

func (r *PostgresWebhooksRepository) GetWebhook(ctx context.Context, webhookID string) (*domain.WebhookConfig, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, url, events, secret, description, enabled,
			failure_count, last_success_at, last_failure_at, created_at, updated_at
		FROM webhook_configs
		WHERE id = $1
	`, webhookID)

	config, err := scanWebhook(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query webhook: %w", err)
	}
	return config, nil
}

func (r *PostgresWebhooksRepository) ListWebhooksByOwner(
	ctx context.Context,
	ownerID string,
) ([]*domain.WebhookConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, url, events, secret, description, enabled,
			failure_count, last_success_at, last_failure_at, created_at, updated_at
		FROM webhook_configs
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	defer rows.Close()

	return collectWebhooks(rows)
}

func (r *PostgresWebhooksRepository) ListEnabledWebhooksForEvent(
	ctx context.Context,
	eventType domain.EventType,
) ([]*domain.WebhookConfig, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, url, events, secret, description, enabled,
			failure_count, last_success_at, last_failure_at, created_at, updated_at
		FROM webhook_configs
		WHERE enabled = TRUE AND events LIKE '%' || $1 || '%'
		ORDER BY created_at ASC
	`, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("list enabled webhooks: %w", err)
	}
	defer rows.Close()

	configs, err := collectWebhooks(rows)
	if err != nil {
		return nil, err
	}

	// The LIKE filter is a coarse prefilter; confirm the exact subscription.
	filtered := configs[:0]
	for _, config := range configs {
		if config.SubscribedTo(eventType) {
			filtered = append(filtered, config)
		}
	}
	return filtered, nil
}

func (r *PostgresWebhooksRepository) UpdateWebhook(ctx context.Context, config *domain.WebhookConfig) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE webhook_configs
		SET url = $2,
			events = $3,
			description = $4,
			enabled = $5,
			failure_count = $6,
			last_success_at = $7,
			last_failure_at = $8,
			updated_at = $9
		WHERE id = $1
	`,
		config.ID,
		config.URL,
		encodeEvents(config.Events),
		config.Description,
		config.Enabled,
		config.FailureCount,
		config.LastSuccessAt,
		config.LastFailureAt,
		config.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update webhook: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresWebhooksRepository) DeleteWebhook(ctx context.Context, ownerID, webhookID string) error {
	command, err := r.pool.Exec(ctx, `
		DELETE FROM webhook_configs WHERE id = $1 AND owner_id = $2
	`, webhookID, ownerID)
	if err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresWebhooksRepository) AppendDeliveryLog(ctx context.Context, entry *domain.DeliveryLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO webhook_delivery_logs (
			id,
			webhook_id,
			event_id,
			event_type,
			payload,
			outcome,
			attempt,
			response_status,
			response_body,
			error_message,
			duration_ms,
			created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		entry.ID,
		entry.WebhookID,
		entry.EventID,
		string(entry.EventType),
		entry.Payload,
		string(entry.Outcome),
		entry.Attempt,
		entry.ResponseStatus,
		entry.ResponseBody,
		entry.ErrorMessage,
		entry.Duration.Milliseconds(),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery log: %w", err)
	}
	return nil
}

func (r *PostgresWebhooksRepository) ListDeliveryLogs(
	ctx context.Context,
	webhookID string,
	limit int,
) ([]*domain.DeliveryLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, webhook_id, event_id, event_type, payload, outcome, attempt,
			response_status, response_body, error_message, duration_ms, created_at
		FROM webhook_delivery_logs
		WHERE webhook_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery logs: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.DeliveryLog, 0)
	for rows.Next() {
		var (
			entry      domain.DeliveryLog
			eventType  string
			outcome    string
			durationMS int64
		)
		err := rows.Scan(
			&entry.ID,
			&entry.WebhookID,
			&entry.EventID,
			&eventType,
			&entry.Payload,
			&outcome,
			&entry.Attempt,
			&entry.ResponseStatus,
			&entry.ResponseBody,
			&entry.ErrorMessage,
			&durationMS,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery log: %w", err)
		}
		entry.EventType = domain.EventType(eventType)
		entry.Outcome = domain.DeliveryOutcome(outcome)
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWebhook(row rowScanner) (*domain.WebhookConfig, error) {
	var (
		config domain.WebhookConfig
		events string
	)
	err := row.Scan(
		&config.ID,
		&config.OwnerID,
		&config.URL,
		&events,
		&config.Secret,
		&config.Description,
		&config.Enabled,
		&config.FailureCount,
		&config.LastSuccessAt,
		&config.LastFailureAt,
		&config.CreatedAt,
		&config.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	config.Events = decodeEvents(events)
	return &config, nil
}

func collectWebhooks(rows pgx.Rows) ([]*domain.WebhookConfig, error) {
	configs := make([]*domain.WebhookConfig, 0)
	for rows.Next() {
		config, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		configs = append(configs, config)
	}
	return configs, rows.Err()
}

func encodeEvents(events []domain.EventType) string {
	values := make([]string, 0, len(events))
	for _, event := range events {
		values = append(values, string(event))
	}
	return strings.Join(values, ",")
}

func decodeEvents(encoded string) []domain.EventType {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	parts := strings.Split(encoded, ",")
	events := make([]domain.EventType, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			events = append(events, domain.EventType(trimmed))
		}
	}
	return events
}
