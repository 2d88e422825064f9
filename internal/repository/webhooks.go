package repository

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/smartats/ats-backend/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// WebhooksRepository abstracts webhook configuration and delivery-log
// persistence. Delivery logs are append-only.
type WebhooksRepository interface {
	CreateWebhook(ctx context.Context, config *domain.WebhookConfig) error
	GetWebhook(ctx context.Context, webhookID string) (*domain.WebhookConfig, error)
	ListWebhooksByOwner(ctx context.Context, ownerID string) ([]*domain.WebhookConfig, error)
	ListEnabledWebhooksForEvent(ctx context.Context, eventType domain.EventType) ([]*domain.WebhookConfig, error)
	UpdateWebhook(ctx context.Context, config *domain.WebhookConfig) error
	DeleteWebhook(ctx context.Context, ownerID, webhookID string) error

	AppendDeliveryLog(ctx context.Context, entry *domain.DeliveryLog) error
	ListDeliveryLogs(ctx context.Context, webhookID string, limit int) ([]*domain.DeliveryLog, error)
}

// MemoryWebhooksRepository stores webhook state in memory for local
// development.
type MemoryWebhooksRepository struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.WebhookConfig
	logs     []*domain.DeliveryLog
}

func NewMemoryWebhooksRepository() *MemoryWebhooksRepository {
	return &MemoryWebhooksRepository{
		webhooks: make(map[string]*domain.WebhookConfig),
		logs:     make([]*domain.DeliveryLog, 0),
	}
}

func (r *MemoryWebhooksRepository) CreateWebhook(_ context.Context, config *domain.WebhookConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhooks[config.ID] = cloneWebhook(config)
	return nil
}

func (r *MemoryWebhooksRepository) GetWebhook(_ context.Context, webhookID string) (*domain.WebhookConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.webhooks[webhookID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneWebhook(config), nil
}

func (r *MemoryWebhooksRepository) ListWebhooksByOwner(_ context.Context, ownerID string) ([]*domain.WebhookConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]*domain.WebhookConfig, 0)
	for _, config := range r.webhooks {
		if config.OwnerID == ownerID {
			configs = append(configs, cloneWebhook(config))
		}
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.After(configs[j].CreatedAt)
	})
	return configs, nil
}

func (r *MemoryWebhooksRepository) ListEnabledWebhooksForEvent(
	_ context.Context,
	eventType domain.EventType,
) ([]*domain.WebhookConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	configs := make([]*domain.WebhookConfig, 0)
	for _, config := range r.webhooks {
		if config.Enabled && config.SubscribedTo(eventType) {
			configs = append(configs, cloneWebhook(config))
		}
	}
	sort.Slice(configs, func(i, j int) bool {
		return configs[i].CreatedAt.Before(configs[j].CreatedAt)
	})
	return configs, nil
}

func (r *MemoryWebhooksRepository) UpdateWebhook(_ context.Context, config *domain.WebhookConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.webhooks[config.ID]; !ok {
		return ErrNotFound
	}
	r.webhooks[config.ID] = cloneWebhook(config)
	return nil
}

func (r *MemoryWebhooksRepository) DeleteWebhook(_ context.Context, ownerID, webhookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	config, ok := r.webhooks[webhookID]
	if !ok || config.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(r.webhooks, webhookID)
	return nil
}

func (r *MemoryWebhooksRepository) AppendDeliveryLog(_ context.Context, entry *domain.DeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *entry
	clone.Payload = append([]byte(nil), entry.Payload...)
	r.logs = append(r.logs, &clone)
	return nil
}

func (r *MemoryWebhooksRepository) ListDeliveryLogs(
	_ context.Context,
	webhookID string,
	limit int,
) ([]*domain.DeliveryLog, error) {
	if limit <= 0 {
		limit = 50
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*domain.DeliveryLog, 0)
	for i := len(r.logs) - 1; i >= 0 && len(entries) < limit; i-- {
		if r.logs[i].WebhookID == webhookID {
			clone := *r.logs[i]
			clone.Payload = append([]byte(nil), r.logs[i].Payload...)
			entries = append(entries, &clone)
		}
	}
	return entries, nil
}

func cloneWebhook(config *domain.WebhookConfig) *domain.WebhookConfig {
	if config == nil {
		return nil
	}
	clone := *config
	clone.Events = append([]domain.EventType(nil), config.Events...)
	if config.LastSuccessAt != nil {
		value := *config.LastSuccessAt
		clone.LastSuccessAt = &value
	}
	if config.LastFailureAt != nil {
		value := *config.LastFailureAt
		clone.LastFailureAt = &value
	}
	return &clone
}
