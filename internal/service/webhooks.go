package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/smartats/ats-backend/internal/audit"
	"github.com/smartats/ats-backend/internal/domain"
	"github.com/smartats/ats-backend/internal/repository"
)

// TestSender performs a single diagnostic delivery to a webhook endpoint.
type TestSender interface {
	SendTest(ctx context.Context, config *domain.WebhookConfig) error
}

// WebhookInput carries the caller-editable webhook fields.
type WebhookInput struct {
	URL         string   `json:"url"`
	Events      []string `json:"events"`
	Description string   `json:"description"`
}

// WebhookView is the read model returned to API callers. The signing
// secret is revealed in full only by Create; afterwards only a hint.
type WebhookView struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Events        []string   `json:"events"`
	Secret        string     `json:"secret,omitempty"`
	SecretHint    string     `json:"secret_hint"`
	Description   string     `json:"description,omitempty"`
	Enabled       bool       `json:"enabled"`
	FailureCount  int        `json:"failure_count"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt *time.Time `json:"last_failure_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// WebhooksService manages webhook subscriptions for an owner.
type WebhooksService struct {
	repo    repository.WebhooksRepository
	sender  TestSender
	auditor audit.Recorder
	logger  *log.Logger
}

func NewWebhooksService(
	repo repository.WebhooksRepository,
	sender TestSender,
	auditor audit.Recorder,
	logger *log.Logger,
) *WebhooksService {
	return &WebhooksService{
		repo:    repo,
		sender:  sender,
		auditor: auditor,
		logger:  logger,
	}
}

// Create registers a new webhook. The response is the only place the full
// signing secret is ever returned.
func (s *WebhooksService) Create(ctx context.Context, ownerID string, input WebhookInput) (*WebhookView, error) {
	events, err := validateWebhookInput(input)
	if err != nil {
		return nil, err
	}

	secret, err := newSecret()
	if err != nil {
		return nil, fmt.Errorf("generate webhook secret: %w", err)
	}

	now := time.Now().UTC()
	config := &domain.WebhookConfig{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		URL:         input.URL,
		Events:      events,
		Secret:      secret,
		Description: input.Description,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateWebhook(ctx, config); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	s.record(ctx, ownerID, "create", fmt.Sprintf("webhook %s registered for %s", config.ID, config.URL))

	view := toView(config)
	view.Secret = secret
	return view, nil
}

func (s *WebhooksService) Get(ctx context.Context, ownerID, webhookID string) (*WebhookView, error) {
	config, err := s.ownedWebhook(ctx, ownerID, webhookID)
	if err != nil {
		return nil, err
	}
	return toView(config), nil
}

func (s *WebhooksService) List(ctx context.Context, ownerID string) ([]*WebhookView, error) {
	configs, err := s.repo.ListWebhooksByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	views := make([]*WebhookView, 0, len(configs))
	for _, config := range configs {
		views = append(views, toView(config))
	}
	return views, nil
}

// Update replaces the caller-editable fields. Secret and delivery
// bookkeeping are untouched.
func (s *WebhooksService) Update(ctx context.Context, ownerID, webhookID string, input WebhookInput) (*WebhookView, error) {
	events, err := validateWebhookInput(input)
	if err != nil {
		return nil, err
	}

	config, err := s.ownedWebhook(ctx, ownerID, webhookID)
	if err != nil {
		return nil, err
	}

	config.URL = input.URL
	config.Events = events
	config.Description = input.Description
	config.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateWebhook(ctx, config); err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}

	s.record(ctx, ownerID, "update", fmt.Sprintf("webhook %s updated", webhookID))
	return toView(config), nil
}

// SetEnabled flips delivery on or off. Re-enabling clears the consecutive
// failure counter so the endpoint gets a fresh auto-disable budget.
func (s *WebhooksService) SetEnabled(ctx context.Context, ownerID, webhookID string, enabled bool) (*WebhookView, error) {
	config, err := s.ownedWebhook(ctx, ownerID, webhookID)
	if err != nil {
		return nil, err
	}

	config.Enabled = enabled
	if enabled {
		config.FailureCount = 0
	}
	config.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateWebhook(ctx, config); err != nil {
		return nil, fmt.Errorf("update webhook: %w", err)
	}

	action := "disable"
	if enabled {
		action = "enable"
	}
	s.record(ctx, ownerID, action, fmt.Sprintf("webhook %s %sd", webhookID, action))
	return toView(config), nil
}

func (s *WebhooksService) Delete(ctx context.Context, ownerID, webhookID string) error {
	if err := s.repo.DeleteWebhook(ctx, ownerID, webhookID); err != nil {
		return err
	}
	s.record(ctx, ownerID, "delete", fmt.Sprintf("webhook %s deleted", webhookID))
	return nil
}

// SendTest fires one signed test delivery at the endpoint without touching
// failure bookkeeping or delivery logs.
func (s *WebhooksService) SendTest(ctx context.Context, ownerID, webhookID string) error {
	config, err := s.ownedWebhook(ctx, ownerID, webhookID)
	if err != nil {
		return err
	}
	if s.sender == nil {
		return fmt.Errorf("test delivery is not available")
	}
	return s.sender.SendTest(ctx, config)
}

func (s *WebhooksService) ListDeliveryLogs(ctx context.Context, ownerID, webhookID string, limit int) ([]*domain.DeliveryLog, error) {
	if _, err := s.ownedWebhook(ctx, ownerID, webhookID); err != nil {
		return nil, err
	}
	return s.repo.ListDeliveryLogs(ctx, webhookID, limit)
}

// ownedWebhook loads the webhook and enforces owner scoping. Foreign
// webhooks answer ErrNotFound, never a permission hint.
func (s *WebhooksService) ownedWebhook(ctx context.Context, ownerID, webhookID string) (*domain.WebhookConfig, error) {
	config, err := s.repo.GetWebhook(ctx, webhookID)
	if err != nil {
		return nil, err
	}
	if config.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return config, nil
}

func (s *WebhooksService) record(ctx context.Context, ownerID, action, description string) {
	if s.auditor != nil {
		s.auditor.Record(ctx, audit.Operation{
			Module:      "webhooks",
			Action:      action,
			Description: description,
			ActorID:     ownerID,
		})
	}
}

func validateWebhookInput(input WebhookInput) ([]domain.EventType, error) {
	parsed, err := url.Parse(input.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, invalid("url", "must be a valid http or https URL")
	}
	if len(input.Events) == 0 {
		return nil, invalid("events", "at least one event type is required")
	}

	events := make([]domain.EventType, 0, len(input.Events))
	for _, value := range input.Events {
		if !domain.ValidEventType(value) {
			return nil, invalid("events", fmt.Sprintf("unknown event type %q", value))
		}
		events = append(events, domain.EventType(value))
	}
	return events, nil
}

func newSecret() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(raw), nil
}

func toView(config *domain.WebhookConfig) *WebhookView {
	events := make([]string, 0, len(config.Events))
	for _, event := range config.Events {
		events = append(events, string(event))
	}
	return &WebhookView{
		ID:            config.ID,
		URL:           config.URL,
		Events:        events,
		SecretHint:    config.SecretHint(),
		Description:   config.Description,
		Enabled:       config.Enabled,
		FailureCount:  config.FailureCount,
		LastSuccessAt: config.LastSuccessAt,
		LastFailureAt: config.LastFailureAt,
		CreatedAt:     config.CreatedAt,
		UpdatedAt:     config.UpdatedAt,
	}
}
