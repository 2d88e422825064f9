package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smartats/ats-backend/internal/domain"
)

func TestMemoryWebhooksRepositoryOwnerScoping(t *testing.T) {
	repo := NewMemoryWebhooksRepository()
	ctx := context.Background()

	_ = repo.CreateWebhook(ctx, &domain.WebhookConfig{
		ID: "w1", OwnerID: "alice", URL: "https://a.example/hook",
		Events: []domain.EventType{domain.EventResumeParseCompleted}, Enabled: true,
		CreatedAt: time.Now().UTC(),
	})
	_ = repo.CreateWebhook(ctx, &domain.WebhookConfig{
		ID: "w2", OwnerID: "bob", URL: "https://b.example/hook",
		Events: []domain.EventType{domain.EventResumeParseCompleted}, Enabled: true,
		CreatedAt: time.Now().UTC(),
	})

	aliceHooks, err := repo.ListWebhooksByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(aliceHooks) != 1 || aliceHooks[0].ID != "w1" {
		t.Fatalf("expected only alice's webhook, got %v", aliceHooks)
	}

	if err := repo.DeleteWebhook(ctx, "alice", "w2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cross-owner delete to fail, got %v", err)
	}
	if err := repo.DeleteWebhook(ctx, "bob", "w2"); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestMemoryWebhooksRepositoryEnabledEventFilter(t *testing.T) {
	repo := NewMemoryWebhooksRepository()
	ctx := context.Background()

	_ = repo.CreateWebhook(ctx, &domain.WebhookConfig{
		ID: "subscribed", OwnerID: "alice",
		Events:  []domain.EventType{domain.EventResumeParseCompleted},
		Enabled: true,
	})
	_ = repo.CreateWebhook(ctx, &domain.WebhookConfig{
		ID: "disabled", OwnerID: "alice",
		Events:  []domain.EventType{domain.EventResumeParseCompleted},
		Enabled: false,
	})
	_ = repo.CreateWebhook(ctx, &domain.WebhookConfig{
		ID: "other-event", OwnerID: "alice",
		Events:  []domain.EventType{domain.EventInterviewScheduled},
		Enabled: true,
	})

	configs, err := repo.ListEnabledWebhooksForEvent(ctx, domain.EventResumeParseCompleted)
	if err != nil {
		t.Fatalf("list enabled: %v", err)
	}
	if len(configs) != 1 || configs[0].ID != "subscribed" {
		t.Fatalf("expected only the enabled subscribed webhook, got %v", configs)
	}
}

func TestMemoryWebhooksRepositoryDeliveryLogsAreAppendOnly(t *testing.T) {
	repo := NewMemoryWebhooksRepository()
	ctx := context.Background()

	for attempt := 1; attempt <= 3; attempt++ {
		_ = repo.AppendDeliveryLog(ctx, &domain.DeliveryLog{
			ID:        domain.NewEvent(domain.EventResumeParseCompleted, nil).ID,
			WebhookID: "w1",
			Attempt:   attempt,
			Outcome:   domain.DeliveryRetrying,
			CreatedAt: time.Now().UTC(),
		})
	}

	entries, err := repo.ListDeliveryLogs(ctx, "w1", 10)
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 log entries, got %d", len(entries))
	}
	// Most recent first.
	if entries[0].Attempt != 3 {
		t.Fatalf("expected newest entry first, got attempt %d", entries[0].Attempt)
	}
}

func TestMemoryWebhooksRepositoryReturnsClones(t *testing.T) {
	repo := NewMemoryWebhooksRepository()
	ctx := context.Background()

	_ = repo.CreateWebhook(ctx, &domain.WebhookConfig{
		ID: "w1", OwnerID: "alice",
		Events:  []domain.EventType{domain.EventResumeParseCompleted},
		Enabled: true,
	})

	first, _ := repo.GetWebhook(ctx, "w1")
	first.Events[0] = domain.EventInterviewCancelled
	first.Enabled = false

	second, _ := repo.GetWebhook(ctx, "w1")
	if second.Events[0] != domain.EventResumeParseCompleted || !second.Enabled {
		t.Fatalf("repository state leaked through returned pointer: %+v", second)
	}
}
