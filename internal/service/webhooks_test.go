package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smartats/ats-backend/internal/audit"
	"github.com/smartats/ats-backend/internal/domain"
	"github.com/smartats/ats-backend/internal/repository"
)

type recordingSender struct {
	sent []string
	err  error
}

func (s *recordingSender) SendTest(_ context.Context, config *domain.WebhookConfig) error {
	s.sent = append(s.sent, config.ID)
	return s.err
}

func newWebhooksFixture() (*WebhooksService, *repository.MemoryWebhooksRepository, *recordingSender, *audit.MemoryRecorder) {
	repo := repository.NewMemoryWebhooksRepository()
	sender := &recordingSender{}
	auditor := audit.NewMemoryRecorder()
	svc := NewWebhooksService(repo, sender, auditor, nil)
	return svc, repo, sender, auditor
}

func TestCreateWebhookRevealsSecretOnce(t *testing.T) {
	svc, _, _, auditor := newWebhooksFixture()

	created, err := svc.Create(context.Background(), "alice", WebhookInput{
		URL:    "https://example.com/hooks",
		Events: []string{"resume.parse_completed", "resume.parse_failed"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(created.Secret, "whsec_") {
		t.Fatalf("expected full secret in create response, got %q", created.Secret)
	}
	if !created.Enabled {
		t.Fatalf("new webhooks must start enabled")
	}

	fetched, err := svc.Get(context.Background(), "alice", created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Secret != "" {
		t.Fatalf("secret must not be returned after create")
	}
	if !strings.Contains(fetched.SecretHint, "****") {
		t.Fatalf("expected masked hint, got %q", fetched.SecretHint)
	}

	if entries := auditor.Entries(); len(entries) != 1 || entries[0].Module != "webhooks" {
		t.Fatalf("expected audit entry for create, got %+v", entries)
	}
}

func TestCreateWebhookValidatesInput(t *testing.T) {
	svc, _, _, _ := newWebhooksFixture()

	cases := []struct {
		name  string
		input WebhookInput
		field string
	}{
		{
			name:  "bad scheme",
			input: WebhookInput{URL: "ftp://example.com", Events: []string{"resume.uploaded"}},
			field: "url",
		},
		{
			name:  "no events",
			input: WebhookInput{URL: "https://example.com"},
			field: "events",
		},
		{
			name:  "unknown event",
			input: WebhookInput{URL: "https://example.com", Events: []string{"resume.exploded"}},
			field: "events",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), "alice", tc.input)
			var validation *ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if validation.Field != tc.field {
				t.Fatalf("expected %s flagged, got %s", tc.field, validation.Field)
			}
		})
	}
}

func TestWebhookOwnerScoping(t *testing.T) {
	svc, _, _, _ := newWebhooksFixture()

	created, err := svc.Create(context.Background(), "alice", WebhookInput{
		URL:    "https://example.com/hooks",
		Events: []string{"resume.uploaded"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(context.Background(), "bob", created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign owner must see not-found, got %v", err)
	}
	if err := svc.Delete(context.Background(), "bob", created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("foreign owner must not delete, got %v", err)
	}
	if err := svc.Delete(context.Background(), "alice", created.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestReEnableResetsFailureCount(t *testing.T) {
	svc, repo, _, _ := newWebhooksFixture()

	created, _ := svc.Create(context.Background(), "alice", WebhookInput{
		URL:    "https://example.com/hooks",
		Events: []string{"resume.uploaded"},
	})

	// Simulate the dispatcher having auto-disabled the endpoint.
	stored, _ := repo.GetWebhook(context.Background(), created.ID)
	stored.Enabled = false
	stored.FailureCount = 5
	_ = repo.UpdateWebhook(context.Background(), stored)

	view, err := svc.SetEnabled(context.Background(), "alice", created.ID, true)
	if err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !view.Enabled || view.FailureCount != 0 {
		t.Fatalf("re-enable must reset failure count, got %+v", view)
	}
}

func TestUpdateKeepsSecretAndBookkeeping(t *testing.T) {
	svc, repo, _, _ := newWebhooksFixture()

	created, _ := svc.Create(context.Background(), "alice", WebhookInput{
		URL:    "https://example.com/hooks",
		Events: []string{"resume.uploaded"},
	})
	before, _ := repo.GetWebhook(context.Background(), created.ID)
	before.FailureCount = 2
	_ = repo.UpdateWebhook(context.Background(), before)

	view, err := svc.Update(context.Background(), "alice", created.ID, WebhookInput{
		URL:         "https://example.com/v2/hooks",
		Events:      []string{"resume.parse_completed"},
		Description: "v2 endpoint",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if view.URL != "https://example.com/v2/hooks" || view.FailureCount != 2 {
		t.Fatalf("unexpected view after update: %+v", view)
	}

	after, _ := repo.GetWebhook(context.Background(), created.ID)
	if after.Secret != before.Secret {
		t.Fatalf("update must not rotate the secret")
	}
}

func TestSendTestUsesConfiguredSender(t *testing.T) {
	svc, _, sender, _ := newWebhooksFixture()

	created, _ := svc.Create(context.Background(), "alice", WebhookInput{
		URL:    "https://example.com/hooks",
		Events: []string{"resume.uploaded"},
	})

	if err := svc.SendTest(context.Background(), "alice", created.ID); err != nil {
		t.Fatalf("send test: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != created.ID {
		t.Fatalf("expected one test delivery, got %+v", sender.sent)
	}

	sender.err = errors.New("endpoint returned status 500")
	if err := svc.SendTest(context.Background(), "alice", created.ID); err == nil {
		t.Fatalf("expected sender error to surface")
	}
}
