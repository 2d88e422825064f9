package domain

import "time"

// WebhookConfig is a user-configured HTTP callback subscribed to one or
// more event types. FailureCount/Enabled/timestamps are mutated only by the
// dispatcher; URL/Events/Enabled by the owning user.
type WebhookConfig struct {
	ID            string
	OwnerID       string
	URL           string
	Events        []EventType
	Secret        string
	Description   string
	Enabled       bool
	FailureCount  int
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (c WebhookConfig) SubscribedTo(eventType EventType) bool {
	for _, subscribed := range c.Events {
		if subscribed == eventType {
			return true
		}
	}
	return false
}

// SecretHint renders the signing secret as a short reveal-safe hint.
func (c WebhookConfig) SecretHint() string {
	if len(c.Secret) <= 8 {
		return "****"
	}
	return c.Secret[:4] + "****" + c.Secret[len(c.Secret)-4:]
}

type DeliveryOutcome string

const (
	DeliverySuccess  DeliveryOutcome = "SUCCESS"
	DeliveryFailed   DeliveryOutcome = "FAILED"
	DeliveryRetrying DeliveryOutcome = "RETRYING"
)

// DeliveryLog records one webhook delivery attempt. Append-only.
type DeliveryLog struct {
	ID             string
	WebhookID      string
	EventID        string
	EventType      EventType
	Payload        []byte
	Outcome        DeliveryOutcome
	Attempt        int
	ResponseStatus int
	ResponseBody   string
	ErrorMessage   string
	Duration       time.Duration
	CreatedAt      time.Time
}
