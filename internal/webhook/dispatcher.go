package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smartats/ats-backend/internal/domain"
	"github.com/smartats/ats-backend/internal/repository"
)

const (
	headerEvent     = "X-Webhook-Event"
	headerID        = "X-Webhook-Id"
	headerSignature = "X-Webhook-Signature"
	headerTest      = "X-Webhook-Test"
	userAgent       = "ats-webhook/1.0"
)

type DispatcherConfig struct {
	MaxAttempts      int
	DisableThreshold int
	Timeout          time.Duration
	Backoff          BackoffSchedule
	LaneBuffer       int
}

// Dispatcher delivers domain events to subscribed webhook endpoints.
// Deliveries for one webhook are serialized on a per-webhook lane so
// failureCount/enabled mutations have a single writer, and retries for an
// event never interleave with the next event for the same endpoint.
type Dispatcher struct {
	repo       repository.WebhooksRepository
	httpClient *http.Client
	cfg        DispatcherConfig
	logger     *log.Logger

	mu    sync.Mutex
	lanes map[string]chan laneJob

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type laneJob struct {
	webhookID string
	event     domain.Event
}

func NewDispatcher(
	ctx context.Context,
	repo repository.WebhooksRepository,
	cfg DispatcherConfig,
	logger *log.Logger,
) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.DisableThreshold <= 0 {
		cfg.DisableThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LaneBuffer <= 0 {
		cfg.LaneBuffer = 128
	}

	runCtx, cancel := context.WithCancel(ctx)
	return &Dispatcher{
		repo:       repo,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger,
		lanes:      make(map[string]chan laneJob),
		runCtx:     runCtx,
		cancel:     cancel,
	}
}

// HandleEvent is the event-bus subscriber entry point.
func (d *Dispatcher) HandleEvent(ctx context.Context, event domain.Event) {
	configs, err := d.repo.ListEnabledWebhooksForEvent(ctx, event.Type)
	if err != nil {
		if d.logger != nil {
			d.logger.Printf("webhook dispatch skipped, config lookup failed event_id=%s err=%v", event.ID, err)
		}
		return
	}

	for _, config := range configs {
		lane := d.lane(config.ID)
		select {
		case lane <- laneJob{webhookID: config.ID, event: event}:
		default:
			if d.logger != nil {
				d.logger.Printf("webhook lane full, dropping event webhook_id=%s event_id=%s", config.ID, event.ID)
			}
		}
	}
}

func (d *Dispatcher) lane(webhookID string) chan laneJob {
	d.mu.Lock()
	defer d.mu.Unlock()

	lane, ok := d.lanes[webhookID]
	if ok {
		return lane
	}

	lane = make(chan laneJob, d.cfg.LaneBuffer)
	d.lanes[webhookID] = lane

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.runCtx.Done():
				return
			case job := <-lane:
				d.deliverWithRetries(d.runCtx, job.webhookID, job.event)
			}
		}
	}()
	return lane
}

// deliverWithRetries runs the bounded attempt chain for one event/webhook
// pair. The config is reloaded before every attempt so a disable (manual
// or automatic) between attempts cancels the chain.
func (d *Dispatcher) deliverWithRetries(ctx context.Context, webhookID string, event domain.Event) {
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		config, err := d.repo.GetWebhook(ctx, webhookID)
		if err != nil {
			if d.logger != nil {
				d.logger.Printf("webhook delivery aborted, config unavailable webhook_id=%s err=%v", webhookID, err)
			}
			return
		}
		if !config.Enabled {
			return
		}

		body, signature, err := Sign(NewPayload(event), config.Secret)
		if err != nil {
			if d.logger != nil {
				d.logger.Printf("webhook payload signing failed webhook_id=%s err=%v", webhookID, err)
			}
			return
		}

		start := time.Now()
		status, responseBody, deliverErr := d.post(ctx, config.URL, body, map[string]string{
			headerEvent:     string(event.Type),
			headerID:        event.ID,
			headerSignature: signature,
		})
		duration := time.Since(start)

		if deliverErr == nil && status >= 200 && status < 300 {
			d.recordSuccess(ctx, config, event, body, status, responseBody, duration, attempt)
			return
		}

		errorMessage := fmt.Sprintf("HTTP %d", status)
		if deliverErr != nil {
			errorMessage = deliverErr.Error()
		}
		disabled := d.recordFailure(ctx, config, event, body, status, responseBody, errorMessage, duration, attempt)
		if disabled || attempt == d.cfg.MaxAttempts {
			return
		}

		timer := time.NewTimer(d.cfg.Backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (d *Dispatcher) post(
	ctx context.Context,
	url string,
	body []byte,
	headers map[string]string,
) (int, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", userAgent)
	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := d.httpClient.Do(request)
	if err != nil {
		return 0, "", fmt.Errorf("deliver webhook: %w", err)
	}
	defer response.Body.Close()

	responseBody, _ := io.ReadAll(io.LimitReader(response.Body, 4<<10))
	return response.StatusCode, string(responseBody), nil
}

func (d *Dispatcher) recordSuccess(
	ctx context.Context,
	config *domain.WebhookConfig,
	event domain.Event,
	payload []byte,
	status int,
	responseBody string,
	duration time.Duration,
	attempt int,
) {
	now := time.Now().UTC()
	config.FailureCount = 0
	config.LastSuccessAt = &now
	config.UpdatedAt = now
	if err := d.repo.UpdateWebhook(ctx, config); err != nil && d.logger != nil {
		d.logger.Printf("webhook success bookkeeping failed webhook_id=%s err=%v", config.ID, err)
	}

	d.appendLog(ctx, &domain.DeliveryLog{
		ID:             uuid.NewString(),
		WebhookID:      config.ID,
		EventID:        event.ID,
		EventType:      event.Type,
		Payload:        payload,
		Outcome:        domain.DeliverySuccess,
		Attempt:        attempt,
		ResponseStatus: status,
		ResponseBody:   responseBody,
		Duration:       duration,
		CreatedAt:      now,
	})

	if d.logger != nil {
		d.logger.Printf(
			"webhook delivered webhook_id=%s event_id=%s attempt=%d duration_ms=%d",
			config.ID, event.ID, attempt, duration.Milliseconds(),
		)
	}
}

// recordFailure updates failure bookkeeping and reports whether the
// webhook was auto-disabled by this failure.
func (d *Dispatcher) recordFailure(
	ctx context.Context,
	config *domain.WebhookConfig,
	event domain.Event,
	payload []byte,
	status int,
	responseBody string,
	errorMessage string,
	duration time.Duration,
	attempt int,
) bool {
	now := time.Now().UTC()
	config.FailureCount++
	config.LastFailureAt = &now
	config.UpdatedAt = now

	disabled := false
	if config.FailureCount >= d.cfg.DisableThreshold {
		config.Enabled = false
		disabled = true
		if d.logger != nil {
			d.logger.Printf(
				"webhook auto-disabled webhook_id=%s consecutive_failures=%d",
				config.ID, config.FailureCount,
			)
		}
	}
	if err := d.repo.UpdateWebhook(ctx, config); err != nil && d.logger != nil {
		d.logger.Printf("webhook failure bookkeeping failed webhook_id=%s err=%v", config.ID, err)
	}

	d.appendLog(ctx, &domain.DeliveryLog{
		ID:             uuid.NewString(),
		WebhookID:      config.ID,
		EventID:        event.ID,
		EventType:      event.Type,
		Payload:        payload,
		Outcome:        domain.DeliveryFailed,
		Attempt:        attempt,
		ResponseStatus: status,
		ResponseBody:   responseBody,
		ErrorMessage:   errorMessage,
		Duration:       duration,
		CreatedAt:      now,
	})

	if d.logger != nil {
		d.logger.Printf(
			"webhook delivery failed webhook_id=%s event_id=%s attempt=%d err=%s",
			config.ID, event.ID, attempt, errorMessage,
		)
	}
	return disabled
}

func (d *Dispatcher) appendLog(ctx context.Context, entry *domain.DeliveryLog) {
	if err := d.repo.AppendDeliveryLog(ctx, entry); err != nil && d.logger != nil {
		d.logger.Printf("delivery log append failed webhook_id=%s err=%v", entry.WebhookID, err)
	}
}

// SendTest performs one immediate delivery attempt for diagnostics. It
// does not touch failureCount, timestamps or delivery logs.
func (d *Dispatcher) SendTest(ctx context.Context, config *domain.WebhookConfig) error {
	event := domain.NewEvent(domain.EventResumeUploaded, map[string]any{
		"message":    "test delivery",
		"webhook_id": config.ID,
		"_test":      true,
	})
	body, signature, err := Sign(NewPayload(event), config.Secret)
	if err != nil {
		return err
	}

	status, _, err := d.post(ctx, config.URL, body, map[string]string{
		headerEvent:     string(event.Type),
		headerID:        event.ID,
		headerSignature: signature,
		headerTest:      "true",
	})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("endpoint returned status %d", status)
	}
	return nil
}

// Close stops all delivery lanes. In-flight attempts are cancelled.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}
