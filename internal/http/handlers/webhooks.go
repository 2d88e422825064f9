package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/smartats/ats-backend/internal/http/middleware"
	"github.com/smartats/ats-backend/internal/service"
)

// Webhooks handles the /v1/webhooks collection: list and create.
func (api *API) Webhooks(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActorID(r.Context())

	switch r.Method {
	case http.MethodGet:
		views, err := api.webhooksService.List(r.Context(), actor)
		if err != nil {
			writeServiceError(w, r, err, "webhook not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"webhooks": views})
	case http.MethodPost:
		var input service.WebhookInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
			return
		}
		view, err := api.webhooksService.Create(r.Context(), actor, input)
		if err != nil {
			writeServiceError(w, r, err, "webhook not found")
			return
		}
		writeJSON(w, http.StatusCreated, view)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

// WebhookByID routes /v1/webhooks/{id} and its sub-resources:
// enable, disable, test and deliveries.
func (api *API) WebhookByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/webhooks/")
	webhookID, action, _ := strings.Cut(rest, "/")
	webhookID = strings.TrimSpace(webhookID)
	if webhookID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "webhook id is required")
		return
	}
	actor := middleware.GetActorID(r.Context())

	switch action {
	case "":
		api.webhookResource(w, r, actor, webhookID)
	case "enable":
		api.webhookSetEnabled(w, r, actor, webhookID, true)
	case "disable":
		api.webhookSetEnabled(w, r, actor, webhookID, false)
	case "test":
		api.webhookTest(w, r, actor, webhookID)
	case "deliveries":
		api.webhookDeliveries(w, r, actor, webhookID)
	default:
		writeError(w, r, http.StatusNotFound, "not_found", "unknown webhook resource")
	}
}

func (api *API) webhookResource(w http.ResponseWriter, r *http.Request, actor, webhookID string) {
	switch r.Method {
	case http.MethodGet:
		view, err := api.webhooksService.Get(r.Context(), actor, webhookID)
		if err != nil {
			writeServiceError(w, r, err, "webhook not found")
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodPut:
		var input service.WebhookInput
		if err := decodeJSON(r, &input); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid payload")
			return
		}
		view, err := api.webhooksService.Update(r.Context(), actor, webhookID, input)
		if err != nil {
			writeServiceError(w, r, err, "webhook not found")
			return
		}
		writeJSON(w, http.StatusOK, view)
	case http.MethodDelete:
		if err := api.webhooksService.Delete(r.Context(), actor, webhookID); err != nil {
			writeServiceError(w, r, err, "webhook not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func (api *API) webhookSetEnabled(w http.ResponseWriter, r *http.Request, actor, webhookID string, enabled bool) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	view, err := api.webhooksService.SetEnabled(r.Context(), actor, webhookID, enabled)
	if err != nil {
		writeServiceError(w, r, err, "webhook not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (api *API) webhookTest(w http.ResponseWriter, r *http.Request, actor, webhookID string) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if err := api.webhooksService.SendTest(r.Context(), actor, webhookID); err != nil {
		if isNotFound(err) {
			writeError(w, r, http.StatusNotFound, "not_found", "webhook not found")
			return
		}
		// The endpoint itself rejected the test delivery.
		writeJSON(w, http.StatusOK, map[string]any{
			"delivered": false,
			"error":     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"delivered": true})
}

func (api *API) webhookDeliveries(w http.ResponseWriter, r *http.Request, actor, webhookID string) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := api.webhooksService.ListDeliveryLogs(r.Context(), actor, webhookID, limit)
	if err != nil {
		writeServiceError(w, r, err, "webhook not found")
		return
	}

	logs := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"id":              entry.ID,
			"event_id":        entry.EventID,
			"event_type":      entry.EventType,
			"outcome":         entry.Outcome,
			"attempt":         entry.Attempt,
			"response_status": entry.ResponseStatus,
			"duration_ms":     entry.Duration.Milliseconds(),
			"created_at":      entry.CreatedAt,
		}
		if entry.ErrorMessage != "" {
			item["error"] = entry.ErrorMessage
		}
		logs = append(logs, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{"deliveries": logs})
}
