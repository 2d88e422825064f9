package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smartats/ats-backend/internal/dashboard"
	"github.com/smartats/ats-backend/internal/http/middleware"
	"github.com/smartats/ats-backend/internal/repository"
	"github.com/smartats/ats-backend/internal/service"
	"github.com/smartats/ats-backend/internal/taskstore"
)

var errInvalidPayload = errors.New("invalid payload")

// API bundles the HTTP handlers and their collaborators.
type API struct {
	resumesService  *service.ResumesService
	webhooksService *service.WebhooksService
	broadcaster     *dashboard.Broadcaster
}

func NewAPI(
	resumesService *service.ResumesService,
	webhooksService *service.WebhooksService,
	broadcaster *dashboard.Broadcaster,
) *API {
	return &API{
		resumesService:  resumesService,
		webhooksService: webhooksService,
		broadcaster:     broadcaster,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

// writeServiceError maps service-layer errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundMessage string) {
	var validation *service.ValidationError
	switch {
	case errors.As(err, &validation):
		writeError(w, r, http.StatusBadRequest, "invalid_request", validation.Error())
	case isNotFound(err):
		writeError(w, r, http.StatusNotFound, "not_found", notFoundMessage)
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "request failed")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, taskstore.ErrNotFound)
}
