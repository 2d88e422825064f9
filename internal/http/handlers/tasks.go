package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/smartats/ats-backend/internal/taskstore"
)

// TaskStatus answers GET /v1/tasks/{taskID} with the current parse state.
// An expired or unknown task is 404; a store outage is 503, never 404, so
// clients do not mistake a hiccup for a finished retention window.
func (api *API) TaskStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	taskID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/tasks/"))
	if taskID == "" || strings.Contains(taskID, "/") {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "task_id is required")
		return
	}

	task, err := api.resumesService.GetTaskStatus(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, taskstore.ErrUnavailable) {
			writeError(w, r, http.StatusServiceUnavailable, "state_unavailable", "task state is temporarily unavailable")
			return
		}
		writeServiceError(w, r, err, "task not found or expired")
		return
	}

	response := map[string]any{
		"task_id":    task.TaskID,
		"resume_id":  task.ResumeID,
		"status":     task.Status,
		"progress":   task.Progress,
		"updated_at": task.UpdatedAt,
	}
	if task.Message != "" {
		response["message"] = task.Message
	}
	if task.Result != nil {
		response["result"] = task.Result
	}
	if task.Error != "" {
		response["error"] = map[string]any{
			"code":    "parse_error",
			"message": task.Error,
		}
	}
	writeJSON(w, http.StatusOK, response)
}
