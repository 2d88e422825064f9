package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/smartats/ats-backend/internal/http/middleware"
	"github.com/smartats/ats-backend/internal/service"
)

const maxUploadMemory = 32 << 20 // 32 MiB across the whole form

// Upload accepts one resume as multipart form data (field "file") and
// answers 202 with the task ID for polling.
func (api *API) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "expected multipart form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "file field is required")
		return
	}
	input, err := readUpload(file, header)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read uploaded file")
		return
	}

	receipt, err := api.resumesService.Upload(r.Context(), middleware.GetActorID(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, err, "resume not found")
		return
	}
	writeJSON(w, http.StatusAccepted, receipt)
}

// UploadBatch accepts several resumes in one multipart request (repeated
// "files" fields) and answers 202 with one receipt per file.
func (api *API) UploadBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "expected multipart form data")
		return
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "at least one files field is required")
		return
	}

	inputs := make([]service.UploadInput, 0, len(r.MultipartForm.File["files"]))
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read uploaded file")
			return
		}
		input, err := readUpload(file, header)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "could not read uploaded file")
			return
		}
		inputs = append(inputs, input)
	}

	receipts, err := api.resumesService.UploadBatch(r.Context(), middleware.GetActorID(r.Context()), inputs)
	if err != nil {
		writeServiceError(w, r, err, "resume not found")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"tasks": receipts})
}

func readUpload(file multipart.File, header *multipart.FileHeader) (service.UploadInput, error) {
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return service.UploadInput{}, err
	}
	return service.UploadInput{
		FileName: header.Filename,
		Content:  content,
	}, nil
}
