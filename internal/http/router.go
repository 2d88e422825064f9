package httpserver

import (
	"log"
	"net/http"

	"github.com/smartats/ats-backend/internal/http/handlers"
	"github.com/smartats/ats-backend/internal/http/middleware"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *log.Logger
	AuthToken      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc("/v1/resumes", deps.API.Upload)
	mux.HandleFunc("/v1/resumes/batch", deps.API.UploadBatch)
	mux.HandleFunc("/v1/tasks/", deps.API.TaskStatus)
	mux.HandleFunc("/v1/webhooks", deps.API.Webhooks)
	mux.HandleFunc("/v1/webhooks/", deps.API.WebhookByID)
	mux.HandleFunc("/v1/dashboard/stream", deps.API.DashboardStream)

	handler := http.Handler(mux)
	handler = middleware.Auth(deps.AuthToken)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: deps.CORSOrigins,
	})(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
