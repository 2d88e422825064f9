package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSPreflightAllowedOrigin(t *testing.T) {
	nextCalled := false
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://dashboard.example.com"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusTeapot)
	}))

	request := httptest.NewRequest(http.MethodOptions, "/v1/resumes", nil)
	request.Header.Set("Origin", "https://dashboard.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	request.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if nextCalled {
		t.Fatalf("expected preflight to short-circuit chain")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodDelete) {
		t.Fatalf("expected DELETE in allow methods, got %q", got)
	}
}

func TestCORSIgnoresDisallowedOrigin(t *testing.T) {
	nextCalled := false
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"https://dashboard.example.com"},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodOptions, "/v1/resumes", nil)
	request.Header.Set("Origin", "https://evil.example")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	if !nextCalled {
		t.Fatalf("expected disallowed origin preflight to pass through")
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin header for disallowed origin, got %q", got)
	}
}

func TestAuthRejectsMissingBearer(t *testing.T) {
	handler := Auth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/webhooks", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestAuthResolvesActor(t *testing.T) {
	var actor string
	handler := Auth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor = GetActorID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/webhooks", nil)
	request.Header.Set("Authorization", "Bearer s3cret")
	request.Header.Set("X-Actor-Id", "alice")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if actor != "alice" {
		t.Fatalf("expected actor alice, got %q", actor)
	}
}

func TestAuthSkipsNonAPIRoutes(t *testing.T) {
	handler := Auth("s3cret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", recorder.Code)
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/resumes", nil))

	if seen == "" || seen == "unknown" {
		t.Fatalf("expected generated request id, got %q", seen)
	}
	if recorder.Header().Get("X-Request-Id") != seen {
		t.Fatalf("request id must be echoed in the response header")
	}

	request := httptest.NewRequest(http.MethodGet, "/v1/resumes", nil)
	request.Header.Set("X-Request-Id", "req-42")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if seen != "req-42" {
		t.Fatalf("expected provided request id to win, got %q", seen)
	}
}
