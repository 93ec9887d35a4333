package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nvidal9/telebridge/internal/bridge"
	"github.com/nvidal9/telebridge/internal/infrastructure/config"
	"github.com/nvidal9/telebridge/internal/infrastructure/logging"
)

// fakeBridge implements Bridge with scriptable results.
type fakeBridge struct {
	connected     bool
	initErr       error
	refreshErr    error
	topics        []string
	commandResult *bridge.CommandResult
	commandErr    error

	initCalls    int
	refreshCalls int
	lastActuator string
	lastValue    float64
	lastUser     string
}

func (f *fakeBridge) Initialize(ctx context.Context) error {
	f.initCalls++
	if f.initErr == nil {
		f.connected = true
	}
	return f.initErr
}

func (f *fakeBridge) IsConnected() bool { return f.connected }

func (f *fakeBridge) RefreshSubscriptions(ctx context.Context) error {
	f.refreshCalls++
	return f.refreshErr
}

func (f *fakeBridge) SubscribedTopics() []string { return f.topics }

func (f *fakeBridge) SendCommand(ctx context.Context, actuatorID string, value float64, userID string) (*bridge.CommandResult, error) {
	f.lastActuator = actuatorID
	f.lastValue = value
	f.lastUser = userID
	return f.commandResult, f.commandErr
}

// healthOK implements HealthChecker.
type healthOK struct{ err error }

func (h healthOK) HealthCheck(ctx context.Context) error { return h.err }

func testServer(t *testing.T, b Bridge, db HealthChecker) *Server {
	t.Helper()

	log := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		Logger:  log,
		Bridge:  b,
		DB:      db,
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not valid JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Deps{Bridge: &fakeBridge{}}); err == nil {
		t.Error("expected error when logger missing")
	}
	log := &logging.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("expected error when bridge missing")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := testServer(t, &fakeBridge{connected: true}, healthOK{})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	checks := body["checks"].(map[string]any)
	if checks["mqtt"] != "connected" {
		t.Errorf("mqtt check = %v, want connected", checks["mqtt"])
	}
	if checks["database"] != "ok" {
		t.Errorf("database check = %v, want ok", checks["database"])
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	srv := testServer(t, &fakeBridge{}, healthOK{err: errors.New("locked")})

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", body["status"])
	}
}

func TestHandleBridgeInitialize(t *testing.T) {
	fb := &fakeBridge{}
	srv := testServer(t, fb, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bridge/initialize", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if fb.initCalls != 1 {
		t.Errorf("Initialize called %d times, want 1", fb.initCalls)
	}

	body := decodeBody(t, rec)
	if body["connected"] != true {
		t.Errorf("connected = %v, want true", body["connected"])
	}
}

func TestHandleBridgeInitializeFailure(t *testing.T) {
	fb := &fakeBridge{initErr: errors.New("broker unreachable")}
	srv := testServer(t, fb, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bridge/initialize", nil)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHandleBridgeRefresh(t *testing.T) {
	fb := &fakeBridge{connected: true, topics: []string{"plant/ph"}}
	srv := testServer(t, fb, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/bridge/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if fb.refreshCalls != 1 {
		t.Errorf("Refresh called %d times, want 1", fb.refreshCalls)
	}
}

func TestHandleBridgeStatus(t *testing.T) {
	fb := &fakeBridge{connected: true, topics: []string{"plant/ph", "plant/temp"}}
	srv := testServer(t, fb, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/bridge/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["connected"] != true {
		t.Errorf("connected = %v, want true", body["connected"])
	}
	topics := body["topics"].([]any)
	if len(topics) != 2 {
		t.Errorf("topics = %v, want 2 entries", topics)
	}
}

func TestHandleActuatorCommand(t *testing.T) {
	fb := &fakeBridge{
		connected: true,
		commandResult: &bridge.CommandResult{
			ActuatorID:     "heater-1",
			Topic:          "plant/heater/set",
			Value:          21.5,
			SentAt:         time.Now().UTC(),
			RecordsCreated: 1,
			Projects:       []string{"Greenhouse"},
		},
	}
	srv := testServer(t, fb, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/actuators/heater-1/command",
		map[string]any{"value": 21.5, "user_id": "user-42"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	if fb.lastActuator != "heater-1" {
		t.Errorf("actuator = %q, want heater-1", fb.lastActuator)
	}
	if fb.lastValue != 21.5 {
		t.Errorf("value = %v, want 21.5", fb.lastValue)
	}
	if fb.lastUser != "user-42" {
		t.Errorf("user = %q, want user-42", fb.lastUser)
	}

	body := decodeBody(t, rec)
	if body["records_created"] != float64(1) {
		t.Errorf("records_created = %v, want 1", body["records_created"])
	}
}

func TestHandleActuatorCommandBadBody(t *testing.T) {
	srv := testServer(t, &fakeBridge{}, nil)

	tests := []struct {
		name string
		body any
	}{
		{"missing value", map[string]any{"user_id": "u"}},
		{"null value", map[string]any{"value": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/v1/actuators/a/command", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleActuatorCommandErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", bridge.ErrActuatorNotFound, http.StatusNotFound, ErrCodeNotFound},
		{"not configured", bridge.ErrActuatorNotConfigured, http.StatusUnprocessableEntity, ErrCodeNotConfigured},
		{"out of range", bridge.ErrValueOutOfRange, http.StatusUnprocessableEntity, ErrCodeValidation},
		{
			"publish failed",
			&bridge.PublishError{Connected: false, Attempts: 3, Err: errors.New("timeout")},
			http.StatusBadGateway,
			ErrCodePublishFailed,
		},
		{"recording failed", bridge.ErrRecordingFailed, http.StatusInternalServerError, ErrCodeRecordingFailed},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &fakeBridge{commandErr: tt.err}, nil)

			rec := doRequest(t, srv, http.MethodPost, "/api/v1/actuators/a/command",
				map[string]any{"value": 1.0})
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decodeBody(t, rec)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %v, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestPublishErrorIncludesSuggestion(t *testing.T) {
	srv := testServer(t, &fakeBridge{
		commandErr: &bridge.PublishError{Connected: true, Attempts: 3, Err: errors.New("rejected")},
	}, nil)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/actuators/a/command",
		map[string]any{"value": 1.0})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["suggestion"] == nil || body["suggestion"] == "" {
		t.Error("expected a suggestion in the publish failure response")
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := testServer(t, &fakeBridge{}, nil)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/health", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header on response")
	}
}
