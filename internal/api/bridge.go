package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nvidal9/telebridge/internal/bridge"
)

// handleBridgeInitialize opens the broker connection. Idempotent: calling
// it on an initialized bridge returns 200 without side effects.
func (s *Server) handleBridgeInitialize(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Initialize(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodePublishFailed, "broker connection failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.bridge.IsConnected(),
	})
}

// handleBridgeRefresh rebuilds the subscription set from the catalog.
func (s *Server) handleBridgeRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.RefreshSubscriptions(r.Context()); err != nil {
		writeInternalError(w, "subscription refresh failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.bridge.IsConnected(),
		"topics":    s.bridge.SubscribedTopics(),
	})
}

// handleBridgeStatus reports the broker connection state and the tracked
// subscription topics.
func (s *Server) handleBridgeStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": s.bridge.IsConnected(),
		"topics":    s.bridge.SubscribedTopics(),
	})
}

// commandRequest is the body of POST /actuators/{id}/command.
type commandRequest struct {
	Value  *float64 `json:"value"`
	UserID string   `json:"user_id"`
}

// handleActuatorCommand validates and dispatches an actuator command.
//
// Status mapping: 404 unknown or inactive actuator, 422 refused by
// validation, 502 publish failure (with a suggestion distinguishing an
// unreachable broker from a rejected publish), 500 when the command went
// out but recording failed.
func (s *Server) handleActuatorCommand(w http.ResponseWriter, r *http.Request) {
	actuatorID := chi.URLParam(r, "id")

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "missing required field: value")
		return
	}

	result, err := s.bridge.SendCommand(r.Context(), actuatorID, *req.Value, req.UserID)
	if err != nil {
		s.writeCommandError(w, actuatorID, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeCommandError maps the bridge error taxonomy onto HTTP statuses.
func (s *Server) writeCommandError(w http.ResponseWriter, actuatorID string, err error) {
	var pubErr *bridge.PublishError

	switch {
	case errors.Is(err, bridge.ErrActuatorNotFound):
		writeNotFound(w, "actuator not found or inactive: "+actuatorID)

	case errors.Is(err, bridge.ErrActuatorNotConfigured):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeNotConfigured,
			"actuator has no data source configured: "+actuatorID)

	case errors.Is(err, bridge.ErrValueOutOfRange):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeValidation, err.Error())

	case errors.As(err, &pubErr):
		writeJSON(w, http.StatusBadGateway, Error{
			Status:     http.StatusBadGateway,
			Code:       ErrCodePublishFailed,
			Message:    err.Error(),
			Suggestion: pubErr.Suggestion(),
		})

	case errors.Is(err, bridge.ErrRecordingFailed):
		writeError(w, http.StatusInternalServerError, ErrCodeRecordingFailed,
			"command sent to broker but recording failed: "+err.Error())

	default:
		s.logger.Error("command dispatch failed", "actuator_id", actuatorID, "error", err)
		writeInternalError(w, "command dispatch failed")
	}
}
