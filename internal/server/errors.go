// ABOUTME: Error-to-status mapping and JSON response helpers.
// ABOUTME: Cancellation is answered quietly; every other error is logged.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harperreed/deficit/internal/ledger"
	"github.com/harperreed/deficit/internal/logger"
	"github.com/harperreed/deficit/internal/models"
	"github.com/harperreed/deficit/internal/storage"
	"github.com/harperreed/deficit/internal/stream"
	"github.com/harperreed/deficit/internal/thumbnail"
	"github.com/harperreed/deficit/internal/vision"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// errorStatuses is checked in order; the first sentinel in the chain wins.
var errorStatuses = []struct {
	err    error
	status int
}{
	{models.ErrValidation, http.StatusBadRequest},
	{ledger.ErrNotFound, http.StatusNotFound},
	{ledger.ErrConfigMissing, http.StatusPreconditionFailed},
	{vision.ErrMissingCredentials, http.StatusPreconditionFailed},
	{thumbnail.ErrUndecodable, http.StatusUnprocessableEntity},
	{vision.ErrRequestFailed, http.StatusBadGateway},
	{stream.ErrStreamUnreadable, http.StatusBadGateway},
	{storage.ErrUnavailable, http.StatusServiceUnavailable},
}

func statusFromError(err error) int {
	if ledger.IsCanceled(err) {
		return statusClientClosedRequest
	}
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFromError(err)
	log := logger.FromContext(r.Context())

	switch {
	case status == statusClientClosedRequest:
		log.Debug().Err(err).Msg("request canceled")
	case status >= http.StatusInternalServerError:
		log.Error().Err(err).Msg("request failed")
	default:
		log.Warn().Err(err).Int("status", status).Msg("request rejected")
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		logger.FromContext(r.Context()).Debug().Err(err).Msg("invalid JSON was passed")
		badRequest(w, "invalid JSON was passed")
		return false
	}
	return true
}
