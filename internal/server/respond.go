package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"faultline/internal/bootstrap/logging"
	domainingest "faultline/internal/domain/ingest"
	"faultline/internal/errs"
)

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Warn(ctx, "write response failed", slog.Any("err", errs.Loggable(err)))
	}
}

// respondError maps the ingest error taxonomy onto HTTP statuses:
// authentication 401, validation 400, throttle 429 with Retry-After,
// maintenance 503, anything else 500 without leaking internals.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	var authErr *domainingest.AuthenticationError
	if errors.As(err, &authErr) {
		writeJSON(ctx, w, http.StatusUnauthorized, map[string]string{"detail": authErr.Error()})
		return
	}

	var validationErr *domainingest.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(ctx, w, http.StatusBadRequest, map[string]string{"detail": validationErr.Error()})
		return
	}

	var throttleErr *domainingest.ThrottleError
	if errors.As(err, &throttleErr) {
		seconds := int(math.Ceil(throttleErr.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"detail": throttleErr.Error()})
		return
	}

	var maintenanceErr *domainingest.MaintenanceError
	if errors.As(err, &maintenanceErr) {
		writeJSON(ctx, w, http.StatusServiceUnavailable, map[string]string{"detail": maintenanceErr.Error()})
		return
	}

	logging.Error(ctx, "request failed", slog.Any("err", errs.Loggable(err)))
	writeJSON(ctx, w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
}
