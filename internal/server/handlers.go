package server

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"faultline/internal/bootstrap/logging"
	domainingest "faultline/internal/domain/ingest"
	"faultline/internal/usecase/ingest"
)

func (s *Server) handleStore(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithAttrs(r.Context(), slog.String("endpoint", "store"))

	projectID, publicKey, ok := s.gateInputs(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(ctx, w, &domainingest.ValidationError{Reason: "unable to read request body"})
		return
	}

	out, err := s.svc.StoreEvent(ctx, ingest.StoreEventInput{
		ProjectID: projectID,
		PublicKey: publicKey,
		Payload:   payload,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{"event_id": out.EventID})
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithAttrs(r.Context(), slog.String("endpoint", "envelope"))

	projectID, publicKey, ok := s.gateInputs(w, r)
	if !ok {
		return
	}

	out, err := s.svc.StoreEnvelope(ctx, ingest.StoreEnvelopeInput{
		ProjectID: projectID,
		PublicKey: publicKey,
		Body:      http.MaxBytesReader(w, r.Body, maxBodyBytes),
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{"id": out.EventID})
}

func (s *Server) handleSecurity(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithAttrs(r.Context(), slog.String("endpoint", "security"))

	projectID, publicKey, ok := s.gateInputs(w, r)
	if !ok {
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(ctx, w, &domainingest.ValidationError{Reason: "unable to read request body"})
		return
	}

	out, err := s.svc.StoreSecurityReport(ctx, ingest.StoreEventInput{
		ProjectID: projectID,
		PublicKey: publicKey,
		Payload:   payload,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]string{"event_id": out.EventID})
}

// gateInputs pulls the project id from the path and the DSN public key from
// query/header; both failures respond before any work happens.
func (s *Server) gateInputs(w http.ResponseWriter, r *http.Request) (uint64, string, bool) {
	ctx := r.Context()

	projectID, err := strconv.ParseUint(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		respondError(ctx, w, &domainingest.ValidationError{Reason: "project id must be numeric"})
		return 0, "", false
	}

	publicKey, err := domainingest.ExtractPublicKey(r.URL.Query(), r.Header)
	if err != nil {
		respondError(ctx, w, err)
		return 0, "", false
	}

	return projectID, publicKey, true
}
