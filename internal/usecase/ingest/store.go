package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/domain/event"
	domainingest "faultline/internal/domain/ingest"
	"faultline/internal/errs"
	"faultline/internal/ports"
)

type StoreEventInput struct {
	ProjectID uint64
	PublicKey string
	Payload   []byte
}

type StoreEventResult struct {
	EventID string
}

// StoreEvent handles the synchronous store endpoint: gate, normalize,
// enqueue. The client is acked once the event is accepted by the batcher
// (at-least-once; duplicate ids are absorbed at insert time).
func (s *Service) StoreEvent(ctx context.Context, input StoreEventInput) (StoreEventResult, error) {
	if ctx == nil {
		return StoreEventResult{}, errors.New("context is required")
	}

	project, err := s.CheckProject(ctx, input.ProjectID, input.PublicKey)
	if err != nil {
		return StoreEventResult{}, err
	}

	normalized, err := event.Parse(input.Payload, s.now())
	if err != nil {
		return StoreEventResult{}, err
	}

	if err := s.accept(ctx, project, normalized); err != nil {
		return StoreEventResult{}, err
	}
	return StoreEventResult{EventID: normalized.EventID}, nil
}

// StoreSecurityReport handles the CSP reporting endpoint. The body is the
// browser's {"csp-report": {...}} shape, which normalizes to a csp event.
func (s *Service) StoreSecurityReport(ctx context.Context, input StoreEventInput) (StoreEventResult, error) {
	if ctx == nil {
		return StoreEventResult{}, errors.New("context is required")
	}

	project, err := s.CheckProject(ctx, input.ProjectID, input.PublicKey)
	if err != nil {
		return StoreEventResult{}, err
	}

	normalized, err := event.Parse(input.Payload, s.now())
	if err != nil {
		return StoreEventResult{}, err
	}
	if normalized.Type != event.TypeCSP {
		return StoreEventResult{}, &domainingest.ValidationError{Reason: "security report requires a csp-report body"}
	}

	if err := s.accept(ctx, project, normalized); err != nil {
		return StoreEventResult{}, err
	}
	return StoreEventResult{EventID: normalized.EventID}, nil
}

type StoreEnvelopeInput struct {
	ProjectID uint64
	PublicKey string
	Body      io.Reader
}

type StoreEnvelopeResult struct {
	// EventID is the envelope header id, echoed back to the client.
	EventID  string
	Accepted int
	Dropped  int
	Skipped  int
}

// StoreEnvelope decodes a multi-item envelope and ingests its event items
// independently: one malformed item is logged and dropped without failing
// its siblings or the request.
func (s *Service) StoreEnvelope(ctx context.Context, input StoreEnvelopeInput) (StoreEnvelopeResult, error) {
	if ctx == nil {
		return StoreEnvelopeResult{}, errors.New("context is required")
	}

	project, err := s.CheckProject(ctx, input.ProjectID, input.PublicKey)
	if err != nil {
		return StoreEnvelopeResult{}, err
	}

	envelope, err := event.DecodeEnvelope(input.Body)
	if err != nil {
		return StoreEnvelopeResult{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "ingest.envelope"),
		slog.Uint64("project_id", project.ProjectID),
		slog.String("envelope_id", envelope.Header.EventID),
	)

	out := StoreEnvelopeResult{EventID: envelope.Header.EventID}
	out.Skipped = len(envelope.Skipped)
	for _, skipped := range envelope.Skipped {
		logging.Warn(logCtx, "skipping unknown envelope item", slog.String("item_type", skipped))
	}

	for _, item := range envelope.Items {
		if item.Header.Type != event.ItemTypeEvent {
			out.Skipped++
			continue
		}

		normalized, err := event.Parse(item.Body, s.now())
		if err != nil {
			logging.Warn(logCtx, "dropping invalid envelope item", slog.Any("err", errs.Loggable(err)))
			out.Dropped++
			continue
		}
		// An item without its own event_id inherits the envelope header's.
		if !rawHasEventID(item.Body) {
			normalized.EventID = envelope.Header.EventID
		}

		if err := s.accept(ctx, project, normalized); err != nil {
			return out, err
		}
		out.Accepted++
	}

	return out, nil
}

func rawHasEventID(raw json.RawMessage) bool {
	var probe struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.EventID != ""
}

// accept applies project-scoped normalization and hands the event to the
// batch scheduler.
func (s *Service) accept(ctx context.Context, project ports.Project, normalized *event.Normalized) error {
	if project.ScrubIPAddresses && normalized.User != nil {
		normalized.User.IPAddress = ""
	}
	mergeContextTags(normalized)

	return s.batcher.Enqueue(ctx, &processingEvent{
		project:    project,
		normalized: normalized,
	})
}

// mergeContextTags folds environment/release/server_name into tags; client
// tags win on collision.
func mergeContextTags(normalized *event.Normalized) {
	derived := map[string]string{
		"environment": normalized.Environment,
		"release":     normalized.Release,
		"server_name": normalized.ServerName,
	}

	for key, value := range derived {
		if value == "" {
			continue
		}
		if normalized.Tags == nil {
			normalized.Tags = make(map[string]string)
		}
		if _, ok := normalized.Tags[key]; !ok {
			normalized.Tags[key] = value
		}
	}
}
