package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/domain/event"
	"faultline/internal/errs"
	"faultline/internal/ports"
)

// processingEvent shepherds one inbound event through grouping: the
// normalized payload plus its computed hash and, once resolved, issue id.
// In-memory only, never persisted as-is.
type processingEvent struct {
	project    ports.Project
	normalized *event.Normalized

	title   string
	culprit string
	hash    string
	issueID uint64
}

func debounceKey(issueID uint64) string {
	return fmt.Sprintf("alert-debounce:%d", issueID)
}

// flush runs the grouping-and-persist pass for one batch. Two phases: a
// single bulk read of existing hash rows, then per-miss transactional
// creation with a conflict fallback. Per-event failures are logged with
// payload context and skipped; they never abort the rest of the batch.
func (s *Service) flush(ctx context.Context, batch []*processingEvent) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "ingest.grouping"))

	fingerprinted := batch[:0:0]
	for _, pe := range batch {
		if fingerprint(logCtx, pe) {
			fingerprinted = append(fingerprinted, pe)
		}
	}
	if len(fingerprinted) == 0 {
		return
	}

	// Coalesce the batch by (project, hash) so a brand-new hash shared by
	// several events still creates exactly one issue.
	buckets := make(map[ports.HashPair][]*processingEvent)
	pairs := make([]ports.HashPair, 0, len(fingerprinted))
	for _, pe := range fingerprinted {
		pair := ports.HashPair{ProjectID: pe.project.ProjectID, Value: pe.hash}
		if _, ok := buckets[pair]; !ok {
			pairs = append(pairs, pair)
		}
		buckets[pair] = append(buckets[pair], pe)
	}

	existing, err := s.issues.FindHashes(ctx, pairs)
	if err != nil {
		logging.Error(logCtx, "bulk hash lookup failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	issueByPair := make(map[ports.HashPair]uint64, len(existing))
	for _, row := range existing {
		issueByPair[ports.HashPair{ProjectID: row.ProjectID, Value: row.Value}] = row.IssueID
	}

	seen := s.now().UTC().Format(time.RFC3339Nano)
	for _, pair := range pairs {
		if _, ok := issueByPair[pair]; ok {
			continue
		}
		head := buckets[pair][0]
		issueID, created, err := s.issues.CreateIssueForHash(ctx, ports.IssueCreate{
			ProjectID: pair.ProjectID,
			Title:     head.title,
			Culprit:   head.culprit,
			Type:      int8(head.normalized.Type),
			Level:     head.normalized.Level,
			HashValue: pair.Value,
			Seen:      seen,
		})
		if err != nil {
			logging.Error(logCtx, "issue creation failed",
				slog.Uint64("project_id", pair.ProjectID),
				slog.String("hash", pair.Value),
				slog.Any("err", errs.Loggable(err)))
			continue
		}
		if !created {
			logging.Info(logCtx, "issue creation lost race, reusing winner",
				slog.Uint64("issue_id", issueID),
				slog.String("hash", pair.Value))
		}
		issueByPair[pair] = issueID
	}

	counts := make(map[uint64]uint64)
	issueIDs := make([]uint64, 0, len(issueByPair))
	var rows []ports.IssueEventCreate
	for pair, pes := range buckets {
		issueID, ok := issueByPair[pair]
		if !ok {
			continue
		}
		if counts[issueID] == 0 {
			issueIDs = append(issueIDs, issueID)
		}
		for _, pe := range pes {
			pe.issueID = issueID
			counts[issueID]++

			payload, err := json.Marshal(pe.normalized)
			if err != nil {
				logging.Error(logCtx, "event payload marshal failed",
					slog.String("event_id", pe.normalized.EventID),
					slog.Any("err", errs.Loggable(err)))
				continue
			}
			rows = append(rows, ports.IssueEventCreate{
				EventID: pe.normalized.EventID,
				IssueID: issueID,
				Type:    int8(pe.normalized.Type),
				Created: pe.normalized.Timestamp.UTC().Format(time.RFC3339Nano),
				Payload: string(payload),
			})
		}
	}

	// Events land before the counter pass: a failed insert must not leave
	// bumped counts or reopened issues with no event rows behind them.
	if err := s.issues.InsertEvents(ctx, rows); err != nil {
		logging.Error(logCtx, "bulk event insert failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	// Regression transition and counter bumps ride one transaction; events
	// landing on a resolved issue reopen it and clear the alert debounce so
	// new notifications can fire.
	var reopened []uint64
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		ids, err := s.issues.ReopenResolved(txCtx, issueIDs)
		if err != nil {
			return err
		}
		reopened = ids
		return s.issues.RecordSeen(txCtx, counts, seen)
	}); err != nil {
		logging.Error(logCtx, "issue state update failed", slog.Any("err", errs.Loggable(err)))
	}
	for _, issueID := range reopened {
		if err := s.cache.Delete(ctx, debounceKey(issueID)); err != nil {
			logging.Warn(logCtx, "debounce invalidation failed",
				slog.Uint64("issue_id", issueID),
				slog.Any("err", errs.Loggable(err)))
		}
	}

	s.publisher.IssuesPersisted(ctx, issueIDs)
}

// fingerprint computes title/culprit/hash for one event, trapping panics
// from hostile payloads so one event cannot poison its batch.
func fingerprint(ctx context.Context, pe *processingEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			payload, _ := json.Marshal(pe.normalized)
			logging.Error(ctx, "fingerprinting panicked",
				slog.String("event_id", pe.normalized.EventID),
				slog.Any("panic", r),
				slog.String("payload", string(payload)))
			ok = false
		}
	}()

	pe.title = pe.normalized.Title()
	pe.culprit = pe.normalized.CulpritValue()
	pe.hash = event.GenerateHash(pe.title, pe.culprit, pe.normalized.Type, pe.normalized.Fingerprint)
	return true
}
