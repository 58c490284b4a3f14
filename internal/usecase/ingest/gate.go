package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"faultline/internal/bootstrap/logging"
	domainingest "faultline/internal/domain/ingest"
	"faultline/internal/errs"
	"faultline/internal/ports"
)

// Block-cache rejection codes. A cached code short-circuits the request
// before any database access, shedding load from clients that retry a bad
// or throttled key.
const (
	blockCodeInvalid   = "v"
	blockCodeThrottled = "t"
)

func blockCacheKey(projectID uint64) string {
	return fmt.Sprintf("block:%d", projectID)
}

// CheckProject is the auth/throttle gate: maintenance freeze, key parse,
// block-cache, then the single project lookup. On success it returns the
// minimal projection; nothing downstream may query organization state.
func (s *Service) CheckProject(ctx context.Context, projectID uint64, publicKey string) (ports.Project, error) {
	if ctx == nil {
		return ports.Project{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Project{}, errs.Wrap(err, "check context")
	}

	if s.cfg.MaintenanceFreeze {
		return ports.Project{}, &domainingest.MaintenanceError{}
	}

	key, err := domainingest.ParseKey(publicKey)
	if err != nil {
		return ports.Project{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "ingest.gate"),
		slog.Uint64("project_id", projectID),
	)

	blockKey := blockCacheKey(projectID)
	if code, found, err := s.cache.Get(ctx, blockKey); err != nil {
		logging.Warn(logCtx, "block cache read failed", slog.Any("err", errs.Loggable(err)))
	} else if found {
		switch code {
		case blockCodeInvalid:
			return ports.Project{}, &domainingest.AuthenticationError{Reason: "invalid project key"}
		case blockCodeThrottled:
			return ports.Project{}, &domainingest.ThrottleError{RetryAfter: s.cfg.RetryAfter}
		}
	}

	project, err := s.projects.LookupByKey(ctx, projectID, key)
	if err != nil {
		if errors.Is(err, ports.ErrProjectNotFound) {
			s.writeBlockCode(logCtx, blockKey, blockCodeInvalid)
			return ports.Project{}, &domainingest.AuthenticationError{Reason: "invalid project key"}
		}
		return ports.Project{}, errs.Wrap(err, "lookup project by key")
	}

	if !project.IsAcceptingEvents {
		s.writeBlockCode(logCtx, blockKey, blockCodeThrottled)
		return ports.Project{}, &domainingest.ThrottleError{RetryAfter: s.cfg.RetryAfter}
	}

	return project, nil
}

func (s *Service) writeBlockCode(ctx context.Context, key string, code string) {
	if err := s.cache.Set(ctx, key, code, s.cfg.BlockCacheTTL); err != nil {
		logging.Warn(ctx, "block cache write failed",
			slog.String("code", code),
			slog.Any("err", errs.Loggable(err)))
	}
}
