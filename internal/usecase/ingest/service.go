// Package ingest implements the event ingestion pipeline: DSN gate,
// payload intake, micro-batching, and fingerprint-based issue grouping.
package ingest

import (
	"context"
	"errors"
	"time"

	"faultline/internal/ports"
)

// Config carries the ingest tuning knobs; zero values fall back to the
// documented defaults.
type Config struct {
	BatchSize         int
	FlushInterval     time.Duration
	BlockCacheTTL     time.Duration
	RetryAfter        time.Duration
	MaintenanceFreeze bool
}

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 2 * time.Second
	defaultBlockCacheTTL = 30 * time.Second
	defaultRetryAfter    = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = defaultFlushInterval
	}
	if c.BlockCacheTTL <= 0 {
		c.BlockCacheTTL = defaultBlockCacheTTL
	}
	if c.RetryAfter <= 0 {
		c.RetryAfter = defaultRetryAfter
	}
	return c
}

type Service struct {
	projects  ports.ProjectRepository
	issues    ports.IssueRepository
	uow       ports.UnitOfWork
	cache     ports.Cache
	publisher ports.IssuePublisher
	cfg       Config
	batcher   *batcher
	now       func() time.Time
}

// NewService wires the ingest pipeline. Start must be called before events
// are accepted; Stop drains the in-flight batch.
func NewService(
	projects ports.ProjectRepository,
	issues ports.IssueRepository,
	uow ports.UnitOfWork,
	cache ports.Cache,
	publisher ports.IssuePublisher,
	cfg Config,
) *Service {
	s := &Service{
		projects:  projects,
		issues:    issues,
		uow:       uow,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	s.batcher = newBatcher(s.cfg.BatchSize, s.cfg.FlushInterval, s.flush)
	return s
}

func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	return s.batcher.Start(ctx)
}

// Stop flushes whatever is queued and shuts the scheduler down. Safe to
// call once after Start.
func (s *Service) Stop() {
	s.batcher.Stop()
}
