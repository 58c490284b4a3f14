package ports

import (
	"context"
	"errors"
)

var ErrIssueNotFound = errors.New("issue not found")

const (
	IssueStatusUnresolved int8 = 0
	IssueStatusResolved   int8 = 1
	IssueStatusIgnored    int8 = 2
)

type Issue struct {
	IssueID   uint64
	ProjectID uint64
	ShortID   uint64
	Title     string
	Culprit   string
	Type      int8
	Status    int8
	Level     string
	Count     uint64
	FirstSeen string
	LastSeen  string
}

// HashPair identifies one grouping bucket.
type HashPair struct {
	ProjectID uint64
	Value     string
}

type IssueHashRow struct {
	ProjectID uint64
	IssueID   uint64
	Value     string
}

type IssueCreate struct {
	ProjectID uint64
	Title     string
	Culprit   string
	Type      int8
	Level     string
	HashValue string
	Seen      string
}

type IssueEventCreate struct {
	EventID string
	IssueID uint64
	Type    int8
	Created string
	Payload string
}

type IssueRepository interface {
	// FindHashes bulk-fetches existing hash rows for any of the given
	// (project, value) pairs in a single query.
	FindHashes(ctx context.Context, pairs []HashPair) ([]IssueHashRow, error)

	// CreateIssueForHash atomically creates Issue + IssueHash. When the
	// (project, value) unique constraint fires because a concurrent writer
	// won, it re-reads the winning row and returns its issue id with
	// created=false. This is the only correctness-critical concurrency
	// primitive in the pipeline.
	CreateIssueForHash(ctx context.Context, input IssueCreate) (issueID uint64, created bool, err error)

	GetIssue(ctx context.Context, issueID uint64) (Issue, error)

	// RecordSeen bumps count and last_seen for a batch of issues.
	RecordSeen(ctx context.Context, counts map[uint64]uint64, seen string) error

	// ReopenResolved transitions the given issues from resolved back to
	// unresolved, returning the ids that actually changed.
	ReopenResolved(ctx context.Context, issueIDs []uint64) ([]uint64, error)

	// InsertEvents bulk-inserts event rows, routing each to its weekly
	// partition. Rows whose event_id already exists are silently skipped.
	InsertEvents(ctx context.Context, events []IssueEventCreate) error

	CountIssueEvents(ctx context.Context, issueID uint64) (int64, error)
	ListIssueEvents(ctx context.Context, issueID uint64, limit int) ([]IssueEventCreate, error)
}
