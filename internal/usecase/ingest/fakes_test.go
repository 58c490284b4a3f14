package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"faultline/internal/ports"
)

type fakeProjectRepo struct {
	mu      sync.Mutex
	project ports.Project
	err     error
	lookups int
}

func (f *fakeProjectRepo) LookupByKey(_ context.Context, projectID uint64, _ string) (ports.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return ports.Project{}, f.err
	}
	if projectID != f.project.ProjectID {
		return ports.Project{}, ports.ErrProjectNotFound
	}
	return f.project, nil
}

func (f *fakeProjectRepo) Seed(context.Context, ports.ProjectSeed) (ports.ProjectSeedResult, error) {
	return ports.ProjectSeedResult{}, errors.New("not implemented")
}

func (f *fakeProjectRepo) SetAcceptingEvents(context.Context, uint64, bool) error {
	return nil
}

func (f *fakeProjectRepo) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

type fakeIssue struct {
	issue ports.Issue
	hash  string
}

type fakeIssueRepo struct {
	mu     sync.Mutex
	nextID uint64
	issues map[uint64]*fakeIssue
	events []ports.IssueEventCreate

	createCalls int
	insertErr   error
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{issues: map[uint64]*fakeIssue{}}
}

func (f *fakeIssueRepo) addIssue(projectID uint64, hash string, status int8) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.issues[f.nextID] = &fakeIssue{
		issue: ports.Issue{IssueID: f.nextID, ProjectID: projectID, Status: status},
		hash:  hash,
	}
	return f.nextID
}

func (f *fakeIssueRepo) FindHashes(_ context.Context, pairs []ports.HashPair) ([]ports.IssueHashRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var rows []ports.IssueHashRow
	for _, pair := range pairs {
		for _, item := range f.issues {
			if item.issue.ProjectID == pair.ProjectID && item.hash == pair.Value {
				rows = append(rows, ports.IssueHashRow{
					ProjectID: pair.ProjectID,
					IssueID:   item.issue.IssueID,
					Value:     pair.Value,
				})
			}
		}
	}
	return rows, nil
}

func (f *fakeIssueRepo) CreateIssueForHash(_ context.Context, input ports.IssueCreate) (uint64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	for _, item := range f.issues {
		if item.issue.ProjectID == input.ProjectID && item.hash == input.HashValue {
			return item.issue.IssueID, false, nil
		}
	}

	f.nextID++
	f.issues[f.nextID] = &fakeIssue{
		issue: ports.Issue{
			IssueID:   f.nextID,
			ProjectID: input.ProjectID,
			Title:     input.Title,
			Culprit:   input.Culprit,
			Type:      input.Type,
			Level:     input.Level,
			FirstSeen: input.Seen,
			LastSeen:  input.Seen,
		},
		hash: input.HashValue,
	}
	return f.nextID, true, nil
}

func (f *fakeIssueRepo) GetIssue(_ context.Context, issueID uint64) (ports.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.issues[issueID]
	if !ok {
		return ports.Issue{}, ports.ErrIssueNotFound
	}
	return item.issue, nil
}

func (f *fakeIssueRepo) RecordSeen(_ context.Context, counts map[uint64]uint64, seen string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for issueID, n := range counts {
		if item, ok := f.issues[issueID]; ok {
			item.issue.Count += n
			item.issue.LastSeen = seen
		}
	}
	return nil
}

func (f *fakeIssueRepo) ReopenResolved(_ context.Context, issueIDs []uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var reopened []uint64
	for _, issueID := range issueIDs {
		item, ok := f.issues[issueID]
		if !ok || item.issue.Status != ports.IssueStatusResolved {
			continue
		}
		item.issue.Status = ports.IssueStatusUnresolved
		reopened = append(reopened, issueID)
	}
	return reopened, nil
}

func (f *fakeIssueRepo) InsertEvents(_ context.Context, events []ports.IssueEventCreate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, input := range events {
		duplicate := false
		for _, existing := range f.events {
			if existing.EventID == input.EventID {
				duplicate = true
				break
			}
		}
		if !duplicate {
			f.events = append(f.events, input)
		}
	}
	return nil
}

func (f *fakeIssueRepo) CountIssueEvents(_ context.Context, issueID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, item := range f.events {
		if item.IssueID == issueID {
			count++
		}
	}
	return count, nil
}

func (f *fakeIssueRepo) ListIssueEvents(_ context.Context, issueID uint64, limit int) ([]ports.IssueEventCreate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []ports.IssueEventCreate
	for _, item := range f.events {
		if item.IssueID != issueID {
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) >= limit {
			break
		}
	}
	return items, nil
}

func (f *fakeIssueRepo) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeIssueRepo) issueCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.issues)
}

type fakeUnitOfWork struct{}

func (fakeUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]string
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.entries[key]
	return value, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	f.deletes = append(f.deletes, key)
	return nil
}

func (f *fakeCache) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]uint64
}

func (f *fakePublisher) IssuesPersisted(_ context.Context, issueIDs []uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]uint64(nil), issueIDs...))
}

func (f *fakePublisher) published() [][]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}
