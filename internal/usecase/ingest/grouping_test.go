package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"faultline/internal/domain/event"
	"faultline/internal/ports"
)

func newGroupingService(t *testing.T, issues *fakeIssueRepo, cache *fakeCache, publisher *fakePublisher) *Service {
	t.Helper()
	projects := &fakeProjectRepo{project: ports.Project{ProjectID: 1, IsAcceptingEvents: true}}
	return NewService(projects, issues, fakeUnitOfWork{}, cache, publisher, Config{})
}

func parseForTest(t *testing.T, payload string) *event.Normalized {
	t.Helper()
	n, err := event.Parse([]byte(payload), time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return n
}

func TestFlushGroupsSameHashIntoOneIssue(t *testing.T) {
	issues := newFakeIssueRepo()
	publisher := &fakePublisher{}
	svc := newGroupingService(t, issues, newFakeCache(), publisher)

	project := ports.Project{ProjectID: 1, IsAcceptingEvents: true}
	batch := []*processingEvent{
		{project: project, normalized: parseForTest(t, `{"message": "db timeout"}`)},
		{project: project, normalized: parseForTest(t, `{"message": "db timeout"}`)},
	}

	svc.flush(context.Background(), batch)

	if issues.issueCount() != 1 {
		t.Fatalf("flush created %d issues, want 1", issues.issueCount())
	}
	if issues.createCalls != 1 {
		t.Fatalf("flush create calls = %d, want 1", issues.createCalls)
	}
	if issues.eventCount() != 2 {
		t.Fatalf("flush stored %d events, want 2", issues.eventCount())
	}

	issueID := batch[0].issueID
	if issueID == 0 || batch[1].issueID != issueID {
		t.Fatalf("flush issue ids = %d, %d", batch[0].issueID, batch[1].issueID)
	}

	issue, err := issues.GetIssue(context.Background(), issueID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Count != 2 {
		t.Fatalf("issue count = %d, want 2", issue.Count)
	}
	if issue.Title != "db timeout" {
		t.Fatalf("issue title = %q", issue.Title)
	}

	published := publisher.published()
	if len(published) != 1 || len(published[0]) != 1 || published[0][0] != issueID {
		t.Fatalf("published = %v", published)
	}
}

func TestFlushSeparatesDistinctHashes(t *testing.T) {
	issues := newFakeIssueRepo()
	svc := newGroupingService(t, issues, newFakeCache(), &fakePublisher{})

	project := ports.Project{ProjectID: 1, IsAcceptingEvents: true}
	batch := []*processingEvent{
		{project: project, normalized: parseForTest(t, `{"message": "db timeout"}`)},
		{project: project, normalized: parseForTest(t, `{"message": "redis timeout"}`)},
	}

	svc.flush(context.Background(), batch)

	if issues.issueCount() != 2 {
		t.Fatalf("flush created %d issues, want 2", issues.issueCount())
	}
	if batch[0].issueID == batch[1].issueID {
		t.Fatalf("distinct messages grouped together: issue %d", batch[0].issueID)
	}
}

func TestFlushReusesExistingIssue(t *testing.T) {
	issues := newFakeIssueRepo()
	svc := newGroupingService(t, issues, newFakeCache(), &fakePublisher{})

	normalized := parseForTest(t, `{"message": "db timeout"}`)
	existingID := issues.addIssue(1, normalized.Hash(), ports.IssueStatusUnresolved)

	project := ports.Project{ProjectID: 1, IsAcceptingEvents: true}
	svc.flush(context.Background(), []*processingEvent{
		{project: project, normalized: normalized},
	})

	if issues.createCalls != 0 {
		t.Fatalf("flush create calls = %d, want 0 for known hash", issues.createCalls)
	}
	issue, err := issues.GetIssue(context.Background(), existingID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Count != 1 {
		t.Fatalf("issue count = %d, want 1", issue.Count)
	}
}

func TestFlushReopensResolvedIssueAndClearsDebounce(t *testing.T) {
	issues := newFakeIssueRepo()
	cache := newFakeCache()
	svc := newGroupingService(t, issues, cache, &fakePublisher{})

	normalized := parseForTest(t, `{"message": "db timeout"}`)
	issueID := issues.addIssue(1, normalized.Hash(), ports.IssueStatusResolved)
	if err := cache.Set(context.Background(), debounceKey(issueID), "1", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	project := ports.Project{ProjectID: 1, IsAcceptingEvents: true}
	svc.flush(context.Background(), []*processingEvent{
		{project: project, normalized: normalized},
	})

	issue, err := issues.GetIssue(context.Background(), issueID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Status != ports.IssueStatusUnresolved {
		t.Fatalf("issue status = %d after regression event", issue.Status)
	}

	deletes := cache.deleted()
	if len(deletes) != 1 || deletes[0] != debounceKey(issueID) {
		t.Fatalf("cache deletes = %v", deletes)
	}
}

func TestFlushInsertFailureLeavesCountersUntouched(t *testing.T) {
	issues := newFakeIssueRepo()
	cache := newFakeCache()
	publisher := &fakePublisher{}
	svc := newGroupingService(t, issues, cache, publisher)

	normalized := parseForTest(t, `{"message": "db timeout"}`)
	issueID := issues.addIssue(1, normalized.Hash(), ports.IssueStatusResolved)
	issues.insertErr = errors.New("disk full")

	project := ports.Project{ProjectID: 1, IsAcceptingEvents: true}
	svc.flush(context.Background(), []*processingEvent{
		{project: project, normalized: normalized},
	})

	// No event rows landed, so the counter bump, the regression reopen, the
	// debounce invalidation, and the publish must all be skipped.
	issue, err := issues.GetIssue(context.Background(), issueID)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue.Count != 0 {
		t.Fatalf("issue count = %d after failed insert, want 0", issue.Count)
	}
	if issue.Status != ports.IssueStatusResolved {
		t.Fatalf("issue status = %d after failed insert, want resolved", issue.Status)
	}
	if deletes := cache.deleted(); len(deletes) != 0 {
		t.Fatalf("cache deletes = %v after failed insert", deletes)
	}
	if published := publisher.published(); len(published) != 0 {
		t.Fatalf("published = %v after failed insert", published)
	}
}

func TestFlushScopesHashesByProject(t *testing.T) {
	issues := newFakeIssueRepo()
	svc := newGroupingService(t, issues, newFakeCache(), &fakePublisher{})

	batch := []*processingEvent{
		{project: ports.Project{ProjectID: 1, IsAcceptingEvents: true}, normalized: parseForTest(t, `{"message": "db timeout"}`)},
		{project: ports.Project{ProjectID: 2, IsAcceptingEvents: true}, normalized: parseForTest(t, `{"message": "db timeout"}`)},
	}

	svc.flush(context.Background(), batch)

	if issues.issueCount() != 2 {
		t.Fatalf("flush created %d issues, want one per project", issues.issueCount())
	}
}

func TestFlushAbsorbsRedeliveredEventIDs(t *testing.T) {
	issues := newFakeIssueRepo()
	svc := newGroupingService(t, issues, newFakeCache(), &fakePublisher{})

	payload := `{"event_id": "9ec79c33-ec99-42ab-8353-589fcb2e04dc", "message": "db timeout"}`
	project := ports.Project{ProjectID: 1, IsAcceptingEvents: true}

	svc.flush(context.Background(), []*processingEvent{
		{project: project, normalized: parseForTest(t, payload)},
	})
	svc.flush(context.Background(), []*processingEvent{
		{project: project, normalized: parseForTest(t, payload)},
	})

	if issues.eventCount() != 1 {
		t.Fatalf("flush stored %d events for one id, want 1", issues.eventCount())
	}
}
