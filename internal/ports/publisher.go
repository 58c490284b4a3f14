package ports

import "context"

// IssuePublisher hands persisted issue ids to downstream consumers
// (alerting, search indexing). Fire-and-forget: implementations log
// failures and never block the ingest path on delivery.
type IssuePublisher interface {
	IssuesPersisted(ctx context.Context, issueIDs []uint64)
}
