// Package messaging hands persisted issue ids to downstream consumers
// (alerting, search indexing) over NATS. Delivery is fire-and-forget: the
// ingest path never blocks or fails on the broker.
package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
	"faultline/internal/ports"
)

const DefaultSubject = "faultline.issues.persisted"

type persistedMessage struct {
	IssueIDs    []uint64 `json:"issue_ids"`
	PersistedAt string   `json:"persisted_at"`
}

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

var _ ports.IssuePublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(url string, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("faultline-ingest"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errs.Wrap(err, "connect nats")
	}

	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) IssuesPersisted(ctx context.Context, issueIDs []uint64) {
	if len(issueIDs) == 0 {
		return
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "messaging.nats"))

	payload, err := json.Marshal(persistedMessage{
		IssueIDs:    issueIDs,
		PersistedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		logging.Warn(logCtx, "marshal persisted-issue message failed", slog.Any("err", errs.Loggable(err)))
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		logging.Warn(logCtx, "publish persisted-issue message failed",
			slog.String("subject", p.subject),
			slog.Any("err", errs.Loggable(err)))
	}
}

func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

var _ ports.IssuePublisher = NoopPublisher{}

func (NoopPublisher) IssuesPersisted(context.Context, []uint64) {}
