package event

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"faultline/internal/domain/ingest"
)

// Envelope item types this server understands. Only "event" items are
// ingested; the rest are decoded and dropped. Anything outside this set is
// skipped for forward compatibility with future SDKs.
const (
	ItemTypeEvent        = "event"
	ItemTypeTransaction  = "transaction"
	ItemTypeSession      = "session"
	ItemTypeClientReport = "client_report"
)

var knownItemTypes = map[string]struct{}{
	ItemTypeEvent:        {},
	ItemTypeTransaction:  {},
	ItemTypeSession:      {},
	ItemTypeClientReport: {},
}

type EnvelopeHeader struct {
	EventID string          `json:"event_id"`
	DSN     string          `json:"dsn,omitempty"`
	SentAt  string          `json:"sent_at,omitempty"`
	SDK     json.RawMessage `json:"sdk,omitempty"`
}

type ItemHeader struct {
	Type        string `json:"type"`
	ContentType string `json:"content_type,omitempty"`
	Length      *int   `json:"length,omitempty"`
}

type Item struct {
	Header ItemHeader
	Body   json.RawMessage
}

type Envelope struct {
	Header EnvelopeHeader
	Items  []Item
	// Skipped lists item types that were consumed but not recognized.
	Skipped []string
}

// DecodeEnvelope reads the NDJSON envelope wire format: one header object
// followed by item header/body pairs. The decoder tolerates both real
// newline-delimited bodies and pre-concatenated JSON values.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	dec := json.NewDecoder(r)

	var header EnvelopeHeader
	if err := dec.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ingest.ValidationError{Reason: "envelope is empty"}
		}
		return nil, &ingest.ValidationError{Reason: "envelope header is not a JSON object"}
	}

	eventID, err := normalizeEnvelopeEventID(header.EventID)
	if err != nil {
		return nil, err
	}
	header.EventID = eventID

	envelope := &Envelope{Header: header}
	for {
		var itemHeader ItemHeader
		if err := dec.Decode(&itemHeader); err != nil {
			if errors.Is(err, io.EOF) {
				return envelope, nil
			}
			return nil, &ingest.ValidationError{Reason: "envelope item header is malformed"}
		}

		var body json.RawMessage
		if err := dec.Decode(&body); err != nil {
			return nil, &ingest.ValidationError{Reason: "envelope item body is missing"}
		}

		itemType := strings.TrimSpace(itemHeader.Type)
		if _, ok := knownItemTypes[itemType]; !ok {
			envelope.Skipped = append(envelope.Skipped, itemType)
			continue
		}
		itemHeader.Type = itemType
		envelope.Items = append(envelope.Items, Item{Header: itemHeader, Body: body})
	}
}

func normalizeEnvelopeEventID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &ingest.ValidationError{Reason: "envelope header requires an event_id"}
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", &ingest.ValidationError{Reason: "envelope event_id is not a valid UUID"}
	}
	return strings.ReplaceAll(parsed.String(), "-", ""), nil
}
