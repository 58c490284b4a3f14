// Package event normalizes the loosely-typed payloads client SDKs send into
// a closed set of typed variants and derives the title, culprit, and
// grouping hash each event is deduplicated by. Everything here is pure
// computation; shape branching happens once at parse time.
package event

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"faultline/internal/domain/ingest"
)

type Type int8

const (
	TypeDefault Type = 0
	TypeError   Type = 1
	TypeCSP     Type = 2
)

func (t Type) String() string {
	switch t {
	case TypeError:
		return "error"
	case TypeCSP:
		return "csp"
	default:
		return "default"
	}
}

// ProcessingIssue records a non-fatal problem found while normalizing a
// payload. Attached to the stored event instead of aborting ingestion.
type ProcessingIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type User struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`
}

// Normalized is the single post-parse representation of an inbound event.
type Normalized struct {
	EventID     string            `json:"event_id"`
	Type        Type              `json:"type"`
	Timestamp   time.Time         `json:"timestamp"`
	Platform    string            `json:"platform,omitempty"`
	Level       string            `json:"level,omitempty"`
	Message     string            `json:"message,omitempty"`
	Transaction string            `json:"transaction,omitempty"`
	Culprit     string            `json:"culprit,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Release     string            `json:"release,omitempty"`
	ServerName  string            `json:"server_name,omitempty"`
	Fingerprint []string          `json:"fingerprint,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Exception   []ExceptionValue  `json:"exception,omitempty"`
	Breadcrumbs []Breadcrumb      `json:"breadcrumbs,omitempty"`
	User        *User             `json:"user,omitempty"`
	Extra       map[string]any    `json:"extra,omitempty"`
	CSP         *CSPReport        `json:"csp,omitempty"`

	ProcessingIssues []ProcessingIssue `json:"processing_issues,omitempty"`
}

type rawPayload struct {
	EventID     string          `json:"event_id"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Platform    string          `json:"platform"`
	Level       string          `json:"level"`
	Message     json.RawMessage `json:"message"`
	LogEntry    json.RawMessage `json:"logentry"`
	Transaction string          `json:"transaction"`
	Culprit     string          `json:"culprit"`
	Environment string          `json:"environment"`
	Release     string          `json:"release"`
	ServerName  string          `json:"server_name"`
	Fingerprint []string        `json:"fingerprint"`
	Tags        json.RawMessage `json:"tags"`
	Exception   json.RawMessage `json:"exception"`
	Stacktrace  json.RawMessage `json:"stacktrace"`
	Breadcrumbs json.RawMessage `json:"breadcrumbs"`
	User        *User           `json:"user"`
	Extra       map[string]any  `json:"extra"`
	CSPReport   json.RawMessage `json:"csp-report"`
}

// Parse validates and normalizes one raw JSON event. now is the ingest time
// used when the payload carries no usable timestamp. A missing event_id is
// filled with a server-assigned one.
func Parse(raw []byte, now time.Time) (*Normalized, error) {
	var payload rawPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &ingest.ValidationError{Reason: "event payload is not a JSON object"}
	}

	n := &Normalized{
		Platform:    payload.Platform,
		Level:       strings.ToLower(strings.TrimSpace(payload.Level)),
		Transaction: strings.TrimSpace(payload.Transaction),
		Culprit:     strings.TrimSpace(payload.Culprit),
		Environment: payload.Environment,
		Release:     payload.Release,
		ServerName:  payload.ServerName,
		Fingerprint: payload.Fingerprint,
		User:        payload.User,
		Extra:       payload.Extra,
	}
	if n.Level == "" {
		n.Level = "error"
	}

	eventID, err := normalizeEventID(payload.EventID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		eventID = NewEventID()
	}
	n.EventID = eventID

	ts, issue := normalizeTimestamp(payload.Timestamp, now)
	n.Timestamp = ts
	if issue != nil {
		n.ProcessingIssues = append(n.ProcessingIssues, *issue)
	}

	message := payload.Message
	if len(message) == 0 {
		message = payload.LogEntry
	}
	msg, issues := normalizeMessage(message)
	n.Message = msg
	n.ProcessingIssues = append(n.ProcessingIssues, issues...)

	tags, issues := normalizeTags(payload.Tags)
	n.Tags = tags
	n.ProcessingIssues = append(n.ProcessingIssues, issues...)

	crumbs, issues := normalizeBreadcrumbs(payload.Breadcrumbs)
	n.Breadcrumbs = crumbs
	n.ProcessingIssues = append(n.ProcessingIssues, issues...)

	values, issues := normalizeException(payload.Exception, payload.Stacktrace)
	n.Exception = values
	n.ProcessingIssues = append(n.ProcessingIssues, issues...)

	switch {
	case len(n.Exception) > 0:
		n.Type = TypeError
	case len(payload.CSPReport) > 0:
		report, err := ParseCSPReport(payload.CSPReport)
		if err != nil {
			return nil, err
		}
		n.Type = TypeCSP
		n.CSP = report
		if n.Level == "error" {
			n.Level = "info"
		}
	default:
		n.Type = TypeDefault
	}

	return n, nil
}

// NewEventID returns a server-assigned event id in the 32-char hex form.
func NewEventID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func normalizeEventID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return "", &ingest.ValidationError{Reason: "event_id is not a valid UUID"}
	}
	return strings.ReplaceAll(parsed.String(), "-", ""), nil
}
