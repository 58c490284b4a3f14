package event

import (
	"errors"
	"testing"
	"time"

	"faultline/internal/domain/ingest"
)

var ingestTime = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func TestParseMessageOnlyEvent(t *testing.T) {
	n, err := Parse([]byte(`{"message": "hi"}`), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Type != TypeDefault {
		t.Fatalf("Parse() type = %v", n.Type)
	}
	if n.Message != "hi" {
		t.Fatalf("Parse() message = %q", n.Message)
	}
	if n.Level != "error" {
		t.Fatalf("Parse() level = %q", n.Level)
	}
	if len(n.EventID) != 32 {
		t.Fatalf("Parse() event_id = %q, want server-assigned 32-char hex", n.EventID)
	}
	if !n.Timestamp.Equal(ingestTime) {
		t.Fatalf("Parse() timestamp = %v", n.Timestamp)
	}
}

func TestParseNormalizesEventID(t *testing.T) {
	n, err := Parse([]byte(`{"event_id": "A7C98080-2EF5-4E64-9AFE-A3BF87AD8C39", "message": "x"}`), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.EventID != "a7c980802ef54e649afea3bf87ad8c39" {
		t.Fatalf("Parse() event_id = %q", n.EventID)
	}
}

func TestParseRejectsBadEventID(t *testing.T) {
	_, err := Parse([]byte(`{"event_id": "not-a-uuid"}`), ingestTime)
	var validationErr *ingest.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Parse() error = %v, want validation error", err)
	}
}

func TestParseRejectsNonObjectPayload(t *testing.T) {
	_, err := Parse([]byte(`[1, 2, 3]`), ingestTime)
	var validationErr *ingest.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Parse() error = %v, want validation error", err)
	}
}

func TestParseSelectsErrorTypeForException(t *testing.T) {
	payload := `{
		"exception": {"values": [{"type": "ValueError", "value": "boom"}]},
		"message": "ignored for typing"
	}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Type != TypeError {
		t.Fatalf("Parse() type = %v", n.Type)
	}
	if len(n.Exception) != 1 || n.Exception[0].Type != "ValueError" {
		t.Fatalf("Parse() exception = %+v", n.Exception)
	}
}

func TestParseSelectsCSPType(t *testing.T) {
	payload := `{"csp-report": {"effective-directive": "script-src", "blocked-uri": "https://evil.example/x.js"}}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Type != TypeCSP {
		t.Fatalf("Parse() type = %v", n.Type)
	}
	if n.Level != "info" {
		t.Fatalf("Parse() level = %q, want csp default info", n.Level)
	}
	if n.CSP == nil || n.CSP.EffectiveDirective != "script-src" {
		t.Fatalf("Parse() csp = %+v", n.CSP)
	}
}

func TestParseKeepsExplicitCSPLevel(t *testing.T) {
	payload := `{"level": "warning", "csp-report": {"effective-directive": "img-src"}}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Level != "warning" {
		t.Fatalf("Parse() level = %q", n.Level)
	}
}

func TestParseMessageObjectFormatted(t *testing.T) {
	payload := `{"message": {"message": "user %s failed", "formatted": "user alice failed"}}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Message != "user alice failed" {
		t.Fatalf("Parse() message = %q", n.Message)
	}
}

func TestParseMessagePositionalParams(t *testing.T) {
	payload := `{"logentry": {"message": "user %s failed %s times", "params": ["alice", 3]}}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Message != "user alice failed 3 times" {
		t.Fatalf("Parse() message = %q", n.Message)
	}
}

func TestParseMessageNamedParams(t *testing.T) {
	payload := `{"message": {"message": "job {name} exited", "params": {"name": "sync"}}}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Message != "job sync exited" {
		t.Fatalf("Parse() message = %q", n.Message)
	}
}

func TestParseTimestampEpoch(t *testing.T) {
	n, err := Parse([]byte(`{"timestamp": 1756036800.5, "message": "x"}`), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := time.Unix(1756036800, int64(500*time.Millisecond)).UTC()
	if !n.Timestamp.Equal(want) {
		t.Fatalf("Parse() timestamp = %v, want %v", n.Timestamp, want)
	}
}

func TestParseTimestampISO(t *testing.T) {
	n, err := Parse([]byte(`{"timestamp": "2026-08-20T10:30:00", "message": "x"}`), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := time.Date(2026, 8, 20, 10, 30, 0, 0, time.UTC)
	if !n.Timestamp.Equal(want) {
		t.Fatalf("Parse() timestamp = %v", n.Timestamp)
	}
}

func TestParseTimestampGarbageFallsBack(t *testing.T) {
	n, err := Parse([]byte(`{"timestamp": "yesterday", "message": "x"}`), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !n.Timestamp.Equal(ingestTime) {
		t.Fatalf("Parse() timestamp = %v, want ingest time", n.Timestamp)
	}
	if len(n.ProcessingIssues) != 1 || n.ProcessingIssues[0].Field != "timestamp" {
		t.Fatalf("Parse() processing issues = %+v", n.ProcessingIssues)
	}
}

func TestParseTagsMapping(t *testing.T) {
	n, err := Parse([]byte(`{"tags": {"browser": "firefox", "attempt": 2}, "message": "x"}`), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Tags["browser"] != "firefox" || n.Tags["attempt"] != "2" {
		t.Fatalf("Parse() tags = %+v", n.Tags)
	}
}

func TestParseTagsPairList(t *testing.T) {
	payload := `{"tags": [{"key": "browser", "value": "firefox"}, {"value": "dropped"}], "message": "x"}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(n.Tags) != 1 || n.Tags["browser"] != "firefox" {
		t.Fatalf("Parse() tags = %+v", n.Tags)
	}
	if len(n.ProcessingIssues) != 1 || n.ProcessingIssues[0].Field != "tags" {
		t.Fatalf("Parse() processing issues = %+v", n.ProcessingIssues)
	}
}

func TestParseBreadcrumbsWrapperAndList(t *testing.T) {
	wrapped := `{"breadcrumbs": {"values": [{"message": "clicked", "category": "ui"}]}, "message": "x"}`
	n, err := Parse([]byte(wrapped), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(n.Breadcrumbs) != 1 || n.Breadcrumbs[0].Category != "ui" {
		t.Fatalf("Parse() breadcrumbs = %+v", n.Breadcrumbs)
	}

	bare := `{"breadcrumbs": [{"message": "a"}, "junk", {"message": "b"}], "message": "x"}`
	n, err = Parse([]byte(bare), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(n.Breadcrumbs) != 2 {
		t.Fatalf("Parse() breadcrumbs len = %d", len(n.Breadcrumbs))
	}
	if len(n.ProcessingIssues) != 1 || n.ProcessingIssues[0].Field != "breadcrumbs" {
		t.Fatalf("Parse() processing issues = %+v", n.ProcessingIssues)
	}
}

func TestParseMergesTopLevelStacktrace(t *testing.T) {
	payload := `{
		"exception": [{"type": "TypeError", "value": "x is undefined"}],
		"stacktrace": {"frames": [{"filename": "app.js", "function": "boot"}]}
	}`
	n, err := Parse([]byte(payload), ingestTime)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if n.Exception[0].Stacktrace == nil || len(n.Exception[0].Stacktrace.Frames) != 1 {
		t.Fatalf("Parse() stacktrace not merged: %+v", n.Exception[0])
	}
}
