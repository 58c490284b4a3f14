package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// messageObject is the structured form of the message interface. Params may
// be a positional list (printf-style %s) or a named mapping ({name}-style).
type messageObject struct {
	Message   string          `json:"message"`
	Formatted string          `json:"formatted"`
	Params    json.RawMessage `json:"params"`
}

func normalizeMessage(raw json.RawMessage) (string, []ProcessingIssue) {
	if len(raw) == 0 {
		return "", nil
	}

	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}

	var obj messageObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", []ProcessingIssue{{Field: "message", Reason: "message is neither a string nor an object"}}
	}
	if obj.Formatted != "" {
		return obj.Formatted, nil
	}
	if formatted, ok := substituteParams(obj.Message, obj.Params); ok {
		return formatted, nil
	}
	return obj.Message, nil
}

func substituteParams(message string, params json.RawMessage) (string, bool) {
	if len(params) == 0 || message == "" {
		return "", false
	}

	var positional []any
	if err := json.Unmarshal(params, &positional); err == nil {
		if len(positional) == 0 {
			return "", false
		}
		out := message
		for _, param := range positional {
			if !strings.Contains(out, "%s") {
				break
			}
			out = strings.Replace(out, "%s", stringifyParam(param), 1)
		}
		return out, out != message
	}

	var named map[string]any
	if err := json.Unmarshal(params, &named); err == nil {
		if len(named) == 0 {
			return "", false
		}
		out := message
		for name, param := range named {
			out = strings.ReplaceAll(out, "{"+name+"}", stringifyParam(param))
		}
		return out, out != message
	}

	return "", false
}

func stringifyParam(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%v", value)
	}
}

type Breadcrumb struct {
	Type      string         `json:"type,omitempty"`
	Category  string         `json:"category,omitempty"`
	Message   string         `json:"message,omitempty"`
	Level     string         `json:"level,omitempty"`
	Timestamp json.Number    `json:"timestamp,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// normalizeBreadcrumbs accepts a bare list or {values: [...]}. Individual
// invalid crumbs are dropped, never fatal to the event.
func normalizeBreadcrumbs(raw json.RawMessage) ([]Breadcrumb, []ProcessingIssue) {
	if len(raw) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var wrapper struct {
			Values []json.RawMessage `json:"values"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, []ProcessingIssue{{Field: "breadcrumbs", Reason: "breadcrumbs is neither a list nor a values object"}}
		}
		items = wrapper.Values
	}

	var crumbs []Breadcrumb
	var issues []ProcessingIssue
	for i, item := range items {
		var crumb Breadcrumb
		if err := json.Unmarshal(item, &crumb); err != nil {
			issues = append(issues, ProcessingIssue{
				Field:  "breadcrumbs",
				Reason: fmt.Sprintf("breadcrumb %d is not an object", i),
			})
			continue
		}
		crumbs = append(crumbs, crumb)
	}
	return crumbs, issues
}

// normalizeTags accepts a mapping or a list of {key, value} pairs.
// Non-string values are stringified; entries without a key are dropped.
func normalizeTags(raw json.RawMessage) (map[string]string, []ProcessingIssue) {
	if len(raw) == 0 {
		return nil, nil
	}

	var mapping map[string]any
	if err := json.Unmarshal(raw, &mapping); err == nil {
		if len(mapping) == 0 {
			return nil, nil
		}
		tags := make(map[string]string, len(mapping))
		for key, value := range mapping {
			tags[key] = stringifyParam(value)
		}
		return tags, nil
	}

	var pairs []struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, []ProcessingIssue{{Field: "tags", Reason: "tags is neither a mapping nor a list of pairs"}}
	}

	tags := make(map[string]string, len(pairs))
	var issues []ProcessingIssue
	for i, pair := range pairs {
		if pair.Key == "" {
			issues = append(issues, ProcessingIssue{
				Field:  "tags",
				Reason: fmt.Sprintf("tag %d has no key", i),
			})
			continue
		}
		tags[pair.Key] = stringifyParam(pair.Value)
	}
	if len(tags) == 0 {
		return nil, issues
	}
	return tags, issues
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

// normalizeTimestamp accepts an ISO datetime string or unix epoch seconds.
// Absent or unparseable values fall back to ingest time.
func normalizeTimestamp(raw json.RawMessage, now time.Time) (time.Time, *ProcessingIssue) {
	if len(raw) == 0 {
		return now.UTC(), nil
	}

	var epoch float64
	if err := json.Unmarshal(raw, &epoch); err == nil {
		sec, frac := int64(epoch), epoch-float64(int64(epoch))
		return time.Unix(sec, int64(frac*float64(time.Second))).UTC(), nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, text); err == nil {
				return ts.UTC(), nil
			}
		}
	}

	return now.UTC(), &ProcessingIssue{Field: "timestamp", Reason: "timestamp is not ISO datetime or epoch seconds"}
}
