package event

import (
	"strings"
	"unicode/utf8"
)

const maxTitleValueLen = 255

// Title derives the human-readable issue title per event type.
func (n *Normalized) Title() string {
	switch n.Type {
	case TypeError:
		return n.errorTitle()
	case TypeCSP:
		if n.CSP != nil {
			return n.CSP.title()
		}
		return "<untitled>"
	default:
		if n.Message != "" {
			return n.Message
		}
		return "<untitled>"
	}
}

// CulpritValue derives the crash-location string per event type.
func (n *Normalized) CulpritValue() string {
	switch n.Type {
	case TypeError:
		return n.errorCulprit()
	case TypeCSP:
		if n.CSP != nil {
			return n.CSP.culprit()
		}
		return ""
	default:
		if n.Transaction != "" {
			return n.Transaction
		}
		return n.Culprit
	}
}

func (n *Normalized) errorTitle() string {
	exc := n.deepestException()
	value := truncate(firstLine(exc.Value), maxTitleValueLen)

	switch {
	case exc.Type != "" && value != "":
		return exc.Type + ": " + value
	case exc.Type != "":
		return exc.Type
	case value != "":
		return value
	}

	if exc.Stacktrace != nil {
		if frame, ok := crashFrame(exc.Stacktrace.Frames); ok {
			return frameLocation(frame)
		}
	}
	return "<unknown>"
}

func (n *Normalized) errorCulprit() string {
	if n.Transaction != "" {
		return n.Transaction
	}
	if n.Culprit != "" {
		return n.Culprit
	}

	exc := n.deepestException()
	if exc.Stacktrace != nil {
		if frame, ok := crashFrame(exc.Stacktrace.Frames); ok {
			return frameLocation(frame)
		}
	}
	return ""
}

// deepestException is the last entry of exception.values; SDKs order values
// outermost first, crash cause last.
func (n *Normalized) deepestException() ExceptionValue {
	if len(n.Exception) == 0 {
		return ExceptionValue{}
	}
	return n.Exception[len(n.Exception)-1]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// truncate cuts s to at most max bytes without splitting a rune; the title
// feeds the grouping hash, so it must stay valid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
