package event

import (
	"encoding/json"
)

type Frame struct {
	Filename    string         `json:"filename,omitempty"`
	Function    string         `json:"function,omitempty"`
	Module      string         `json:"module,omitempty"`
	LineNo      *int           `json:"lineno,omitempty"`
	ColNo       *int           `json:"colno,omitempty"`
	AbsPath     string         `json:"abs_path,omitempty"`
	InApp       *bool          `json:"in_app,omitempty"`
	PreContext  []string       `json:"pre_context,omitempty"`
	ContextLine *string        `json:"context_line,omitempty"`
	PostContext []string       `json:"post_context,omitempty"`
	Vars        map[string]any `json:"vars,omitempty"`
}

type StackTrace struct {
	Frames []Frame `json:"frames,omitempty"`
}

type ExceptionValue struct {
	Type       string      `json:"type,omitempty"`
	Value      string      `json:"value,omitempty"`
	Module     string      `json:"module,omitempty"`
	Stacktrace *StackTrace `json:"stacktrace,omitempty"`
}

// normalizeException accepts {values: [...]} or a bare list. A bare
// top-level stacktrace merges into the first exception value that lacks one
// (legacy SDK compatibility).
func normalizeException(raw json.RawMessage, topStacktrace json.RawMessage) ([]ExceptionValue, []ProcessingIssue) {
	var values []ExceptionValue
	var issues []ProcessingIssue

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			var wrapper struct {
				Values []ExceptionValue `json:"values"`
			}
			if err := json.Unmarshal(raw, &wrapper); err != nil {
				return nil, []ProcessingIssue{{Field: "exception", Reason: "exception is neither a list nor a values object"}}
			}
			values = wrapper.Values
		}
	}

	if len(topStacktrace) > 0 && len(values) > 0 && values[0].Stacktrace == nil {
		var trace StackTrace
		if err := json.Unmarshal(topStacktrace, &trace); err != nil {
			issues = append(issues, ProcessingIssue{Field: "stacktrace", Reason: "top-level stacktrace is malformed"})
		} else {
			values[0].Stacktrace = &trace
		}
	}

	return values, issues
}

// crashFrame picks the frame the culprit points at: the innermost in-app
// frame, else the innermost frame. Frames are ordered oldest first, so the
// scan runs from the end.
func crashFrame(frames []Frame) (Frame, bool) {
	if len(frames) == 0 {
		return Frame{}, false
	}
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].InApp != nil && *frames[i].InApp {
			return frames[i], true
		}
	}
	return frames[len(frames)-1], true
}

func frameLocation(frame Frame) string {
	function := frame.Function
	if function == "" {
		function = "?"
	}
	filename := frame.Filename
	if filename == "" {
		filename = frame.Module
	}
	if filename == "" {
		return function
	}
	return filename + " in " + function
}
