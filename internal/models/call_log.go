package models

import "time"

// CallLogEntry captures one model call, successful or not, for the
// expandable log view.
type CallLogEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Agent     string        `json:"agent"`
	Prompt    string        `json:"prompt"`
	Response  string        `json:"response,omitempty"`
	Error     string        `json:"error,omitempty"`
	Mode      OperatingMode `json:"mode"`
	Fallback  bool          `json:"fallback,omitempty"`
}

// CallRecorder receives one entry per model call. Injected into the model
// client so the core stays testable without process-wide state.
type CallRecorder interface {
	Append(entry CallLogEntry)
}
