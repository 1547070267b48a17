package models

import "time"

// FailureReason explains why a probe produced no round-trip time
type FailureReason string

const (
	FailureTimeout     FailureReason = "timeout"
	FailureUnreachable FailureReason = "unreachable"
)

// Sample is a single probe outcome for a target
type Sample struct {
	TargetID  string        `json:"target_id"`
	Timestamp time.Time     `json:"timestamp"`
	Success   bool          `json:"success"`
	RTT       float64       `json:"rtt_ms"` // milliseconds, 0 when failed
	Failure   FailureReason `json:"failure,omitempty"`
	Error     string        `json:"error_message,omitempty"`
}

// Loss reports whether the sample counts as lost
func (s Sample) Loss() bool {
	return !s.Success
}
