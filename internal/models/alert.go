package models

import "time"

// Severity classifies an Alert's urgency.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
	SeveritySystem   Severity = "SYSTEM"
)

// String returns the string representation of Severity.
func (s Severity) String() string {
	return string(s)
}

// AlertKind distinguishes how an Alert reached the dispatcher.
type AlertKind string

const (
	AlertKindImmediate AlertKind = "immediate"
	AlertKindSummary   AlertKind = "summary"
	AlertKindSystem    AlertKind = "system"
)

// AlertSource names the component that produced the final decision behind
// an Alert.
type AlertSource string

const (
	SourceVision     AlertSource = "vision"
	SourceReasoning  AlertSource = "reasoning"
	SourceOverride   AlertSource = "override"
	SourceAggregator AlertSource = "aggregator"
)

// Alert is the dispatched record delivered to UI clients over the alerts
// push channel and served from the query API.
type Alert struct {
	ID               string      `json:"id"`
	CameraID         string      `json:"camera_id"`
	Severity         Severity    `json:"severity"`
	Kind             AlertKind   `json:"kind"`
	Title            string      `json:"title"`
	Message          string      `json:"message"`
	Confidence       float64     `json:"confidence"`
	Timestamp        time.Time   `json:"timestamp"`
	DetectedObjects  []string    `json:"detected_objects"`
	FrameURL         string      `json:"frame_url,omitempty"`
	FrameBase64      string      `json:"frame_base64,omitempty"`
	Reasons          []string    `json:"reasons"`
	Source           AlertSource `json:"source"`
	DirectiveID      string      `json:"directive_id,omitempty"`
	SequenceNo       int64       `json:"sequence_no"`
	Acknowledged     bool        `json:"acknowledged"`
}
