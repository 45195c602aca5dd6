package models

import "time"

// Detection is a single object detected within a frame by the vision model.
type Detection struct {
	Label      string   `json:"label"`
	Confidence float64  `json:"confidence"`
	Box        *BBox    `json:"box,omitempty"`
}

// BBox is an optional bounding box in normalized [0,1] image coordinates.
type BBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// VisionObservation is the parsed, defaulted output of the vision model for
// one frame. Every optional field carries a zero-value default so that
// downstream consumers never need to nil-check.
type VisionObservation struct {
	SceneDescription string      `json:"scene_description"`
	Activity         string      `json:"activity"`
	Detections       []Detection `json:"detections"`
	Significance     float64     `json:"significance"`

	// Populated only when a directive was supplied to VisionClient.Analyze.
	QueryMatch      bool    `json:"query_match"`
	QueryConfidence float64 `json:"query_confidence"`
	QueryDetails    string  `json:"query_details"`

	// Populated only when a baseline description was supplied.
	BaselineMatch    bool     `json:"baseline_match"`
	StateAnalysis    string   `json:"state_analysis"`
	ChangesDetected  []string `json:"changes_detected"`
	PersonPresent    bool     `json:"person_present"`

	CapturedAt time.Time `json:"captured_at"`
}

// FailedObservation is the canonical result of an unrecoverable parse
// failure: never fatal, always logged, always a valid VisionObservation.
func FailedObservation(at time.Time) VisionObservation {
	return VisionObservation{
		SceneDescription: "Analysis failed",
		Significance:     0,
		CapturedAt:       at,
	}
}

// ReasoningDecision is the parsed output of the reasoning model for one
// (directive, observation, history) triple.
type ReasoningDecision struct {
	EventOccurred        bool    `json:"event_occurred"`
	ConfidencePercentage float64 `json:"confidence_percentage"`
	Reasoning            string  `json:"reasoning"`
	ShouldAlert          bool    `json:"should_alert"`
	AlertPriority        Severity `json:"alert_priority"`
	AlertMessage         string  `json:"alert_message"`
}

// TimestampedObservation pairs an observation with the frame it came from,
// for use in ObservationHistory windows and SummaryBucket entries.
type TimestampedObservation struct {
	Observation VisionObservation
	Frame       Frame
	At          time.Time
}
