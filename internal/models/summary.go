package models

import "time"

// SummaryEntry is one observation collected into a SummaryBucket: significant
// enough to remember, not significant enough to alert on immediately.
type SummaryEntry struct {
	Observation VisionObservation
	Frame       Frame
	At          time.Time
}

// SummaryBucket accumulates SummaryEntry values for one camera between
// SummaryAggregator flushes.
type SummaryBucket struct {
	WindowStart time.Time
	Entries     []SummaryEntry
}
