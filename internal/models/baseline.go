package models

import "time"

// BaselineState is the per-(camera, directive) "initial state" memory used
// by BaselineTracker. Owned exclusively by the CameraWorker that created it.
type BaselineState struct {
	Established        bool
	StateDescription    string
	PersonWasPresent    bool
	EstablishedAt       time.Time
	ConsistencyCounter  int
}

// ObservationHistory is a bounded, oldest-evicted window of recent
// observations used solely as context for ReasoningClient.
type ObservationHistory struct {
	Window []TimestampedObservation
	Limit  int
}

// NewObservationHistory creates a history window bounded to limit entries.
func NewObservationHistory(limit int) *ObservationHistory {
	if limit < 1 {
		limit = 1
	}
	return &ObservationHistory{Limit: limit}
}

// Append adds an observation, evicting the oldest entry on overflow.
func (h *ObservationHistory) Append(entry TimestampedObservation) {
	h.Window = append(h.Window, entry)
	if len(h.Window) > h.Limit {
		h.Window = h.Window[len(h.Window)-h.Limit:]
	}
}

// Entries returns a copy of the current window, oldest first.
func (h *ObservationHistory) Entries() []TimestampedObservation {
	out := make([]TimestampedObservation, len(h.Window))
	copy(out, h.Window)
	return out
}
