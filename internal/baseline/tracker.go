// Package baseline implements the per-(camera, directive) baseline
// establishment logic of spec.md §4.6.
package baseline

import (
	"strings"
	"time"

	"sentinel-worker-go/internal/models"
)

// Tracker owns the BaselineState for one (camera, directive) pair. It is
// created and held exclusively by the CameraWorker that processes that
// directive on that camera; nothing shares a Tracker across goroutines.
type Tracker struct {
	stabilityFrames int
	state           models.BaselineState
	pendingDesc     string
}

// New constructs a Tracker requiring stabilityFrames consecutive consistent
// observations to establish.
func New(stabilityFrames int) *Tracker {
	if stabilityFrames < 1 {
		stabilityFrames = 1
	}
	return &Tracker{stabilityFrames: stabilityFrames}
}

// State returns the current BaselineState.
func (t *Tracker) State() models.BaselineState {
	return t.state
}

// Observe folds one VisionObservation into the tracker. Returns true the
// call on which the baseline becomes established (for emitting a
// BaselineEstablished system notification exactly once).
func (t *Tracker) Observe(obs models.VisionObservation, at time.Time) bool {
	if t.state.Established {
		return false
	}

	if t.pendingDesc == "" || !consistent(t.pendingDesc, t.state.PersonWasPresent, obs) {
		t.pendingDesc = obs.SceneDescription
		t.state.PersonWasPresent = obs.PersonPresent
		t.state.ConsistencyCounter = 1
	} else {
		t.state.ConsistencyCounter++
	}

	if t.state.ConsistencyCounter >= t.stabilityFrames {
		t.state.Established = true
		t.state.StateDescription = t.pendingDesc
		t.state.EstablishedAt = at
		return true
	}

	return false
}

// consistent implements the Jaccard-overlap-on-normalized-tokens similarity
// the spec leaves as an implementation choice: two descriptions are
// consistent if their token sets overlap at least 0.6 and person_present
// agrees.
func consistent(prevDesc string, prevPresent bool, obs models.VisionObservation) bool {
	if prevPresent != obs.PersonPresent {
		return false
	}
	return jaccard(tokenize(prevDesc), tokenize(obs.SceneDescription)) >= 0.6
}

func tokenize(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if tok != "" {
			set[tok] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
