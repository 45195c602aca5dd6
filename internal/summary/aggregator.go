// Package summary implements the per-camera SummaryAggregator of spec.md
// §4.8: a timer-flushed bucket of observations that were significant but did
// not clear an immediate-alert threshold.
package summary

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sentinel-worker-go/internal/models"
)

// Aggregator owns one SummaryBucket for a camera; it has no timer of its own
// (the CameraWorker's summary timer goroutine calls Flush). Safe for
// concurrent Collect/Flush calls from the CameraWorker loop and that timer
// goroutine.
type Aggregator struct {
	cameraID string
	interval time.Duration

	mu     sync.Mutex
	bucket models.SummaryBucket
	seq    *atomic.Int64
}

// New constructs an Aggregator for cameraID. interval is the caller's flush
// cadence and only sets the minute count in the summary title. seq is
// a shared sequence counter so summary alerts interleave correctly with
// immediate alerts in the dispatcher's monotonic ordering.
func New(cameraID string, interval time.Duration, seq *atomic.Int64) *Aggregator {
	return &Aggregator{
		cameraID: cameraID,
		interval: interval,
		bucket:   models.SummaryBucket{WindowStart: time.Now()},
		seq:      seq,
	}
}

// Collect appends one qualifying observation/frame pair to the current
// bucket.
func (a *Aggregator) Collect(obs models.VisionObservation, frame models.Frame, at time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bucket.Entries = append(a.bucket.Entries, models.SummaryEntry{Observation: obs, Frame: frame, At: at})
}

// Flush drains the current bucket and returns the resulting Alert, or
// ok=false if the bucket was empty (no alert emitted, per spec.md §4.8 step 1).
func (a *Aggregator) Flush(now time.Time) (models.Alert, bool) {
	a.mu.Lock()
	entries := a.bucket.Entries
	a.bucket = models.SummaryBucket{WindowStart: now}
	a.mu.Unlock()

	if len(entries) == 0 {
		return models.Alert{}, false
	}

	peak := entries[0]
	for _, e := range entries[1:] {
		if e.Observation.Significance > peak.Observation.Significance {
			peak = e
		}
	}

	severity := models.SeverityWarning
	if peak.Observation.Significance >= 80 {
		severity = models.SeverityCritical
	}

	minutes := int(a.interval / time.Minute)
	title := fmt.Sprintf("Activity summary (%dm) – Camera %s", minutes, a.cameraID)

	return models.Alert{
		ID:              uuid.NewString(),
		CameraID:        a.cameraID,
		Severity:        severity,
		Kind:            models.AlertKindSummary,
		Title:           title,
		Message:         buildSummaryBody(entries),
		Confidence:      peak.Observation.Significance,
		Timestamp:       now,
		DetectedObjects: unionDetectedObjects(entries),
		FrameURL:        peak.Frame.URL,
		FrameBase64:     peak.Frame.Base64,
		Reasons:         []string{"summary_window"},
		Source:          models.SourceAggregator,
		SequenceNo:      a.seq.Add(1),
	}, true
}

func buildSummaryBody(entries []models.SummaryEntry) string {
	var b strings.Builder
	limit := len(entries)
	if limit > 5 {
		limit = 5
	}
	for _, e := range entries[:limit] {
		fmt.Fprintf(&b, "[%s] %s; ", e.At.Format("15:04:05"), e.Observation.SceneDescription)
	}
	return strings.TrimSuffix(b.String(), "; ")
}

func unionDetectedObjects(entries []models.SummaryEntry) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range entries {
		for _, d := range e.Observation.Detections {
			if _, ok := seen[d.Label]; !ok {
				seen[d.Label] = struct{}{}
				out = append(out, d.Label)
			}
		}
	}
	sort.Strings(out)
	return out
}
