// Package camera implements CameraWorker: the per-camera ingest loop that
// pulls frames from a FrameSource, persists them, submits them to the vision
// and reasoning clients, evaluates the DecisionEngine, and hands the result
// to either the AlertDispatcher or the SummaryAggregator. Grounded on the
// teacher's CameraLifecycle state machine, reshaped around this pipeline's
// components.
package camera

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/aiclient/vision"
	"sentinel-worker-go/internal/api/ws"
	"sentinel-worker-go/internal/baseline"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/decision"
	"sentinel-worker-go/internal/directive"
	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/framesource"
	"sentinel-worker-go/internal/framestore"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/internal/summary"
)

// persistentRemoteAlertInterval is how often a SYSTEM WARNING re-fires while
// the vision client is in a persistent (auth/quota) failure state (spec.md
// §7: "publish a SYSTEM WARNING alert every 5 minutes until a restart or new
// credential").
const persistentRemoteAlertInterval = 5 * time.Minute

// State is the CameraWorker lifecycle state machine of spec.md §4.10.
type State = models.CameraState

const (
	StateStopped  = models.CameraStopped
	StateStarting = models.CameraStarting
	StateRunning  = models.CameraRunning
	StateStopping = models.CameraStopping
	StateFailed   = models.CameraFailed
)

// VisionAnalyzer is the subset of aiclient/vision.Client the worker depends
// on, narrowed to an interface so tests can supply a stub.
type VisionAnalyzer interface {
	Analyze(ctx context.Context, frame models.Frame, directiveTarget, baselineDescription string) (models.VisionObservation, error)
}

// ReasoningAnalyzer is the subset of aiclient/reasoning.Client the worker
// depends on.
type ReasoningAnalyzer interface {
	AnalyzeProgression(ctx context.Context, directive models.Directive, baseline *models.BaselineState, current models.VisionObservation, history []models.TimestampedObservation) (models.ReasoningDecision, error)
}

// Worker runs the ingest loop for exactly one camera. Every field it
// mutates during run is owned exclusively by that goroutine, except the
// summary aggregators, which the summary timer goroutine also reads under
// summariesMu; the only other cross-goroutine access is the atomically-stored
// state and stats.
type Worker struct {
	cameraID string
	cfg      *config.Config
	log      zerolog.Logger

	source    framesource.Source
	store     *framestore.Store
	vision    VisionAnalyzer
	reasoning ReasoningAnalyzer
	registry  *directive.Registry
	engine    *decision.Engine
	dispatcher *dispatch.Dispatcher
	liveFeed  *ws.Hub
	analysis  *ws.Hub
	seq       *atomic.Int64

	baselines map[string]*baseline.Tracker // keyed by directive id
	histories map[string]*models.ObservationHistory

	summariesMu sync.Mutex
	summaries   map[string]*summary.Aggregator

	state           atomic.Value // models.CameraState
	frameCount      atomic.Int64
	errorCount      atomic.Int64
	rateLimitStreak atomic.Int64
	lastFrame       atomic.Value // time.Time
	autoStarted     bool

	persistentFailureAt   atomic.Value // time.Time; zero means vision calls are not suspended
	lastPersistentAlertAt atomic.Value // time.Time

	stopCh chan struct{}
	doneCh chan struct{}
	mu     sync.Mutex
}

// Deps bundles a Worker's collaborators so New's signature stays readable.
type Deps struct {
	Config     *config.Config
	Source     framesource.Source
	Store      *framestore.Store
	Vision     VisionAnalyzer
	Reasoning  ReasoningAnalyzer
	Registry   *directive.Registry
	Engine     *decision.Engine
	Dispatcher *dispatch.Dispatcher
	LiveFeed   *ws.Hub // optional; nil disables the live-feed push channel for this camera
	Analysis   *ws.Hub // optional; nil disables the analysis push channel for this camera
	Seq        *atomic.Int64
	Log        zerolog.Logger
}

// New constructs a stopped Worker for cameraID.
func New(cameraID string, d Deps) *Worker {
	w := &Worker{
		cameraID:   cameraID,
		cfg:        d.Config,
		log:        d.Log,
		source:     d.Source,
		store:      d.Store,
		vision:     d.Vision,
		reasoning:  d.Reasoning,
		registry:   d.Registry,
		engine:     d.Engine,
		dispatcher: d.Dispatcher,
		liveFeed:   d.LiveFeed,
		analysis:   d.Analysis,
		seq:        d.Seq,
		baselines:  make(map[string]*baseline.Tracker),
		histories:  make(map[string]*models.ObservationHistory),
		summaries:  make(map[string]*summary.Aggregator),
	}
	w.state.Store(StateStopped)
	w.lastFrame.Store(time.Time{})
	w.persistentFailureAt.Store(time.Time{})
	w.lastPersistentAlertAt.Store(time.Time{})
	return w
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() models.CameraState {
	return w.state.Load().(models.CameraState)
}

// NextSeq reserves and returns the next alert sequence number from the
// worker's Seq counter (cmd/worker shares one counter across all cameras), for
// callers outside the worker loop (e.g. the Supervisor's watchdog) that need
// to publish a SYSTEM alert for this camera without racing the worker's own
// sequencing.
func (w *Worker) NextSeq() int64 {
	return w.seq.Add(1)
}

// Stats returns a read-only snapshot for the cameras API.
func (w *Worker) Stats() models.CameraResponse {
	return models.CameraResponse{
		CameraID:      w.cameraID,
		State:         w.State(),
		FrameCount:    w.frameCount.Load(),
		ErrorCount:    w.errorCount.Load(),
		LastFrameTime: w.lastFrame.Load().(time.Time),
		FPS:           w.cfg.CameraFPS,
		AutoStarted:   w.autoStarted,
	}
}

// Start transitions a STOPPED or FAILED worker to RUNNING and begins the
// ingest loop in its own goroutine. A no-op if already RUNNING.
func (w *Worker) Start(ctx context.Context, autoStarted bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.State() == StateRunning || w.State() == StateStarting {
		return
	}

	w.autoStarted = autoStarted
	w.state.Store(StateStarting)
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go w.run(ctx)
}

// Stop signals the ingest loop to exit and blocks until it has. A no-op if
// already STOPPED.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.State() == StateStopped {
		w.mu.Unlock()
		return
	}
	w.state.Store(StateStopping)
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	<-done
	w.state.Store(StateStopped)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	backoff := framesource.BackoffPolicy{Base: w.cfg.FrameRetryBase, Cap: w.cfg.FrameRetryCap, Max: w.cfg.FrameRetryMax}

	if !w.openWithRetry(ctx, backoff) {
		w.state.Store(StateFailed)
		return
	}
	defer w.source.Close()

	w.state.Store(StateRunning)
	w.log.Info().Str("camera_id", w.cameraID).Msg("camera worker running")

	summaryDone := make(chan struct{})
	go w.runSummaryTimer(summaryDone)
	defer func() {
		w.summariesMu.Lock()
		w.summaries = make(map[string]*summary.Aggregator)
		w.summariesMu.Unlock()
	}()
	defer close(summaryDone)

	tick := time.Duration(float64(time.Second) / maxFloat(w.cfg.CameraFPS, 0.001))

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		raw, err := w.source.NextFrame(ctx)
		if err != nil {
			w.errorCount.Add(1)
			w.log.Warn().Err(err).Str("camera_id", w.cameraID).Msg("frame source failed, reopening")
			w.source.Close()
			if !w.openWithRetry(ctx, backoff) {
				w.state.Store(StateFailed)
				return
			}
			continue
		}

		w.processFrame(ctx, raw)

		select {
		case <-w.stopCh:
			return
		case <-time.After(tick):
		}
	}
}

func (w *Worker) runSummaryTimer(done <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.SummaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-w.stopCh:
			return
		case now := <-ticker.C:
			w.flushSummaries(now)
		}
	}
}

func (w *Worker) openWithRetry(ctx context.Context, backoff framesource.BackoffPolicy) bool {
	for attempt := 0; ; attempt++ {
		if err := w.source.Open(ctx); err == nil {
			return true
		} else {
			w.log.Warn().Err(err).Str("camera_id", w.cameraID).Int("attempt", attempt).Msg("frame source open failed")
		}

		if backoff.Exhausted(attempt + 1) {
			return false
		}

		select {
		case <-w.stopCh:
			return false
		case <-time.After(backoff.Delay(attempt)):
		}
	}
}

func (w *Worker) processFrame(ctx context.Context, raw models.RawFrame) {
	persisted := w.store.Save(raw.CameraID, raw.JPEGBytes, raw.CapturedAt)
	frame := models.Frame{
		CameraID:   raw.CameraID,
		CapturedAt: raw.CapturedAt,
		JPEGBytes:  raw.JPEGBytes,
		URL:        persisted.URL,
		Base64:     persisted.Base64,
		SequenceNo: raw.SequenceNo,
	}

	w.frameCount.Add(1)
	w.lastFrame.Store(raw.CapturedAt)
	w.publishLiveFeed(frame)

	directives := w.registry.ListForCamera(w.cameraID)
	if len(directives) == 0 {
		w.processUndirected(ctx, frame)
		return
	}

	for _, d := range directives {
		w.processDirected(ctx, d, frame)
	}
}

func (w *Worker) processUndirected(ctx context.Context, frame models.Frame) {
	callCtx, cancel := context.WithTimeout(ctx, w.cfg.ModelCallTimeout)
	defer cancel()

	obs, ok := w.analyzeVision(callCtx, frame, "", "")
	if !ok {
		return
	}

	d := w.engine.Evaluate(nil, obs, nil, nil)
	w.dispatchDecision(d, "", obs, frame)
}

// analyzeVision calls VisionClient.Analyze and tracks consecutive failures
// per spec.md §7's taxonomy. Rate limits, transport errors, and malformed
// responses ("Transient remote"/"Protocol") all count toward a consecutive
// streak: once it reaches five, a single SYSTEM WARNING remote_degraded
// alert fires (spec.md §8 scenario S5). An authentication or quota failure
// ("Persistent remote") instead suspends vision calls for the rest of this
// worker's lifetime, re-alerting every five minutes. Returns ok=false for
// any failure to analyze; the caller skips the frame with no other alert.
func (w *Worker) analyzeVision(ctx context.Context, frame models.Frame, directiveTarget, baselineDesc string) (models.VisionObservation, bool) {
	if failedAt := w.persistentFailureAt.Load().(time.Time); !failedAt.IsZero() {
		w.maybeReemitPersistentRemoteFailure(frame)
		return models.VisionObservation{}, false
	}

	obs, err := w.vision.Analyze(ctx, frame, directiveTarget, baselineDesc)
	if err != nil {
		if errors.Is(err, vision.ErrPersistent) {
			w.persistentFailureAt.Store(time.Now())
			w.emitPersistentRemoteFailure(frame)
			return models.VisionObservation{}, false
		}
		if streak := w.rateLimitStreak.Add(1); streak == 5 {
			w.emitRemoteDegraded(frame)
		}
		return models.VisionObservation{}, false
	}

	w.rateLimitStreak.Store(0)
	w.publishAnalysis(obs)
	return obs, true
}

// maybeReemitPersistentRemoteFailure re-publishes the remote_unavailable
// SYSTEM WARNING at most once per persistentRemoteAlertInterval while vision
// calls remain suspended.
func (w *Worker) maybeReemitPersistentRemoteFailure(frame models.Frame) {
	last := w.lastPersistentAlertAt.Load().(time.Time)
	if time.Since(last) < persistentRemoteAlertInterval {
		return
	}
	w.emitPersistentRemoteFailure(frame)
}

func (w *Worker) emitPersistentRemoteFailure(frame models.Frame) {
	w.lastPersistentAlertAt.Store(time.Now())
	alert := models.Alert{
		ID:         uuid.NewString(),
		CameraID:   w.cameraID,
		Severity:   models.SeverityWarning,
		Kind:       models.AlertKindSystem,
		Title:      "remote_unavailable",
		Message:    "vision model authentication or quota failure; no further calls will be made until restart",
		Timestamp:  frame.CapturedAt,
		Reasons:    []string{"persistent_remote_failure"},
		Source:     models.SourceAggregator,
		SequenceNo: w.seq.Add(1),
	}
	w.dispatcher.Publish(alert)
}

func (w *Worker) publishLiveFeed(frame models.Frame) {
	if w.liveFeed == nil {
		return
	}
	w.liveFeed.Publish(ws.LiveFeedMessage{
		CameraID:    w.cameraID,
		Timestamp:   frame.CapturedAt.Unix(),
		FrameBase64: frame.Base64,
	})
}

func (w *Worker) publishAnalysis(obs models.VisionObservation) {
	if w.analysis == nil {
		return
	}
	w.analysis.Publish(ws.AnalysisMessage{CameraID: w.cameraID, Observation: obs})
}

func (w *Worker) emitRemoteDegraded(frame models.Frame) {
	alert := models.Alert{
		ID:         uuid.NewString(),
		CameraID:   w.cameraID,
		Severity:   models.SeverityWarning,
		Kind:       models.AlertKindSystem,
		Title:      "remote_degraded",
		Message:    "vision model has been rate limited or unreachable for 5 consecutive frames",
		Timestamp:  frame.CapturedAt,
		Reasons:    []string{"remote_degraded"},
		Source:     models.SourceAggregator,
		SequenceNo: w.seq.Add(1),
	}
	w.dispatcher.Publish(alert)
}

func (w *Worker) processDirected(ctx context.Context, dir models.Directive, frame models.Frame) {
	tracker := w.trackerFor(dir)
	var baselinePtr *models.BaselineState
	var baselineDesc string
	if dir.RequiresBaseline && tracker != nil {
		state := tracker.State()
		baselinePtr = &state
		if state.Established {
			baselineDesc = state.StateDescription
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.ModelCallTimeout)
	obs, ok := w.analyzeVision(callCtx, frame, dir.Target, baselineDesc)
	cancel()
	if !ok {
		return
	}

	if tracker != nil && !tracker.State().Established {
		justEstablished := tracker.Observe(obs, frame.CapturedAt)
		if justEstablished {
			w.emitBaselineEstablished(dir, frame)
		}
	}

	history := w.historyFor(dir.ID)
	history.Append(models.TimestampedObservation{Observation: obs, Frame: frame, At: frame.CapturedAt})

	var reasoningPtr *models.ReasoningDecision
	if w.reasoning != nil {
		rCtx, rCancel := context.WithTimeout(ctx, w.cfg.ModelCallTimeout)
		decision, err := w.reasoning.AnalyzeProgression(rCtx, dir, baselinePtr, obs, history.Entries())
		rCancel()
		if err == nil {
			reasoningPtr = &decision
		}
	}

	var established *models.BaselineState
	if tracker != nil {
		s := tracker.State()
		established = &s
	}

	d := w.engine.Evaluate(&dir, obs, established, reasoningPtr)
	w.dispatchDecision(d, dir.ID, obs, frame)
}

func (w *Worker) dispatchDecision(d decision.Decision, directiveID string, obs models.VisionObservation, frame models.Frame) {
	switch d.Kind {
	case decision.KindImmediate:
		alert := models.Alert{
			ID:              uuid.NewString(),
			CameraID:        w.cameraID,
			Severity:        d.Severity,
			Kind:            models.AlertKindImmediate,
			Title:           obs.SceneDescription,
			Message:         obs.QueryDetails,
			Confidence:      d.FinalConfidence,
			Timestamp:       frame.CapturedAt,
			DetectedObjects: detectionLabels(obs.Detections),
			FrameURL:        frame.URL,
			FrameBase64:     frame.Base64,
			Reasons:         d.Reasons,
			Source:          d.Source,
			DirectiveID:     directiveID,
			SequenceNo:      w.seq.Add(1),
		}
		w.dispatcher.Publish(alert)

	case decision.KindSummaryCandidate:
		w.summaryFor(directiveID).Collect(obs, frame, frame.CapturedAt)
	}
}

func (w *Worker) emitBaselineEstablished(dir models.Directive, frame models.Frame) {
	alert := models.Alert{
		ID:          uuid.NewString(),
		CameraID:    w.cameraID,
		Severity:    models.SeveritySystem,
		Kind:        models.AlertKindSystem,
		Title:       "baseline_established",
		Message:     "Baseline established for directive " + dir.ID,
		Timestamp:   frame.CapturedAt,
		Reasons:     []string{"baseline_established"},
		Source:      models.SourceAggregator,
		DirectiveID: dir.ID,
		SequenceNo:  w.seq.Add(1),
	}
	w.dispatcher.Publish(alert)
}

func (w *Worker) trackerFor(dir models.Directive) *baseline.Tracker {
	if !dir.RequiresBaseline {
		return nil
	}
	t, ok := w.baselines[dir.ID]
	if !ok {
		t = baseline.New(w.cfg.BaselineStabilityFrames)
		w.baselines[dir.ID] = t
	}
	return t
}

func (w *Worker) historyFor(directiveID string) *models.ObservationHistory {
	h, ok := w.histories[directiveID]
	if !ok {
		h = models.NewObservationHistory(w.cfg.HistoryWindow)
		w.histories[directiveID] = h
	}
	return h
}

func (w *Worker) summaryFor(directiveID string) *summary.Aggregator {
	w.summariesMu.Lock()
	defer w.summariesMu.Unlock()

	a, ok := w.summaries[directiveID]
	if !ok {
		a = summary.New(w.cameraID, w.cfg.SummaryInterval, w.seq)
		w.summaries[directiveID] = a
	}
	return a
}

// flushSummaries flushes every directive's (and the undirected) summary
// bucket, publishing a summary Alert for each that had entries. Cancellation
// (the camera stopping) discards any remaining buckets without a final
// flush, per spec.md §4.8.
func (w *Worker) flushSummaries(now time.Time) {
	w.summariesMu.Lock()
	aggregators := make([]*summary.Aggregator, 0, len(w.summaries))
	for _, a := range w.summaries {
		aggregators = append(aggregators, a)
	}
	w.summariesMu.Unlock()

	for _, a := range aggregators {
		if alert, ok := a.Flush(now); ok {
			w.dispatcher.Publish(alert)
		}
	}
}

func detectionLabels(detections []models.Detection) []string {
	out := make([]string, 0, len(detections))
	for _, d := range detections {
		out = append(out, d.Label)
	}
	return out
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
