package camera

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/aiclient/vision"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/decision"
	"sentinel-worker-go/internal/directive"
	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/framestore"
	"sentinel-worker-go/internal/models"
)

// blockingSource opens immediately and blocks NextFrame until its context is
// cancelled, so a Worker can be started/stopped in a test without producing
// any real frames.
type blockingSource struct {
	openErr error
}

func (s *blockingSource) Open(ctx context.Context) error { return s.openErr }
func (s *blockingSource) NextFrame(ctx context.Context) (models.RawFrame, error) {
	<-ctx.Done()
	return models.RawFrame{}, ctx.Err()
}
func (s *blockingSource) Close() error { return nil }

// countingVision returns a fixed observation and counts calls.
type countingVision struct {
	calls atomic.Int64
	obs   models.VisionObservation
	err   error
}

func (v *countingVision) Analyze(ctx context.Context, frame models.Frame, directiveTarget, baselineDescription string) (models.VisionObservation, error) {
	v.calls.Add(1)
	return v.obs, v.err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		WorkerID:                     "test-worker",
		ObjectThreshold:              60,
		ActivityThreshold:            40,
		UndirectedImmediateThreshold: 60,
		SummaryCollectThreshold:      50,
		SummaryInterval:              time.Hour,
		BaselineStabilityFrames:      3,
		HistoryWindow:                8,
		AlertRingCapacity:            200,
		FrameStoreRoot:               t.TempDir(),
		CameraFPS:                    1000, // fast tick for tests
		ModelCallTimeout:             time.Second,
		FrameRetryBase:               time.Millisecond,
		FrameRetryCap:                10 * time.Millisecond,
		FrameRetryMax:                2,
		HealthCheckInterval:          time.Hour,
		FrameStaleThreshold:          time.Hour,
		ShutdownTimeout:              time.Second,
	}
}

func newTestWorker(t *testing.T, src *blockingSource) *Worker {
	t.Helper()
	cfg := testConfig(t)
	var seq atomic.Int64
	return New("cam-1", Deps{
		Config:     cfg,
		Source:     src,
		Store:      framestore.New(cfg.FrameStoreRoot, zerolog.Nop()),
		Vision:     &countingVision{},
		Reasoning:  nil,
		Registry:   directive.NewRegistry(),
		Engine:     decision.New(cfg),
		Dispatcher: dispatch.New(cfg.AlertRingCapacity),
		Seq:        &seq,
		Log:        zerolog.Nop(),
	})
}

func TestWorkerStartsAndStops(t *testing.T) {
	w := newTestWorker(t, &blockingSource{})

	if w.State() != StateStopped {
		t.Fatalf("expected initial state STOPPED, got %s", w.State())
	}

	w.Start(context.Background(), false)

	deadline := time.Now().Add(time.Second)
	for w.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if w.State() != StateRunning {
		t.Fatalf("expected state RUNNING after start, got %s", w.State())
	}

	w.Stop()
	if w.State() != StateStopped {
		t.Fatalf("expected state STOPPED after stop, got %s", w.State())
	}
}

func TestWorkerStartIsNoOpWhenAlreadyRunning(t *testing.T) {
	w := newTestWorker(t, &blockingSource{})
	w.Start(context.Background(), false)

	deadline := time.Now().Add(time.Second)
	for w.State() != StateRunning && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	w.Start(context.Background(), true) // should be a no-op, not flip autoStarted mid-run semantics unexpectedly
	if w.State() != StateRunning {
		t.Fatalf("expected still RUNNING, got %s", w.State())
	}

	w.Stop()
}

func TestWorkerFailsAfterBackoffExhaustedOnOpenError(t *testing.T) {
	w := newTestWorker(t, &blockingSource{openErr: context.DeadlineExceeded})
	w.Start(context.Background(), false)

	deadline := time.Now().Add(2 * time.Second)
	for w.State() != StateFailed && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if w.State() != StateFailed {
		t.Fatalf("expected state FAILED after exhausting retries, got %s", w.State())
	}
}

func TestStopOnAlreadyStoppedWorkerIsNoOp(t *testing.T) {
	w := newTestWorker(t, &blockingSource{})
	w.Stop() // should not block or panic
	if w.State() != StateStopped {
		t.Fatalf("expected STOPPED, got %s", w.State())
	}
}

func newWorkerWithVision(t *testing.T, v VisionAnalyzer) (*Worker, *dispatch.Dispatcher) {
	t.Helper()
	cfg := testConfig(t)
	d := dispatch.New(cfg.AlertRingCapacity)
	var seq atomic.Int64
	w := New("cam-1", Deps{
		Config:     cfg,
		Source:     &blockingSource{},
		Store:      framestore.New(cfg.FrameStoreRoot, zerolog.Nop()),
		Vision:     v,
		Registry:   directive.NewRegistry(),
		Engine:     decision.New(cfg),
		Dispatcher: d,
		Seq:        &seq,
		Log:        zerolog.Nop(),
	})
	return w, d
}

func hasAlertTitled(d *dispatch.Dispatcher, title string) bool {
	for _, a := range d.Recent() {
		if a.Title == title {
			return true
		}
	}
	return false
}

func TestAnalyzeVisionEmitsRemoteDegradedAfterFiveConsecutiveTransientFailures(t *testing.T) {
	w, d := newWorkerWithVision(t, &countingVision{err: vision.ErrTransient})
	frame := models.Frame{CameraID: "cam-1", CapturedAt: time.Now()}

	for i := 0; i < 5; i++ {
		if _, ok := w.analyzeVision(context.Background(), frame, "", ""); ok {
			t.Fatal("expected analyzeVision to report failure on every transient error")
		}
	}

	if !hasAlertTitled(d, "remote_degraded") {
		t.Fatal("expected a remote_degraded alert after 5 consecutive transient failures")
	}
}

func TestAnalyzeVisionRateLimitAndTransientFailuresShareOneStreak(t *testing.T) {
	v := &countingVision{err: vision.ErrRateLimited}
	w, d := newWorkerWithVision(t, v)
	frame := models.Frame{CameraID: "cam-1", CapturedAt: time.Now()}

	for i := 0; i < 4; i++ {
		w.analyzeVision(context.Background(), frame, "", "")
	}
	if hasAlertTitled(d, "remote_degraded") {
		t.Fatal("did not expect remote_degraded before the 5th consecutive failure")
	}

	v.err = vision.ErrTransient
	w.analyzeVision(context.Background(), frame, "", "")

	if !hasAlertTitled(d, "remote_degraded") {
		t.Fatal("expected rate-limit and transient failures to accumulate on the same streak")
	}
}

func TestAnalyzeVisionSuspendsCallsOnPersistentFailure(t *testing.T) {
	v := &countingVision{err: vision.ErrPersistent}
	w, d := newWorkerWithVision(t, v)
	frame := models.Frame{CameraID: "cam-1", CapturedAt: time.Now()}

	for i := 0; i < 3; i++ {
		w.analyzeVision(context.Background(), frame, "", "")
	}

	if v.calls.Load() != 1 {
		t.Fatalf("expected the vision client to be called exactly once before calls are suspended, got %d", v.calls.Load())
	}

	count := 0
	for _, a := range d.Recent() {
		if a.Title == "remote_unavailable" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one remote_unavailable alert (re-alert is throttled to once per interval), got %d", count)
	}
}
