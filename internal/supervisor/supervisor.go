// Package supervisor implements the Supervisor: the top-level component
// that owns every CameraWorker, starts/stops cameras in response to
// directive changes, and runs the stale-camera watchdog. Grounded on the
// teacher's CameraManager (map[string]*CameraLifecycle + runWatchdog).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/api/ws"
	"sentinel-worker-go/internal/camera"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/directive"
	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/models"
)

// ErrUnknownCamera is returned by StartCamera/StopCamera for a camera id that
// was not present in CAMERA_SOURCES at startup (GetCamera reports ok=false
// instead).
var ErrUnknownCamera = errors.New("supervisor: unknown camera")

// WorkerFactory constructs a *camera.Worker for cameraID. Supervisor doesn't
// know about FrameSource/VisionClient/ReasoningClient construction details;
// it only knows how to start, stop, and watch workers it's handed.
type WorkerFactory func(cameraID string) *camera.Worker

// Supervisor owns every known camera's Worker and reacts to directive
// registry changes by starting/stopping cameras.
type Supervisor struct {
	cfg      *config.Config
	registry *directive.Registry
	dispatcher *dispatch.Dispatcher
	newWorker WorkerFactory
	log      zerolog.Logger
	systemHub *ws.Hub // optional; nil disables the system push channel

	mu      sync.RWMutex
	workers map[string]*camera.Worker

	processedDirectives sync.Map // directive id -> struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs a Supervisor with one stopped Worker pre-created for every
// id in cfg.CameraSources; StartCamera/StopCamera reject any other id with
// ErrUnknownCamera, and GetCamera reports it as not found.
func New(cfg *config.Config, registry *directive.Registry, dispatcher *dispatch.Dispatcher, newWorker WorkerFactory, systemHub *ws.Hub, log zerolog.Logger) *Supervisor {
	s := &Supervisor{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		newWorker:  newWorker,
		systemHub:  systemHub,
		log:        log,
		workers:    make(map[string]*camera.Worker),
		stopCh:     make(chan struct{}),
	}

	for id := range cfg.CameraSources {
		s.workers[id] = newWorker(id)
	}

	return s
}

// publishSystem is a no-op when the supervisor was constructed without a
// system hub (systemHub == nil).
func (s *Supervisor) publishSystem(event string, data any) {
	if s.systemHub == nil {
		return
	}
	s.systemHub.Publish(ws.SystemMessage{Event: event, Data: data})
}

// KnownCameraIDs returns every camera id configured via CAMERA_SOURCES.
func (s *Supervisor) KnownCameraIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.workers))
	for id := range s.workers {
		out = append(out, id)
	}
	return out
}

// StartWatchdog begins the periodic stale-camera health check in its own
// goroutine, grounded on the teacher's runWatchdog/checkCameraHealth.
func (s *Supervisor) StartWatchdog(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.checkCameraHealth(ctx)
			}
		}
	}()
}

func (s *Supervisor) checkCameraHealth(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for id, w := range s.workers {
		stats := w.Stats()
		if stats.State != camera.StateRunning || stats.LastFrameTime.IsZero() {
			continue
		}
		if now.Sub(stats.LastFrameTime) > s.cfg.FrameStaleThreshold {
			s.log.Warn().Str("camera_id", id).Dur("since_last_frame", now.Sub(stats.LastFrameTime)).Msg("camera stale, restarting")
			s.dispatcher.Publish(models.Alert{
				ID:         uuid.NewString(),
				CameraID:   id,
				Severity:   models.SeverityWarning,
				Kind:       models.AlertKindSystem,
				Title:      "camera_stale_restart",
				Message:    fmt.Sprintf("camera %s produced no frame for %s, restarting", id, now.Sub(stats.LastFrameTime)),
				Timestamp:  now,
				Reasons:    []string{"watchdog_restart"},
				Source:     models.SourceAggregator,
				SequenceNo: w.NextSeq(),
			})
			s.publishSystem("camera_stale_restart", map[string]any{"camera_id": id})
			w.Stop()
			w.Start(ctx, stats.AutoStarted)
		}
	}
}

// StartCamera starts cameraID if it is not already RUNNING. A no-op if it
// already is (spec.md §8 round-trip property). Returns ErrUnknownCamera for
// an id outside CAMERA_SOURCES.
func (s *Supervisor) StartCamera(ctx context.Context, cameraID string, autoStarted bool) error {
	s.mu.RLock()
	w, ok := s.workers[cameraID]
	s.mu.RUnlock()
	if !ok {
		return ErrUnknownCamera
	}

	if w.State() == camera.StateRunning {
		return nil
	}
	w.Start(ctx, autoStarted)
	s.publishSystem("camera_started", map[string]any{"camera_id": cameraID, "auto_started": autoStarted})
	return nil
}

// StopCamera stops cameraID if it is not already STOPPED. A no-op if
// already stopped. Returns ErrUnknownCamera for an id outside
// CAMERA_SOURCES.
func (s *Supervisor) StopCamera(cameraID string) error {
	s.mu.RLock()
	w, ok := s.workers[cameraID]
	s.mu.RUnlock()
	if !ok {
		return ErrUnknownCamera
	}
	w.Stop()
	s.publishSystem("camera_stopped", map[string]any{"camera_id": cameraID})
	return nil
}

// GetCamera returns a camera's stats, or ok=false if it is unknown.
func (s *Supervisor) GetCamera(cameraID string) (models.CameraResponse, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workers[cameraID]
	if !ok {
		return models.CameraResponse{}, false
	}
	return w.Stats(), true
}

// ListCameras returns every known camera's stats.
func (s *Supervisor) ListCameras() []models.CameraResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.CameraResponse, 0, len(s.workers))
	for _, w := range s.workers {
		out = append(out, w.Stats())
	}
	return out
}

// ProcessDirective applies a newly added Directive's auto-start policy:
// every camera in its scope is started if not already running. Re-processing
// the same directive id is a no-op (spec.md §8 round-trip property).
func (s *Supervisor) ProcessDirective(ctx context.Context, dir models.Directive, knownCameraIDs []string) {
	if _, already := s.processedDirectives.LoadOrStore(dir.ID, struct{}{}); already {
		return
	}

	for _, id := range knownCameraIDs {
		if dir.CameraScope.Matches(id) {
			_ = s.StartCamera(ctx, id, true)
		}
	}
	s.publishSystem("directive_processed", map[string]any{"directive_id": dir.ID})
}

// RemoveDirective forgets dir.ID so it can be reprocessed if re-added, and
// stops any camera that was auto-started solely for it and has no other
// active directives remaining.
func (s *Supervisor) RemoveDirective(dir models.Directive) {
	s.processedDirectives.Delete(dir.ID)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, w := range s.workers {
		if !w.Stats().AutoStarted || !dir.CameraScope.Matches(id) {
			continue
		}
		if len(s.registry.ListForCamera(id)) == 0 {
			w.Stop()
		}
	}
	s.publishSystem("directive_removed", map[string]any{"directive_id": dir.ID})
}

// Shutdown stops every camera and the watchdog.
func (s *Supervisor) Shutdown() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.RLock()
	workers := make([]*camera.Worker, 0, len(s.workers))
	for _, w := range s.workers {
		workers = append(workers, w)
	}
	s.mu.RUnlock()

	for _, w := range workers {
		w.Stop()
	}
	s.publishSystem("shutdown", nil)
}

