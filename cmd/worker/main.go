// Command worker is the sentinel-worker-go entrypoint: it loads
// configuration, wires every pipeline component, and serves the REST/WS API
// until an interrupt or terminate signal triggers a graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"sentinel-worker-go/internal/aiclient/reasoning"
	"sentinel-worker-go/internal/aiclient/vision"
	apipkg "sentinel-worker-go/internal/api"
	"sentinel-worker-go/internal/api/ws"
	"sentinel-worker-go/internal/camera"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/decision"
	"sentinel-worker-go/internal/directive"
	"sentinel-worker-go/internal/dispatch"
	"sentinel-worker-go/internal/framesource"
	"sentinel-worker-go/internal/framestore"
	"sentinel-worker-go/internal/logging"
	"sentinel-worker-go/internal/supervisor"
	"sentinel-worker-go/pkg/anthropic"
)

const visionRatePerMinute = 50

func main() {
	cfg := config.Load()
	logging.Init(cfg)

	log.Info().Str("worker_id", cfg.WorkerID).Str("version", cfg.Version).Msg("starting sentinel-worker-go")

	registry := directive.NewRegistry()
	alertDispatcher := dispatch.New(cfg.AlertRingCapacity)
	engine := decision.New(cfg)
	store := framestore.New(cfg.FrameStoreRoot, logging.NewServiceLogger(cfg, "framestore"))

	visionClient := vision.New(cfg, anthropic.NewClient(cfg.VisionAPIKey), visionRatePerMinute, logging.NewServiceLogger(cfg, "vision"))

	var reasoningClient *reasoning.Client
	if cfg.ReasoningEnabled() {
		reasoningClient = reasoning.New(cfg, anthropic.NewClient(cfg.ReasoningAPIKey), logging.NewServiceLogger(cfg, "reasoning"))
	}

	var seq atomic.Int64
	hubs := ws.NewHubs()
	alertDispatcher.OnDrop(func(subID int, total uint64) {
		hubs.System.Publish(ws.SystemMessage{
			Event: "dispatcher_drop",
			Data:  map[string]any{"subscriber_id": subID, "total_drops": total},
		})
	})

	newWorker := func(cameraID string) *camera.Worker {
		return camera.New(cameraID, camera.Deps{
			Config:     cfg,
			Source:     buildFrameSource(cfg, cameraID),
			Store:      store,
			Vision:     visionClient,
			Reasoning:  reasoningAnalyzer(reasoningClient),
			Registry:   registry,
			Engine:     engine,
			Dispatcher: alertDispatcher,
			LiveFeed:   hubs.LiveFeed,
			Analysis:   hubs.Analysis,
			Seq:        &seq,
			Log:        logging.WithCamera(logging.NewServiceLogger(cfg, "camera"), cameraID),
		})
	}

	sup := supervisor.New(cfg, registry, alertDispatcher, newWorker, hubs.System, logging.NewServiceLogger(cfg, "supervisor"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup.StartWatchdog(ctx)

	for id := range cfg.CameraSources {
		if err := sup.StartCamera(ctx, id, false); err != nil {
			log.Error().Err(err).Str("camera_id", id).Msg("failed to auto-start configured camera")
		}
	}

	server := apipkg.NewServer(cfg, apipkg.Deps{
		Registry:   registry,
		Supervisor: sup,
		Dispatcher: alertDispatcher,
		Hubs:       hubs,
	}, logging.NewServiceLogger(cfg, "api"))

	if err := server.Setup(); err != nil {
		log.Fatal().Err(err).Msg("failed to set up API server")
	}

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server stopped unexpectedly")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	sup.Shutdown()
	cancel()

	if err := server.Stop(); err != nil {
		log.Error().Err(err).Msg("error during API server shutdown")
	}

	select {
	case <-shutdownCtx.Done():
	case <-time.After(100 * time.Millisecond):
	}

	log.Info().Msg("sentinel-worker-go stopped")
}

// reasoningAnalyzer adapts a possibly-nil *reasoning.Client to a possibly-nil
// camera.ReasoningAnalyzer: a typed nil *reasoning.Client would satisfy the
// interface non-nil, so this returns a true nil interface when reasoning is
// disabled.
func reasoningAnalyzer(c *reasoning.Client) camera.ReasoningAnalyzer {
	if c == nil {
		return nil
	}
	return c
}

// buildFrameSource picks a FrameSource implementation from a configured
// camera's source string: "file://<dir>" replays a local directory of JPEGs
// (development/tests), anything else is treated as an RTSP URL.
func buildFrameSource(cfg *config.Config, cameraID string) framesource.Source {
	src := cfg.CameraSources[cameraID]

	if dir, ok := strings.CutPrefix(src, "file://"); ok {
		interval := time.Duration(float64(time.Second) / maxFloat(cfg.CameraFPS, 0.001))
		return framesource.NewFileSource(cameraID, dir, interval)
	}

	return framesource.NewRTSPSource(cameraID, src, 1280, 720, logging.WithCamera(logging.NewServiceLogger(cfg, "rtsp"), cameraID))
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
