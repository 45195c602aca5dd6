package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the process-wide worker configuration, populated once at startup
// from environment variables (with optional .env support) and passed by
// pointer to every component that needs it.
type Config struct {
	// Application / worker identity
	Version     string
	Environment string
	WorkerID    string
	Port        int
	LogLevel    string

	// Vision / reasoning model credentials
	VisionAPIKey    string
	ReasoningAPIKey string
	VisionModel     string
	ReasoningModel  string

	// Decision thresholds (spec.md §6)
	ObjectThreshold             int
	ActivityThreshold           int
	UndirectedImmediateThreshold int
	SummaryCollectThreshold     int
	SummaryInterval             time.Duration
	BaselineStabilityFrames     int
	HistoryWindow               int
	AlertRingCapacity           int
	FrameStoreRoot              string

	// Camera cadence
	CameraFPS float64

	// Vision/reasoning call deadlines and retry budget
	ModelCallTimeout time.Duration
	FrameRetryBase   time.Duration
	FrameRetryCap    time.Duration
	FrameRetryMax    int

	// Health / shutdown
	HealthCheckInterval time.Duration
	FrameStaleThreshold time.Duration
	ShutdownTimeout     time.Duration

	// CameraSources maps a camera id to its FrameSource URL (RTSP URL or
	// webcam index); only these ids are startable/stoppable via the API.
	CameraSources map[string]string
}

// Load builds a Config from the environment, falling back to the defaults
// documented in spec.md §6 for any key that is absent.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("No .env file found or error loading .env file, using environment variables and defaults")
	} else {
		log.Info().Msg("Loaded configuration from .env file")
	}

	return &Config{
		Version:     getEnv("VERSION", "1.0.0"),
		Environment: getEnv("ENVIRONMENT", "development"),
		WorkerID:    getEnv("WORKER_ID", "sentinel-1"),
		Port:        getEnvInt("PORT", 8000),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		VisionAPIKey:    getEnv("VISION_API_KEY", ""),
		ReasoningAPIKey: getEnv("REASONING_API_KEY", ""),
		VisionModel:     getEnv("VISION_MODEL", "claude-sonnet-4-5-20250929"),
		ReasoningModel:  getEnv("REASONING_MODEL", "claude-sonnet-4-5-20250929"),

		ObjectThreshold:              getEnvInt("OBJECT_THRESHOLD", 60),
		ActivityThreshold:            getEnvInt("ACTIVITY_THRESHOLD", 40),
		UndirectedImmediateThreshold: getEnvInt("UNDIRECTED_IMMEDIATE_THRESHOLD", 60),
		SummaryCollectThreshold:      getEnvInt("SUMMARY_COLLECT_THRESHOLD", 50),
		SummaryInterval:              getEnvDuration("SUMMARY_INTERVAL_SECONDS", 120*time.Second),
		BaselineStabilityFrames:      getEnvInt("BASELINE_STABILITY_FRAMES", 3),
		HistoryWindow:                getEnvInt("HISTORY_WINDOW", 8),
		AlertRingCapacity:            getEnvInt("ALERT_RING_CAPACITY", 200),
		FrameStoreRoot:               getEnv("FRAME_STORE_ROOT", "./event_frames"),

		CameraFPS: getEnvFloat("CAMERA_FPS", 0.033),

		ModelCallTimeout: getEnvDuration("MODEL_CALL_TIMEOUT_SECONDS", 20*time.Second),
		FrameRetryBase:   getEnvDuration("FRAME_RETRY_BASE_SECONDS", 1*time.Second),
		FrameRetryCap:    getEnvDuration("FRAME_RETRY_CAP_SECONDS", 30*time.Second),
		FrameRetryMax:    getEnvInt("FRAME_RETRY_MAX_ATTEMPTS", 6),

		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL_SECONDS", 30*time.Second),
		FrameStaleThreshold: getEnvDuration("FRAME_STALE_THRESHOLD_SECONDS", 10*time.Second),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT_SECONDS", 5*time.Second),

		CameraSources: getEnvCameraSources("CAMERA_SOURCES"),
	}
}

// getEnvCameraSources parses a comma-separated "id=url,id2=url2" list of
// cameras the worker is permitted to start/stop. A camera id absent from
// this map is unknown to the API (spec.md §6: 404 on an unknown camera).
func getEnvCameraSources(key string) map[string]string {
	out := make(map[string]string)
	raw := os.Getenv(key)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, ",") {
		idURL := strings.SplitN(pair, "=", 2)
		if len(idURL) != 2 {
			continue
		}
		out[strings.TrimSpace(idURL[0])] = strings.TrimSpace(idURL[1])
	}
	return out
}

// ReasoningEnabled reports whether a reasoning credential is configured.
// When false, ReasoningClient.AnalyzeProgression is never called (spec.md §4.4).
func (c *Config) ReasoningEnabled() bool {
	return c.ReasoningAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
