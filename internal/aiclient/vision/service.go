// Package vision wraps the vision model: given a frame and optional
// directive/baseline context, it returns a structured VisionObservation.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"sentinel-worker-go/internal/aiclient"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/pkg/anthropic"
)

// ErrRateLimited is returned when the configured frame cadence would exceed
// the vision model's per-minute quota. The CameraWorker treats this as a
// skipped frame: no alert, no observation recorded.
var ErrRateLimited = errors.New("vision: rate limited")

// ErrTransient wraps a model/network-level failure (timeout, transport
// error, or unparseable response) that spec.md §7 classifies as "Transient
// remote"/"Protocol": skip the frame, count it toward the consecutive-failure
// streak, never alert directly.
var ErrTransient = errors.New("vision: transient remote failure")

// ErrPersistent wraps an authentication or quota failure that spec.md §7
// classifies as "Persistent remote": the CameraWorker stops calling the
// client and alerts on a fixed interval instead of counting a streak.
var ErrPersistent = errors.New("vision: persistent remote failure (authentication or quota exceeded)")

// persistentFailureSignals are substrings of a CreateMessage error that
// indicate an authentication or quota failure rather than a transient
// network/rate-limit problem. Anthropic's API error bodies surface these
// as "authentication_error"/"permission_error" messages or explicit
// credit-balance wording; matching on text is the only signal available
// without depending on SDK-internal error types.
var persistentFailureSignals = []string{"authentication", "invalid x-api-key", "permission", "credit balance", "quota"}

func isPersistentFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, signal := range persistentFailureSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}

const systemPrompt = `You are a visual surveillance analyst. Given a single camera frame, respond with ONLY a JSON object describing what you see. Fields: scene_description (string), activity (string), detections (array of {label, confidence 0-1}), significance (0-100, your own estimate of how noteworthy this frame is). If a monitoring target is given, also include query_match (bool), query_confidence (0-100), query_details (string). If a baseline description is given, also include baseline_match (bool), state_analysis (string), changes_detected (array of strings), person_present (bool). Output JSON only, no commentary.`

// Client analyzes frames against the vision model.
type Client struct {
	ac      anthropic.Client
	model   string
	limiter *rate.Limiter
	log     zerolog.Logger
}

// New constructs a vision Client. ratePerMinute is the model's enforced
// quota; the limiter refuses calls in excess of it rather than queueing them,
// since a queued frame would be stale by the time it is analyzed.
func New(cfg *config.Config, ac anthropic.Client, ratePerMinute int, log zerolog.Logger) *Client {
	if ratePerMinute < 1 {
		ratePerMinute = 1
	}
	return &Client{
		ac:      ac,
		model:   cfg.VisionModel,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), 1),
		log:     log,
	}
}

// Analyze submits frame (with optional directive target and baseline
// description) to the vision model and returns a defaulted, never-nil
// VisionObservation. Returns ErrRateLimited when the call would exceed quota,
// ErrTransient wrapping a transport/timeout/protocol failure, or ErrPersistent
// wrapping an authentication or quota failure; callers distinguish them with
// errors.Is.
func (c *Client) Analyze(ctx context.Context, frame models.Frame, directiveTarget, baselineDescription string) (models.VisionObservation, error) {
	if !c.limiter.Allow() {
		return models.VisionObservation{}, ErrRateLimited
	}

	prompt := "Analyze this frame."
	if directiveTarget != "" {
		prompt += fmt.Sprintf(" Monitoring target: %q.", directiveTarget)
	}
	if baselineDescription != "" {
		prompt += fmt.Sprintf(" Established baseline state: %q. Report whether the current frame matches it.", baselineDescription)
	}

	req := anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{
				Role:    "user",
				Content: prompt,
				Image: &anthropic.InlineImage{
					MediaType: "image/jpeg",
					Base64:    base64.StdEncoding.EncodeToString(frame.JPEGBytes),
				},
			},
		},
	}

	resp, err := c.ac.CreateMessage(ctx, req)
	if err != nil {
		if isPersistentFailure(err) {
			c.log.Error().Err(err).Str("camera_id", frame.CameraID).Msg("vision model call failed: persistent (auth/quota)")
			return models.FailedObservation(time.Now()), fmt.Errorf("%w: %v", ErrPersistent, err)
		}
		c.log.Warn().Err(err).Str("camera_id", frame.CameraID).Msg("vision model call failed: transient")
		return models.FailedObservation(time.Now()), fmt.Errorf("%w: %v", ErrTransient, err)
	}

	obs, ok := parseObservation(resp.Text)
	if !ok {
		c.log.Warn().Str("camera_id", frame.CameraID).Str("raw", resp.Text).Msg("vision model returned unparseable JSON")
		return models.FailedObservation(time.Now()), fmt.Errorf("%w: unparseable model response", ErrTransient)
	}

	obs.CapturedAt = time.Now()
	return obs, nil
}

// wireObservation mirrors VisionObservation's JSON contract but makes
// query_match a pointer so the tie-break rule (spec.md §4.3) can tell
// "omitted" apart from "false".
type wireObservation struct {
	SceneDescription string             `json:"scene_description"`
	Activity         string             `json:"activity"`
	Detections       []models.Detection `json:"detections"`
	Significance     float64            `json:"significance"`

	QueryMatch      *bool   `json:"query_match"`
	QueryConfidence float64 `json:"query_confidence"`
	QueryDetails    string  `json:"query_details"`

	BaselineMatch   bool     `json:"baseline_match"`
	StateAnalysis   string   `json:"state_analysis"`
	ChangesDetected []string `json:"changes_detected"`
	PersonPresent   bool     `json:"person_present"`
}

func parseObservation(raw string) (models.VisionObservation, bool) {
	candidate, ok := aiclient.ExtractJSON(raw)
	if !ok {
		return models.VisionObservation{}, false
	}

	var w wireObservation
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return models.VisionObservation{}, false
	}

	queryMatch := w.QueryConfidence >= 50
	if w.QueryMatch != nil {
		queryMatch = *w.QueryMatch
	}

	return models.VisionObservation{
		SceneDescription: w.SceneDescription,
		Activity:         w.Activity,
		Detections:       w.Detections,
		Significance:     w.Significance,
		QueryMatch:       queryMatch,
		QueryConfidence:  w.QueryConfidence,
		QueryDetails:     w.QueryDetails,
		BaselineMatch:    w.BaselineMatch,
		StateAnalysis:    w.StateAnalysis,
		ChangesDetected:  w.ChangesDetected,
		PersonPresent:    w.PersonPresent,
	}, true
}
