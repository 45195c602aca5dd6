// Package reasoning wraps the reasoning model: given an active directive,
// its baseline, the current observation, and recent history, it returns an
// event decision used to override or corroborate the vision model's verdict.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sentinel-worker-go/internal/aiclient"
	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
	"sentinel-worker-go/pkg/anthropic"
)

// ErrUnavailable is returned when no reasoning credential is configured, or
// when a specific call fails or its output could not be parsed. In every case
// the pipeline proceeds with the vision observation alone.
var ErrUnavailable = errors.New("reasoning: unavailable")

const systemPrompt = `You are a surveillance reasoning analyst. You are given a user's monitoring directive, an established baseline description (if any), the current frame's vision analysis, and a short history of recent observations. Decide whether the directive's event has occurred. Respond with ONLY a JSON object: event_occurred (bool), confidence_percentage (0-100), reasoning (string), should_alert (bool), alert_priority (one of CRITICAL, WARNING, INFO), alert_message (string). Output JSON only, no commentary.`

var temperature = 0.2

// Client analyzes an observation sequence against a directive using the
// reasoning model.
type Client struct {
	ac      anthropic.Client
	model   string
	enabled bool
	log     zerolog.Logger
}

// New constructs a reasoning Client. If cfg.ReasoningEnabled() is false, the
// returned Client reports Unavailable for every call without making one, per
// spec.md §4.4.
func New(cfg *config.Config, ac anthropic.Client, log zerolog.Logger) *Client {
	return &Client{
		ac:      ac,
		model:   cfg.ReasoningModel,
		enabled: cfg.ReasoningEnabled(),
		log:     log,
	}
}

// Enabled reports whether a reasoning credential was configured at startup.
func (c *Client) Enabled() bool {
	return c.enabled
}

// AnalyzeProgression interprets history against directive and baseline. It
// returns ErrUnavailable if no credential was configured, the model call
// failed, or the model's response could not be parsed; callers must proceed
// without a reasoning decision in each case.
func (c *Client) AnalyzeProgression(
	ctx context.Context,
	directive models.Directive,
	baseline *models.BaselineState,
	current models.VisionObservation,
	history []models.TimestampedObservation,
) (models.ReasoningDecision, error) {
	if !c.enabled {
		return models.ReasoningDecision{}, ErrUnavailable
	}

	prompt := buildPrompt(directive, baseline, current, history)

	req := anthropic.MessageRequest{
		Model:       c.model,
		MaxTokens:   512,
		System:      systemPrompt,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	}

	resp, err := c.ac.CreateMessage(ctx, req)
	if err != nil {
		c.log.Warn().Err(err).Str("directive_id", directive.ID).Msg("reasoning model call failed")
		return models.ReasoningDecision{}, ErrUnavailable
	}

	decision, ok := parseDecision(resp.Text)
	if !ok {
		c.log.Warn().Str("directive_id", directive.ID).Str("raw", resp.Text).Msg("reasoning model returned unparseable JSON")
		return models.ReasoningDecision{}, ErrUnavailable
	}

	return decision, nil
}

func buildPrompt(directive models.Directive, baseline *models.BaselineState, current models.VisionObservation, history []models.TimestampedObservation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directive: kind=%s target=%q\n", directive.Kind, directive.Target)

	if baseline != nil && baseline.Established {
		fmt.Fprintf(&b, "Baseline: %q (person_present=%v, established=%s)\n",
			baseline.StateDescription, baseline.PersonWasPresent, baseline.EstablishedAt.Format(time.RFC3339))
	} else {
		b.WriteString("Baseline: not yet established\n")
	}

	fmt.Fprintf(&b, "Current observation: %q activity=%q significance=%.0f query_match=%v query_confidence=%.0f person_present=%v\n",
		current.SceneDescription, current.Activity, current.Significance, current.QueryMatch, current.QueryConfidence, current.PersonPresent)

	b.WriteString("Recent history (oldest first):\n")
	for _, h := range history {
		fmt.Fprintf(&b, "- [%s] %q (significance=%.0f)\n", h.At.Format(time.RFC3339), h.Observation.SceneDescription, h.Observation.Significance)
	}

	return b.String()
}

type wireDecision struct {
	EventOccurred        bool    `json:"event_occurred"`
	ConfidencePercentage float64 `json:"confidence_percentage"`
	Reasoning            string  `json:"reasoning"`
	ShouldAlert          bool    `json:"should_alert"`
	AlertPriority        string  `json:"alert_priority"`
	AlertMessage         string  `json:"alert_message"`
}

func parseDecision(raw string) (models.ReasoningDecision, bool) {
	candidate, ok := aiclient.ExtractJSON(raw)
	if !ok {
		return models.ReasoningDecision{}, false
	}

	var w wireDecision
	if err := json.Unmarshal([]byte(candidate), &w); err != nil {
		return models.ReasoningDecision{}, false
	}

	priority := models.SeverityInfo
	switch strings.ToUpper(w.AlertPriority) {
	case "CRITICAL":
		priority = models.SeverityCritical
	case "WARNING":
		priority = models.SeverityWarning
	case "INFO":
		priority = models.SeverityInfo
	}

	return models.ReasoningDecision{
		EventOccurred:        w.EventOccurred,
		ConfidencePercentage: w.ConfidencePercentage,
		Reasoning:            w.Reasoning,
		ShouldAlert:          w.ShouldAlert,
		AlertPriority:        priority,
		AlertMessage:         w.AlertMessage,
	}, true
}
