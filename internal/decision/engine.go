// Package decision implements the layered DecisionEngine of spec.md §4.7: a
// pure, synchronous function from one observation (plus directive/baseline/
// reasoning context) to at most one alert-worthy Decision.
package decision

import (
	"fmt"
	"regexp"
	"strings"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
)

// Kind classifies a Decision's disposition.
type Kind string

const (
	KindImmediate       Kind = "immediate"
	KindSummaryCandidate Kind = "summary-candidate"
	KindNone             Kind = "none"
)

// Decision is the DecisionEngine's output. ShouldAlert=true implies
// Kind=KindImmediate; Kind=KindSummaryCandidate implies ShouldAlert=false.
// These two sets are disjoint by construction (spec.md §4.7 invariant).
type Decision struct {
	ShouldAlert     bool
	Severity        models.Severity
	Kind            Kind
	FinalConfidence float64
	Reasons         []string
	Source          models.AlertSource
}

// hazardKeywords is H from spec.md §4.7 Layer A. Kept as a package variable,
// not a constant, because it is documented as a tunable policy input (an
// Open Question the spec declines to resolve): "unusual" and "anomaly" are
// as over-broad as "weapon" under the source's original behaviour.
var hazardKeywords = []string{
	"weapon", "gun", "knife", "violence", "fight", "attack", "threat",
	"dangerous", "hazard", "fire", "smoke", "blood", "injury", "fall",
	"accident", "emergency", "suspicious", "intruder", "break", "damage",
	"vandal", "unusual", "anomaly",
}

var hazardPattern = buildHazardPattern(hazardKeywords)

func buildHazardPattern(words []string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + strings.Join(words, "|") + `)\b`)
}

// Engine evaluates observations against spec.md §4.7's layered policy. It
// holds no per-camera state; every field is a configuration constant.
type Engine struct {
	objectThreshold    float64
	activityThreshold  float64
	undirectedThreshold float64
	summaryThreshold   float64
}

// New builds an Engine from cfg's thresholds.
func New(cfg *config.Config) *Engine {
	return &Engine{
		objectThreshold:      float64(cfg.ObjectThreshold),
		activityThreshold:    float64(cfg.ActivityThreshold),
		undirectedThreshold:  float64(cfg.UndirectedImmediateThreshold),
		summaryThreshold:     float64(cfg.SummaryCollectThreshold),
	}
}

// Evaluate runs the layered decision over one observation. directive and
// baseline may be nil (no active directive, or baseline not yet
// established); reasoning may be nil (disabled, unavailable, or not yet
// returned for this tick).
func (e *Engine) Evaluate(
	directive *models.Directive,
	obs models.VisionObservation,
	baseline *models.BaselineState,
	reasoning *models.ReasoningDecision,
) Decision {
	if d, ok := e.layerA(obs); ok {
		return d
	}

	if d, ok := e.layerB(directive, obs, baseline); ok {
		return d
	}

	if d, ok := e.layerC(obs, reasoning); ok {
		return d
	}

	if d, ok := e.layerD(directive, obs); ok {
		return d
	}

	if d, ok := e.layerE(directive, obs); ok {
		return d
	}

	return e.layerF(obs)
}

// layerA is the hazard keyword override: always active, no directive
// required.
func (e *Engine) layerA(obs models.VisionObservation) (Decision, bool) {
	haystack := obs.SceneDescription + " " + obs.Activity
	match := hazardPattern.FindString(haystack)
	if match == "" {
		return Decision{}, false
	}

	confidence := obs.Significance
	if confidence < 60 {
		confidence = 60
	}

	return Decision{
		ShouldAlert:     true,
		Severity:        models.SeverityCritical,
		Kind:            KindImmediate,
		FinalConfidence: confidence,
		Reasons:         []string{fmt.Sprintf("hazard_keyword:%s", strings.ToLower(match))},
		Source:          models.SourceVision,
	}, true
}

// layerB is the activity-detection emergency override: a baseline-established
// person disappearing forces confidence 95 regardless of the vision model's
// own confidence. This is policy, not a computed value (spec.md §9), so it
// is modeled as its own tagged branch rather than folded into a numeric path.
func (e *Engine) layerB(directive *models.Directive, obs models.VisionObservation, baseline *models.BaselineState) (Decision, bool) {
	if directive == nil || directive.Kind != models.DirectiveActivityDetection {
		return Decision{}, false
	}
	if baseline == nil || !baseline.Established || !baseline.PersonWasPresent {
		return Decision{}, false
	}

	currentHasPerson := obs.PersonPresent && !strings.Contains(strings.ToLower(obs.SceneDescription), "no person")
	if currentHasPerson {
		return Decision{}, false
	}

	return Decision{
		ShouldAlert:     true,
		Severity:        models.SeverityCritical,
		Kind:            KindImmediate,
		FinalConfidence: 95,
		Reasons:         []string{"presence_lost_override"},
		Source:          models.SourceOverride,
	}, true
}

// layerC is the reasoning override: adopted only when the reasoning model's
// confidence exceeds the vision model's own query confidence.
func (e *Engine) layerC(obs models.VisionObservation, reasoning *models.ReasoningDecision) (Decision, bool) {
	if reasoning == nil || !reasoning.ShouldAlert {
		return Decision{}, false
	}
	if reasoning.ConfidencePercentage <= obs.QueryConfidence {
		return Decision{}, false
	}

	return Decision{
		ShouldAlert:     true,
		Severity:        reasoning.AlertPriority,
		Kind:            KindImmediate,
		FinalConfidence: reasoning.ConfidencePercentage,
		Reasons:         []string{"reasoning_override"},
		Source:          models.SourceReasoning,
	}, true
}

// layerD consults the active directive's kind-specific threshold.
func (e *Engine) layerD(directive *models.Directive, obs models.VisionObservation) (Decision, bool) {
	if directive == nil {
		return Decision{}, false
	}

	switch directive.Kind {
	case models.DirectiveObjectDetection:
		if !obs.QueryMatch || obs.QueryConfidence < e.objectThreshold {
			return Decision{}, false
		}
		return Decision{
			ShouldAlert:     true,
			Severity:        severityForThreshold(obs.QueryConfidence, 80),
			Kind:            KindImmediate,
			FinalConfidence: obs.QueryConfidence,
			Reasons:         []string{"directive_match:object_detection"},
			Source:          models.SourceVision,
		}, true

	case models.DirectiveActivityDetection:
		if !obs.QueryMatch || obs.QueryConfidence < e.activityThreshold {
			return Decision{}, false
		}
		return Decision{
			ShouldAlert:     true,
			Severity:        models.SeverityCritical,
			Kind:            KindImmediate,
			FinalConfidence: obs.QueryConfidence,
			Reasons:         []string{"directive_match:activity_detection"},
			Source:          models.SourceVision,
		}, true

	default:
		if obs.QueryConfidence < e.objectThreshold {
			return Decision{}, false
		}
		return Decision{
			ShouldAlert:     true,
			Severity:        models.SeverityWarning,
			Kind:            KindImmediate,
			FinalConfidence: obs.QueryConfidence,
			Reasons:         []string{fmt.Sprintf("directive_match:%s", directive.Kind)},
			Source:          models.SourceVision,
		}, true
	}
}

// layerE fires on undirected significance: no directive active, no override.
func (e *Engine) layerE(directive *models.Directive, obs models.VisionObservation) (Decision, bool) {
	if directive != nil {
		return Decision{}, false
	}
	if obs.Significance < e.undirectedThreshold {
		return Decision{}, false
	}

	return Decision{
		ShouldAlert:     true,
		Severity:        severityForThreshold(obs.Significance, 80),
		Kind:            KindImmediate,
		FinalConfidence: obs.Significance,
		Reasons:         []string{"undirected_significance"},
		Source:          models.SourceVision,
	}, true
}

// layerF is the summary-candidacy fallback: reached only when no immediate
// decision fired anywhere above.
func (e *Engine) layerF(obs models.VisionObservation) Decision {
	if obs.Significance >= e.summaryThreshold {
		return Decision{Kind: KindSummaryCandidate}
	}
	return Decision{Kind: KindNone}
}

// severityForThreshold classifies a confidence/significance value as WARNING
// below critical and CRITICAL at or above it. critical is always 80 in this
// spec but kept as a parameter to avoid a second magic number.
func severityForThreshold(value, critical float64) models.Severity {
	if value >= critical {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}
