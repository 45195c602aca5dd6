package decision

import (
	"testing"

	"sentinel-worker-go/internal/config"
	"sentinel-worker-go/internal/models"
)

func testEngine() *Engine {
	cfg := &config.Config{
		ObjectThreshold:              60,
		ActivityThreshold:            40,
		UndirectedImmediateThreshold: 60,
		SummaryCollectThreshold:      50,
	}
	return New(cfg)
}

func TestLayerAHazardKeyword(t *testing.T) {
	e := testEngine()
	obs := models.VisionObservation{
		SceneDescription: "man holding knife near counter",
		Significance:     35,
		Detections:       []models.Detection{{Label: "knife", Confidence: 0.7}},
	}

	d := e.Evaluate(nil, obs, nil, nil)

	if !d.ShouldAlert || d.Kind != KindImmediate {
		t.Fatalf("expected immediate alert, got %+v", d)
	}
	if d.Severity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", d.Severity)
	}
	if d.FinalConfidence < 60 {
		t.Fatalf("expected confidence >= 60, got %f", d.FinalConfidence)
	}
	if !containsReason(d.Reasons, "hazard_keyword:knife") {
		t.Fatalf("expected hazard_keyword:knife reason, got %v", d.Reasons)
	}
}

func TestLayerBPresenceLostOverride(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveActivityDetection}
	baseline := &models.BaselineState{Established: true, PersonWasPresent: true}
	obs := models.VisionObservation{
		SceneDescription: "empty chair, no person visible",
		PersonPresent:    false,
		Significance:     40,
		QueryMatch:       false,
		QueryConfidence:  40,
	}

	d := e.Evaluate(directive, obs, baseline, nil)

	if !d.ShouldAlert || d.Severity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL immediate, got %+v", d)
	}
	if d.FinalConfidence != 95 {
		t.Fatalf("expected forced confidence 95, got %f", d.FinalConfidence)
	}
	if !containsReason(d.Reasons, "presence_lost_override") {
		t.Fatalf("expected presence_lost_override reason, got %v", d.Reasons)
	}
	if d.Source != models.SourceOverride {
		t.Fatalf("expected source override, got %s", d.Source)
	}
}

func TestLayerBDoesNotFireWithoutEstablishedBaseline(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveActivityDetection}
	obs := models.VisionObservation{PersonPresent: false, QueryConfidence: 30, QueryMatch: false}

	d := e.Evaluate(directive, obs, nil, nil)

	if d.ShouldAlert && containsReason(d.Reasons, "presence_lost_override") {
		t.Fatalf("override should not fire without an established baseline, got %+v", d)
	}
}

func TestLayerCReasoningOverride(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveActivityDetection}
	obs := models.VisionObservation{QueryConfidence: 30, QueryMatch: true}
	reasoning := &models.ReasoningDecision{
		ShouldAlert:          true,
		ConfidencePercentage: 92,
		AlertPriority:        models.SeverityCritical,
	}

	d := e.Evaluate(directive, obs, nil, reasoning)

	if !d.ShouldAlert || d.Source != models.SourceReasoning {
		t.Fatalf("expected reasoning override, got %+v", d)
	}
	if d.FinalConfidence != 92 {
		t.Fatalf("expected final_confidence 92, got %f", d.FinalConfidence)
	}
	if d.Severity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL, got %s", d.Severity)
	}
}

func TestLayerCDoesNotOverrideWhenConfidenceNotHigher(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveObjectDetection}
	obs := models.VisionObservation{QueryConfidence: 80, QueryMatch: true}
	reasoning := &models.ReasoningDecision{ShouldAlert: true, ConfidencePercentage: 70, AlertPriority: models.SeverityWarning}

	d := e.Evaluate(directive, obs, nil, reasoning)

	if d.Source == models.SourceReasoning {
		t.Fatalf("reasoning should not override with lower confidence, got %+v", d)
	}
}

func TestLayerDObjectDetectionBelowThreshold(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveObjectDetection, Target: "scissors"}
	obs := models.VisionObservation{QueryMatch: true, QueryConfidence: 55, Significance: 45}

	d := e.Evaluate(directive, obs, nil, nil)

	if d.ShouldAlert {
		t.Fatalf("expected no immediate alert below threshold, got %+v", d)
	}
	if d.Kind != KindNone {
		t.Fatalf("expected KindNone since significance < 50, got %+v", d)
	}
}

func TestLayerDActivityDetectionExactThreshold(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveActivityDetection}
	obs := models.VisionObservation{QueryMatch: true, QueryConfidence: 40}

	d := e.Evaluate(directive, obs, nil, nil)

	if !d.ShouldAlert || d.Severity != models.SeverityCritical {
		t.Fatalf("expected CRITICAL immediate at exactly the threshold, got %+v", d)
	}
}

func TestLayerDActivityDetectionJustBelowThresholdWithPresentPerson(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveActivityDetection}
	baseline := &models.BaselineState{Established: true, PersonWasPresent: true}
	obs := models.VisionObservation{QueryMatch: true, QueryConfidence: 39, PersonPresent: true, Significance: 20}

	d := e.Evaluate(directive, obs, baseline, nil)

	if d.ShouldAlert {
		t.Fatalf("expected no alert at confidence 39 with person still present, got %+v", d)
	}
}

func TestLayerEUndirectedBoundaries(t *testing.T) {
	e := testEngine()

	d59 := e.Evaluate(nil, models.VisionObservation{Significance: 59}, nil, nil)
	if d59.ShouldAlert {
		t.Fatalf("significance 59 should not alert, got %+v", d59)
	}

	d60 := e.Evaluate(nil, models.VisionObservation{Significance: 60}, nil, nil)
	if !d60.ShouldAlert || d60.Severity != models.SeverityWarning {
		t.Fatalf("significance 60 should be immediate WARNING, got %+v", d60)
	}

	d80 := e.Evaluate(nil, models.VisionObservation{Significance: 80}, nil, nil)
	if !d80.ShouldAlert || d80.Severity != models.SeverityCritical {
		t.Fatalf("significance 80 should be immediate CRITICAL, got %+v", d80)
	}
}

func TestLayerFSummaryCandidacy(t *testing.T) {
	e := testEngine()

	d := e.Evaluate(nil, models.VisionObservation{Significance: 52}, nil, nil)
	if d.ShouldAlert {
		t.Fatalf("summary candidate must not set should_alert, got %+v", d)
	}
	if d.Kind != KindSummaryCandidate {
		t.Fatalf("expected summary-candidate, got %+v", d)
	}

	dNone := e.Evaluate(nil, models.VisionObservation{Significance: 10}, nil, nil)
	if dNone.Kind != KindNone {
		t.Fatalf("expected none, got %+v", dNone)
	}
}

func TestImmediateAndSummaryCandidateAreDisjoint(t *testing.T) {
	e := testEngine()

	for _, sig := range []float64{10, 49, 50, 59, 60, 79, 80, 100} {
		d := e.Evaluate(nil, models.VisionObservation{Significance: sig}, nil, nil)
		if d.ShouldAlert && d.Kind == KindSummaryCandidate {
			t.Fatalf("should_alert and summary-candidate must be disjoint at significance=%f: %+v", sig, d)
		}
		if d.ShouldAlert && d.Kind != KindImmediate {
			t.Fatalf("should_alert=true must imply kind=immediate at significance=%f: %+v", sig, d)
		}
	}
}

func TestHazardKeywordTakesPriorityOverEverythingElse(t *testing.T) {
	e := testEngine()
	directive := &models.Directive{Kind: models.DirectiveObjectDetection}
	obs := models.VisionObservation{
		SceneDescription: "fire spreading near the warehouse door",
		QueryMatch:       false,
		QueryConfidence:  10,
		Significance:     20,
	}

	d := e.Evaluate(directive, obs, nil, nil)

	if d.Source != models.SourceVision || !containsReason(d.Reasons, "hazard_keyword:fire") {
		t.Fatalf("hazard override should short-circuit directive match, got %+v", d)
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
