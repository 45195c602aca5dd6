package directive

import (
	"testing"
	"time"

	"sentinel-worker-go/internal/models"
)

func TestAddDefaultsScopeToAllCameras(t *testing.T) {
	r := NewRegistry()
	d := r.Add(models.DirectiveRequest{Text: "watch the lobby", Kind: models.DirectiveSurveillance}, time.Now())

	if !d.CameraScope.All {
		t.Fatal("expected default scope to be All")
	}
	if !d.CameraScope.Matches("any-camera") {
		t.Fatal("default scope should match any camera")
	}
}

func TestAddHonorsExplicitScope(t *testing.T) {
	r := NewRegistry()
	d := r.Add(models.DirectiveRequest{
		Text:        "watch the loading dock",
		Kind:        models.DirectiveObjectDetection,
		CameraScope: &models.CameraScope{Cameras: []string{"dock-1"}},
	}, time.Now())

	if d.CameraScope.All {
		t.Fatal("explicit scope should not default to All")
	}
	if !d.CameraScope.Matches("dock-1") || d.CameraScope.Matches("lobby") {
		t.Fatal("explicit scope should match only its listed cameras")
	}
}

func TestAddForcesRequiresBaselineForActivityDetection(t *testing.T) {
	r := NewRegistry()
	d := r.Add(models.DirectiveRequest{Text: "alert on activity change", Kind: models.DirectiveActivityDetection}, time.Now())

	if !d.RequiresBaseline {
		t.Fatal("activity_detection directives must require a baseline regardless of the request flag")
	}
}

func TestGetRemove(t *testing.T) {
	r := NewRegistry()
	d := r.Add(models.DirectiveRequest{Text: "watch the lobby"}, time.Now())

	if _, ok := r.Get(d.ID); !ok {
		t.Fatal("expected directive to be retrievable after Add")
	}

	r.Remove(d.ID)
	if _, ok := r.Get(d.ID); ok {
		t.Fatal("expected directive to be gone after Remove")
	}
}

func TestListForCameraFiltersByScope(t *testing.T) {
	r := NewRegistry()
	r.Add(models.DirectiveRequest{Text: "all cameras"}, time.Now())
	r.Add(models.DirectiveRequest{Text: "only dock", CameraScope: &models.CameraScope{Cameras: []string{"dock-1"}}}, time.Now())

	if got := len(r.ListForCamera("dock-1")); got != 2 {
		t.Fatalf("expected 2 directives matching dock-1, got %d", got)
	}
	if got := len(r.ListForCamera("lobby")); got != 1 {
		t.Fatalf("expected 1 directive matching lobby, got %d", got)
	}
}
