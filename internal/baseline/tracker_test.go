package baseline

import (
	"testing"
	"time"

	"sentinel-worker-go/internal/models"
)

func obs(desc string, present bool) models.VisionObservation {
	return models.VisionObservation{SceneDescription: desc, PersonPresent: present}
}

func TestObserveEstablishesAfterStabilityFrames(t *testing.T) {
	tr := New(3)
	now := time.Now()

	if tr.Observe(obs("empty parking lot with two cars", false), now) {
		t.Fatal("should not establish on first observation")
	}
	if tr.State().Established {
		t.Fatal("should not be established yet")
	}

	if tr.Observe(obs("empty parking lot with two cars parked", false), now) {
		t.Fatal("should not establish on second consistent observation")
	}

	established := tr.Observe(obs("empty parking lot with cars parked nearby", false), now)
	if !established {
		t.Fatal("expected establishment on third consistent observation")
	}
	if !tr.State().Established {
		t.Fatal("state should report established")
	}
}

func TestObserveReturnsTrueOnlyOnTheEstablishingCall(t *testing.T) {
	tr := New(2)
	now := time.Now()

	tr.Observe(obs("a quiet hallway", false), now)
	if !tr.Observe(obs("a quiet hallway with lights on", false), now) {
		t.Fatal("expected true on the establishing call")
	}
	if tr.Observe(obs("a quiet hallway with lights on", false), now) {
		t.Fatal("expected false once already established")
	}
}

func TestInconsistentObservationResetsCounter(t *testing.T) {
	tr := New(3)
	now := time.Now()

	tr.Observe(obs("a quiet hallway with lights on", false), now)
	tr.Observe(obs("a completely different scene with a truck", false), now)
	if tr.State().ConsistencyCounter != 1 {
		t.Fatalf("expected counter reset to 1, got %d", tr.State().ConsistencyCounter)
	}
}

func TestPersonPresenceMismatchBreaksConsistency(t *testing.T) {
	tr := New(2)
	now := time.Now()

	tr.Observe(obs("a quiet hallway", false), now)
	established := tr.Observe(obs("a quiet hallway", true), now)
	if established {
		t.Fatal("a person_present mismatch must not count as consistent")
	}
	if tr.State().ConsistencyCounter != 1 {
		t.Fatalf("expected counter to reset to 1, got %d", tr.State().ConsistencyCounter)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	a := tokenize("the cat sat on the mat")
	b := tokenize("the cat sat on a mat")
	if got := jaccard(a, b); got < 0.6 {
		t.Fatalf("expected similarity >= 0.6, got %f", got)
	}
}
