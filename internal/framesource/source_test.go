package framesource

import (
	"testing"
	"time"
)

func TestBackoffPolicyDelayClampedToRange(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Cap: 30 * time.Second, Max: 6}

	for attempt := 0; attempt < 10; attempt++ {
		d := p.Delay(attempt)
		if d < p.Base || d > p.Cap+p.Cap/5 {
			t.Fatalf("attempt %d: delay %s out of expected range [%s, ~%s]", attempt, d, p.Base, p.Cap)
		}
	}
}

func TestBackoffPolicyDelayGrows(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Cap: time.Minute, Max: 6}

	// Jitter is +/-20%, so compare across several attempts to avoid flakiness
	// from a single unlucky jitter draw.
	first := p.Delay(0)
	later := p.Delay(4)
	if later <= first/2 {
		t.Fatalf("expected later attempts to trend larger, got first=%s later=%s", first, later)
	}
}

func TestBackoffPolicyExhausted(t *testing.T) {
	p := BackoffPolicy{Base: time.Second, Cap: 30 * time.Second, Max: 3}

	if p.Exhausted(0) || p.Exhausted(2) {
		t.Fatal("expected attempts below Max to not be exhausted")
	}
	if !p.Exhausted(3) {
		t.Fatal("expected attempt == Max to be exhausted")
	}
}
