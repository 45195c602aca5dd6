// Package framesource defines the Source abstraction CameraWorker polls for
// frames, plus the implementations that back it.
package framesource

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"sentinel-worker-go/internal/models"
)

// ErrEndOfStream signals the source has no more frames and will never
// produce another one. No Source in this package returns it: FileSource
// loops, and RTSPSource reports read failures as ordinary errors.
var ErrEndOfStream = errors.New("framesource: end of stream")

// Source is the capability set a CameraWorker needs from a frame producer.
// Implementations may wrap a webcam, an RTSP stream, or a file. NextFrame is
// expected to block up to roughly 1/fps between deliveries.
type Source interface {
	Open(ctx context.Context) error
	NextFrame(ctx context.Context) (models.RawFrame, error)
	Close() error
}

// BackoffPolicy computes the jittered exponential retry delay the
// CameraWorker uses between failed (re)open attempts, grounded on the
// teacher's CalculateBackoffDelay.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
	Max  int
}

// Delay returns the backoff duration for the given zero-indexed attempt
// number: the doubled delay is clamped to [Base, Cap], then +/-20% jitter is
// applied, so the result can exceed Cap by up to 20% but never drops below
// Base.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d > p.Cap {
			d = p.Cap
			break
		}
	}
	if d < p.Base {
		d = p.Base
	}

	jitter := time.Duration(float64(d) * 0.2 * (rand.Float64()*2 - 1))
	d += jitter
	if d < p.Base {
		d = p.Base
	}
	return d
}

// Exhausted reports whether attempt (zero-indexed, the attempt about to be
// made) is beyond the retry budget, so at most Max attempts are made.
func (p BackoffPolicy) Exhausted(attempt int) bool {
	return attempt >= p.Max
}
