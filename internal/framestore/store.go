// Package framestore persists captured frames to disk and computes their
// base64 encoding, per spec.md §4.2.
package framestore

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Store writes frames under root, creating it on demand. Writes are
// best-effort: a write failure degrades the returned Persisted to carry only
// base64, never fails the caller.
type Store struct {
	root string
	log  zerolog.Logger
}

// New builds a Store rooted at root.
func New(root string, log zerolog.Logger) *Store {
	return &Store{root: root, log: log}
}

// Persisted is the result of saving one frame: a stable URL (empty on
// degrade) and the frame's base64 encoding (always populated).
type Persisted struct {
	URL    string
	Base64 string
}

// Save writes jpegBytes to <root>/camera{id}_<YYYYMMDD>_<HHMMSS>_<microseconds>.jpg
// and returns the resulting URL alongside the base64 encoding. A disk failure
// is logged and degrades the result to base64-only.
func (s *Store) Save(cameraID string, jpegBytes []byte, capturedAt time.Time) Persisted {
	b64 := base64.StdEncoding.EncodeToString(jpegBytes)

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		s.log.Warn().Err(err).Str("camera_id", cameraID).Msg("frame store: could not create root directory, degrading to base64 only")
		return Persisted{Base64: b64}
	}

	name := fmt.Sprintf("camera%s_%s_%06d.jpg",
		cameraID,
		capturedAt.Format("20060102_150405"),
		capturedAt.Nanosecond()/1000,
	)
	path := filepath.Join(s.root, name)

	if err := os.WriteFile(path, jpegBytes, 0o644); err != nil {
		s.log.Warn().Err(err).Str("camera_id", cameraID).Str("path", path).Msg("frame store: write failed, degrading to base64 only")
		return Persisted{Base64: b64}
	}

	return Persisted{URL: path, Base64: b64}
}
