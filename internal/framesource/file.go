package framesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"sentinel-worker-go/internal/models"
)

// FileSource replays a directory of JPEG files in sorted filename order,
// looping back to the first file after the last, at a fixed cadence. Used for local development and tests where a
// real camera or RTSP URL isn't available.
type FileSource struct {
	cameraID string
	dir      string
	interval time.Duration

	files []string
	idx   int
	seq   int64
}

// NewFileSource builds a FileSource over every *.jpg/*.jpeg file in dir.
func NewFileSource(cameraID, dir string, interval time.Duration) *FileSource {
	return &FileSource{cameraID: cameraID, dir: dir, interval: interval}
}

// Open lists and sorts the directory's frame files.
func (s *FileSource) Open(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("framesource: open %s: %w", s.dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".jpg" || ext == ".jpeg" {
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return fmt.Errorf("framesource: %s contains no jpeg files", s.dir)
	}

	s.files = files
	return nil
}

// NextFrame blocks for the configured interval, then returns the next file in
// order, wrapping around to the beginning once the list is exhausted (a
// looping source is more useful for soak-testing than a finite one).
func (s *FileSource) NextFrame(ctx context.Context) (models.RawFrame, error) {
	select {
	case <-ctx.Done():
		return models.RawFrame{}, ctx.Err()
	case <-time.After(s.interval):
	}

	path := s.files[s.idx%len(s.files)]
	s.idx++

	data, err := os.ReadFile(path)
	if err != nil {
		return models.RawFrame{}, fmt.Errorf("framesource: read %s: %w", path, err)
	}

	s.seq++
	return models.RawFrame{
		CameraID:   s.cameraID,
		JPEGBytes:  data,
		CapturedAt: time.Now(),
		SequenceNo: s.seq,
	}, nil
}

// Close is a no-op; FileSource holds no live resources between frames.
func (s *FileSource) Close() error {
	return nil
}
