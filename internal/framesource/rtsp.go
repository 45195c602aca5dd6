package framesource

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"sentinel-worker-go/internal/models"
)

// RTSPSource wraps an OpenCV VideoCapture against a webcam index or RTSP URL,
// grounded on the teacher's StreamCapture.StartVideoCaptureProcess but
// reshaped into the pull-based Source interface (one NextFrame call per
// delivered frame) instead of a push loop owning its own goroutine.
type RTSPSource struct {
	cameraID string
	url      string
	width    int
	height   int
	log      zerolog.Logger

	cap *gocv.VideoCapture
	mat gocv.Mat
	seq int64

	consecutiveErrors    int
	maxConsecutiveErrors int
}

// NewRTSPSource builds an RTSPSource. url may be an RTSP URL or a bare
// webcam index understood by gocv.OpenVideoCapture.
func NewRTSPSource(cameraID, url string, width, height int, log zerolog.Logger) *RTSPSource {
	return &RTSPSource{
		cameraID:             cameraID,
		url:                  url,
		width:                width,
		height:               height,
		log:                  log,
		maxConsecutiveErrors: 10,
	}
}

// Open establishes the VideoCapture with a minimal read buffer for low
// latency, matching the teacher's RTSP tuning.
func (s *RTSPSource) Open(ctx context.Context) error {
	cap, err := gocv.OpenVideoCapture(s.url)
	if err != nil {
		return fmt.Errorf("framesource: open capture %s: %w", s.url, err)
	}

	cap.Set(gocv.VideoCaptureBufferSize, 1)
	if s.width > 0 {
		cap.Set(gocv.VideoCaptureFrameWidth, float64(s.width))
	}
	if s.height > 0 {
		cap.Set(gocv.VideoCaptureFrameHeight, float64(s.height))
	}

	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("framesource: capture not opened for %s", s.url)
	}

	s.cap = cap
	s.mat = gocv.NewMat()
	s.log.Info().Str("camera_id", s.cameraID).Str("url", s.url).Msg("video capture opened")
	return nil
}

// NextFrame reads and JPEG-encodes one frame, retrying transient empty reads
// inline and surfacing a transient error only after maxConsecutiveErrors.
func (s *RTSPSource) NextFrame(ctx context.Context) (models.RawFrame, error) {
	for {
		select {
		case <-ctx.Done():
			return models.RawFrame{}, ctx.Err()
		default:
		}

		ok := s.cap.Read(&s.mat)
		if !ok || s.mat.Empty() {
			s.consecutiveErrors++
			if s.consecutiveErrors >= s.maxConsecutiveErrors {
				return models.RawFrame{}, fmt.Errorf("framesource: %d consecutive failed reads", s.consecutiveErrors)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}

		s.consecutiveErrors = 0
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.mat)
		if err != nil {
			return models.RawFrame{}, fmt.Errorf("framesource: jpeg encode: %w", err)
		}
		defer buf.Close()

		s.seq++
		return models.RawFrame{
			CameraID:   s.cameraID,
			JPEGBytes:  append([]byte(nil), buf.GetBytes()...),
			CapturedAt: time.Now(),
			SequenceNo: s.seq,
		}, nil
	}
}

// Close releases the underlying VideoCapture and Mat.
func (s *RTSPSource) Close() error {
	if !s.mat.Empty() {
		s.mat.Close()
	}
	if s.cap != nil {
		return s.cap.Close()
	}
	return nil
}
