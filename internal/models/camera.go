package models

import "time"

// CameraState is the CameraWorker lifecycle state machine (spec.md §4.10).
type CameraState string

const (
	CameraStopped  CameraState = "STOPPED"
	CameraStarting CameraState = "STARTING"
	CameraRunning  CameraState = "RUNNING"
	CameraStopping CameraState = "STOPPING"
	CameraFailed   CameraState = "FAILED"
)

// String returns the string representation of CameraState.
func (s CameraState) String() string {
	return string(s)
}

// CameraResponse is the read-only DTO returned from the cameras API.
type CameraResponse struct {
	CameraID      string      `json:"camera_id"`
	State         CameraState `json:"state"`
	FrameCount    int64       `json:"frame_count"`
	ErrorCount    int64       `json:"error_count"`
	LastFrameTime time.Time   `json:"last_frame_time"`
	FPS           float64     `json:"fps"`
	AutoStarted   bool        `json:"auto_started"`
}
