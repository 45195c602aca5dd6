package models

import "time"

// Frame is a single captured image, owned by the CameraWorker that produced
// it and handed off by value into the dispatch path.
type Frame struct {
	CameraID    string    `json:"camera_id"`
	CapturedAt  time.Time `json:"captured_at"`
	JPEGBytes   []byte    `json:"-"`
	URL         string    `json:"url,omitempty"`
	Base64      string    `json:"base64,omitempty"`
	SequenceNo  int64     `json:"sequence_no"`
}

// RawFrame is what a FrameSource hands the CameraWorker before it has been
// persisted or analyzed.
type RawFrame struct {
	CameraID   string
	JPEGBytes  []byte
	CapturedAt time.Time
	SequenceNo int64
}
