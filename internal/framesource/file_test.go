package framesource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeJPEG(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestFileSourceLoopsOverFramesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "a.jpg", []byte("frame-a"))
	writeJPEG(t, dir, "b.jpg", []byte("frame-b"))
	writeJPEG(t, dir, "ignore.txt", []byte("not a frame"))

	src := NewFileSource("cam-1", dir, time.Millisecond)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	first, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if string(first.JPEGBytes) != "frame-a" {
		t.Fatalf("expected frame-a first, got %q", first.JPEGBytes)
	}
	if first.CameraID != "cam-1" {
		t.Fatalf("expected camera id cam-1, got %q", first.CameraID)
	}

	second, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if string(second.JPEGBytes) != "frame-b" {
		t.Fatalf("expected frame-b second, got %q", second.JPEGBytes)
	}

	third, err := src.NextFrame(context.Background())
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	if string(third.JPEGBytes) != "frame-a" {
		t.Fatalf("expected loop back to frame-a, got %q", third.JPEGBytes)
	}

	if second.SequenceNo <= first.SequenceNo || third.SequenceNo <= second.SequenceNo {
		t.Fatal("expected strictly increasing sequence numbers across the loop")
	}
}

func TestFileSourceOpenFailsOnEmptyDir(t *testing.T) {
	dir := t.TempDir()
	src := NewFileSource("cam-1", dir, time.Millisecond)
	if err := src.Open(context.Background()); err == nil {
		t.Fatal("expected Open to fail on a directory with no jpeg files")
	}
}

func TestFileSourceNextFrameRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	writeJPEG(t, dir, "a.jpg", []byte("frame-a"))

	src := NewFileSource("cam-1", dir, time.Hour)
	if err := src.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := src.NextFrame(ctx); err == nil {
		t.Fatal("expected NextFrame to return an error for a cancelled context")
	}
}
