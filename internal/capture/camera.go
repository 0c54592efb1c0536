// Package capture wraps the physical devices: the camera supplying frames
// on demand and the microphone pushing PCM buffers.
package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Camera supplies sequential frames. ReadFrame returns an error on
// end-of-stream or device failure; callers stop the motion loop on error
// without tearing down the rest of the pipeline.
type Camera interface {
	ReadFrame() (image.Image, error)
	Close() error
}

// Webcam is the production Camera on a local video device.
type Webcam struct {
	mu  sync.Mutex
	cap *gocv.VideoCapture
	mat gocv.Mat
}

// OpenWebcam opens device deviceID and verifies it delivers a frame, the
// same probe the station runs at startup so a dead camera is caught before
// detection begins.
func OpenWebcam(deviceID int) (*Webcam, error) {
	cap, err := gocv.VideoCaptureDevice(deviceID)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", deviceID, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("camera %d not available", deviceID)
	}

	w := &Webcam{cap: cap, mat: gocv.NewMat()}
	if _, err := w.ReadFrame(); err != nil {
		w.Close()
		return nil, fmt.Errorf("camera %d test frame failed: %w", deviceID, err)
	}
	return w, nil
}

// ReadFrame reads the next frame and converts it to an image.Image.
func (w *Webcam) ReadFrame() (image.Image, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return nil, fmt.Errorf("camera closed")
	}
	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, fmt.Errorf("camera frame read failed")
	}
	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

// Close releases the device. Safe to call more than once.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return nil
	}
	w.mat.Close()
	err := w.cap.Close()
	w.cap = nil
	if err != nil {
		return fmt.Errorf("release camera: %w", err)
	}
	return nil
}
