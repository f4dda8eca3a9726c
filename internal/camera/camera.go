// Package camera captures single frames from a webcam. Every Capture opens
// the device stream, reads one frame and releases the stream again, so the
// camera's activity light is only on while a frame is being taken.
package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNoDevice is returned when the requested camera index is unavailable.
var ErrNoDevice = errors.New("camera: device not available")

// Backend names accepted by Open.
const (
	BackendGoCV         = "gocv"
	BackendMediaDevices = "mediadevices"
)

// Frame is one captured image as a flat byte buffer.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// Device is a camera that yields one frame per Capture call.
type Device interface {
	Capture(ctx context.Context) (Frame, error)
	Close() error
}

// Open returns the camera at index using the named backend.
func Open(backend string, index int, logger *zap.Logger) (Device, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("camera").With(zap.String("backend", backend), zap.Int("index", index))

	switch backend {
	case BackendGoCV, "":
		return OpenGoCV(index, logger)
	case BackendMediaDevices:
		return OpenMediaDevice(index, logger)
	default:
		return nil, fmt.Errorf("camera: unknown backend %q", backend)
	}
}
