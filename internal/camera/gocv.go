package camera

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GoCVDevice captures through OpenCV's VideoCapture.
type GoCVDevice struct {
	index  int
	logger *zap.Logger
}

// OpenGoCV probes the camera at index once and returns a device for it.
func OpenGoCV(index int, logger *zap.Logger) (*GoCVDevice, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index %d: %v", ErrNoDevice, index, err)
	}
	defer vc.Close()

	if !vc.IsOpened() {
		return nil, fmt.Errorf("%w: index %d", ErrNoDevice, index)
	}

	logger.Info("Opened camera",
		zap.Float64("width", vc.Get(gocv.VideoCaptureFrameWidth)),
		zap.Float64("height", vc.Get(gocv.VideoCaptureFrameHeight)))
	return &GoCVDevice{index: index, logger: logger}, nil
}

// Capture opens a capture stream, reads one frame and closes the stream.
func (d *GoCVDevice) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	vc, err := gocv.OpenVideoCapture(d.index)
	if err != nil {
		return Frame{}, fmt.Errorf("open capture stream: %w", err)
	}
	defer vc.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := vc.Read(&mat); !ok || mat.Empty() {
		return Frame{}, fmt.Errorf("read frame from camera %d", d.index)
	}

	frame := Frame{
		Data:      mat.ToBytes(),
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: time.Now(),
	}
	d.logger.Debug("Captured frame",
		zap.Int("bytes", len(frame.Data)),
		zap.Int("width", frame.Width),
		zap.Int("height", frame.Height))
	return frame, nil
}

// Close is a no-op; streams never outlive a Capture call.
func (d *GoCVDevice) Close() error { return nil }
