// Package sampler turns a raw camera frame into a scalar brightness estimate
// by averaging a fixed, strided subset of its bytes.
package sampler

import (
	"errors"
	"fmt"
)

// ErrFrameLength is returned when a frame does not match the length the
// index set was built from.
var ErrFrameLength = errors.New("sampler: frame length mismatch")

// IndexSet is the ordered list of byte offsets sampled from every frame.
// It is derived once from the first frame and never recomputed.
type IndexSet struct {
	offsets  []int
	frameLen int
}

// NewIndexSet returns the offsets 0, step, 2*step, ... that fall inside a
// frame of frameLen bytes.
func NewIndexSet(frameLen, step int) (*IndexSet, error) {
	if step < 1 {
		return nil, fmt.Errorf("sampler: step must be positive, got %d", step)
	}
	if frameLen < 1 {
		return nil, fmt.Errorf("sampler: empty frame")
	}

	offsets := make([]int, 0, (frameLen+step-1)/step)
	for off := 0; off < frameLen; off += step {
		offsets = append(offsets, off)
	}
	return &IndexSet{offsets: offsets, frameLen: frameLen}, nil
}

// Len is the number of sampled offsets.
func (s *IndexSet) Len() int { return len(s.offsets) }

// FrameLen is the frame length the set was built for.
func (s *IndexSet) FrameLen() int { return s.frameLen }

// Offsets returns a copy of the sampled offsets.
func (s *IndexSet) Offsets() []int {
	return append([]int(nil), s.offsets...)
}

// Average returns the mean of the sampled bytes, in [0,255].
func (s *IndexSet) Average(frame []byte) (float64, error) {
	if len(frame) != s.frameLen {
		return 0, fmt.Errorf("%w: got %d bytes, want %d", ErrFrameLength, len(frame), s.frameLen)
	}

	var sum uint64
	for _, off := range s.offsets {
		sum += uint64(frame[off])
	}
	return float64(sum) / float64(len(s.offsets)), nil
}
