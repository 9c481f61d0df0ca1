// Package decoder adapts the two decode capabilities to the scan pipeline: a push source for
// linear barcodes delivered as text, and a pull poller that decodes matrix codes from the
// most recent camera frame.
package decoder

import (
	"context"
	"image"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// Source names where a detection came from.
type Source string

const (
	SourceLinear Source = "barcode"
	SourceMatrix Source = "qr"
	SourceManual Source = "manual"
)

// Detection is one raw decode event.
type Detection struct {
	Source Source
	Raw    string
	At     time.Time
}

// Sink accepts detections. It reports false when the detection was dropped.
type Sink func(Detection) bool

// MatrixDecoder decodes a matrix code from one frame. ok is false when the frame holds no
// readable code; err is reserved for decoder failures.
type MatrixDecoder interface {
	Decode(frame image.Image) (text string, ok bool, err error)
}

// MatrixDecoderFunc adapts a function to MatrixDecoder.
type MatrixDecoderFunc func(image.Image) (string, bool, error)

func (f MatrixDecoderFunc) Decode(frame image.Image) (string, bool, error) { return f(frame) }

// Camera is the frame producer lifecycle. Acquire failing ends the scanning session.
type Camera interface {
	Acquire(ctx context.Context) error
	Release()
}

// FrameSource yields the latest camera frame once the camera delivers.
type FrameSource interface {
	Ready() bool
	Latest() (Frame, bool)
}

// GetLogger returns the decoder module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("decoder")
}
