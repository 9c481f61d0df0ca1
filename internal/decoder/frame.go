package decoder

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"sync"
	"time"

	"github.com/AMEND09/ID-Scanner/internal/errors"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// MaxFrameBytes bounds an uploaded frame.
const MaxFrameBytes = 8 << 20

// ErrCameraUnavailable is reported when frames can no longer be produced.
var ErrCameraUnavailable = errors.NewStd("camera unavailable")

// Frame is one captured image. Seq increases with every stored frame.
type Frame struct {
	Image image.Image
	Seq   uint64
	At    time.Time
}

// FrameBuffer holds the most recent frame pushed by a remote camera. It is both the Camera
// and the FrameSource of the matrix poller.
type FrameBuffer struct {
	mu      sync.RWMutex
	frame   Frame
	seq     uint64
	failure error
	now     func() time.Time
}

// NewFrameBuffer returns an empty buffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{now: time.Now}
}

// Put stores img as the latest frame and returns its sequence number. A delivered frame
// clears a previously reported camera failure.
func (b *FrameBuffer) Put(img image.Image) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failure = nil
	b.seq++
	b.frame = Frame{Image: img, Seq: b.seq, At: b.now()}
	return b.seq
}

// PutEncoded decodes a PNG or JPEG frame and stores it.
func (b *FrameBuffer) PutEncoded(r io.Reader) (uint64, error) {
	img, format, err := image.Decode(io.LimitReader(r, MaxFrameBytes))
	if err != nil {
		return 0, errors.New(err).
			Component("decoder").
			Category(errors.CategoryValidation).
			Context("operation", "decode_frame").
			Build()
	}
	seq := b.Put(img)
	GetLogger().Trace("frame stored",
		logger.String("format", format),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()))
	return seq, nil
}

// Latest returns the most recent frame.
func (b *FrameBuffer) Latest() (Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame, b.frame.Image != nil
}

// Ready reports whether at least one frame arrived.
func (b *FrameBuffer) Ready() bool {
	_, ok := b.Latest()
	return ok
}

// Acquire fails once a camera failure was reported and not yet cleared by Release.
func (b *FrameBuffer) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	failure := b.failure
	b.mu.RUnlock()
	if failure != nil {
		return cameraError(failure)
	}
	return nil
}

// Release drops the stored frame and any reported failure.
func (b *FrameBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = Frame{}
	b.failure = nil
}

// ReportFailure records that the camera cannot deliver frames, for example because the
// user denied camera permission.
func (b *FrameBuffer) ReportFailure(reason string) error {
	err := cameraError(errors.Newf("%s", reason).Build())
	b.mu.Lock()
	b.failure = err
	b.frame = Frame{}
	b.mu.Unlock()
	return err
}

func cameraError(cause error) error {
	if errors.Is(cause, ErrCameraUnavailable) {
		return cause
	}
	return errors.New(errors.Join(ErrCameraUnavailable, cause)).
		Component("decoder").
		Category(errors.CategoryCamera).
		Build()
}
