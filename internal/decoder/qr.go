package decoder

import (
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/AMEND09/ID-Scanner/internal/errors"
)

// QRDecoder reads QR codes with gozxing.
type QRDecoder struct {
	hints map[gozxing.DecodeHintType]any
}

// NewQRDecoder returns a decoder tuned for badge-sized codes.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{
		hints: map[gozxing.DecodeHintType]any{
			gozxing.DecodeHintType_TRY_HARDER:    true,
			gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
		},
	}
}

// Decode implements MatrixDecoder.
func (d *QRDecoder) Decode(frame image.Image) (string, bool, error) {
	if frame == nil {
		return "", false, nil
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return "", false, errors.New(err).
			Component("decoder").
			Category(errors.CategoryDecoder).
			Context("operation", "binarize").
			Build()
	}

	// readers keep state between calls, one per decode keeps QRDecoder safe for concurrent use
	result, err := qrcode.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		var readerErr gozxing.ReaderException
		if errors.As(err, &readerErr) {
			return "", false, nil
		}
		return "", false, errors.New(err).
			Component("decoder").
			Category(errors.CategoryDecoder).
			Context("operation", "decode").
			Build()
	}
	return result.GetText(), true, nil
}
