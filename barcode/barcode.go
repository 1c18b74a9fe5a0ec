// Package barcode recovers the text embedded in AZTEC symbols delivered
// as base64-encoded raster images.
package barcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/aztec"
)

// ErrDecode marks any failure to recover an AZTEC symbol from the image
// payload: bad base64, bytes that are not an image, or an image without
// a recognizable symbol. Callers match it with errors.Is.
var ErrDecode = errors.New("barcode: no decodable AZTEC symbol")

// DecodeAztec decodes a base64-encoded image and returns the text of the
// AZTEC symbol it contains, verbatim. The source image is assumed upright;
// no rotation search is performed.
func DecodeAztec(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrDecode, err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: not a raster image: %v", ErrDecode, err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	result, err := aztec.NewAztecReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}

	return result.GetText(), nil
}
