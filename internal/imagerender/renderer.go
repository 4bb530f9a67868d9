package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/rs/zerolog/log"
)

// ColorMode defines the color mode for encoding
type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorGray ColorMode = "gray"
)

const DefaultQuality = 85

// EncodeJPEG encodes a rendered page raster as JPEG (in-memory).
// Returns JPEG bytes, width, height, error
func EncodeJPEG(img image.Image, quality int, mode ColorMode) ([]byte, int, int, error) {
	if img == nil {
		return nil, 0, 0, fmt.Errorf("nil image")
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	finalImg := img
	if mode == ColorGray {
		grayImg := image.NewGray(bounds)
		draw.Draw(grayImg, bounds, img, bounds.Min, draw.Src)
		finalImg = grayImg
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, finalImg, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("width", width).
		Int("height", height).
		Str("color", string(mode)).
		Int("jpeg_size", buf.Len()).
		Int("quality", quality).
		Msg("encoded page as JPEG")

	return buf.Bytes(), width, height, nil
}

// EncodeToBase64 converts binary data to base64 string
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFromBase64 converts base64 string back to binary data
func DecodeFromBase64(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

// GetImageDimensions extracts dimensions from JPEG bytes
func GetImageDimensions(jpegBytes []byte) (width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}
	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
