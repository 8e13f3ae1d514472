// Package imageio loads still images for tiled textures and writes PNG
// output. PNG, JPEG, GIF and WebP inputs are recognized by content.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/webp" // registers the WebP decoder

	"github.com/gogpu/tiletex/gifdecode"
)

// Format names as reported by Sniff.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatGIF  = "gif"
	FormatWebP = "webp"
)

// I/O errors.
var (
	// ErrUnsupportedFormat is returned when the image format is not supported.
	ErrUnsupportedFormat = errors.New("imageio: unsupported format")

	// ErrEmptyData is returned when image data is empty.
	ErrEmptyData = errors.New("imageio: empty data")
)

// ReadFile reads an encoded image file.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("imageio: read file: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	return data, nil
}

// Load reads and decodes the image at path. For GIFs it returns the first
// frame on the logical screen.
func Load(path string) (image.Image, string, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return DecodeBytes(data)
}

// Sniff reports the format of encoded image data without decoding pixels.
func Sniff(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyData
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", ErrUnsupportedFormat
		}
		return "", fmt.Errorf("imageio: decode config: %w", err)
	}
	return format, nil
}

// DecodeBytes decodes an image, auto-detecting the format.
func DecodeBytes(data []byte) (image.Image, string, error) {
	format, err := Sniff(data)
	if err != nil {
		return nil, "", err
	}
	if format == FormatGIF {
		img, err := gifdecode.DecodeFirst(data)
		if err != nil {
			return nil, "", err
		}
		return img, format, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imageio: decode %s: %w", format, err)
	}
	return img, format, nil
}

// EncodePNG encodes img as PNG to w.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("imageio: encode PNG: %w", err)
	}
	return nil
}

// EncodeJPEG encodes img as JPEG with the given quality (1-100).
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	quality = max(1, min(quality, 100))
	if err := jpeg.Encode(w, img, &jpeg.Options{Quality: quality}); err != nil {
		return fmt.Errorf("imageio: encode JPEG: %w", err)
	}
	return nil
}

// SavePNG saves img as a PNG file.
func SavePNG(path string, img image.Image) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("imageio: create file: %w", err)
	}

	if err := EncodePNG(f, img); err != nil {
		_ = f.Close()
		return err
	}

	return f.Close()
}
