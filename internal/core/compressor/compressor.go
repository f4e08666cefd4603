// Package compressor provides pure transformations of raw media bytes into
// upload-ready bytes under size and dimension constraints. All functions are
// stateless and safe to invoke concurrently for independent inputs.
package compressor

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// JPEG quality ladder: start at 80 and step down by 10 until the output
// fits or the floor is reached.
const (
	startQuality = 80
	qualityStep  = 10
	minQuality   = 10
)

// ImageOptions bounds the output of CompressImage.
type ImageOptions struct {
	// MaxBytes is the output size ceiling. Zero means unbounded.
	MaxBytes int

	// MaxWidth and MaxHeight bound the output dimensions. The image is
	// downsampled preserving aspect ratio when either is exceeded; images
	// already within bounds are never upscaled.
	MaxWidth  int
	MaxHeight int
}

// DefaultImageOptions matches common server-side media limits.
func DefaultImageOptions() ImageOptions {
	return ImageOptions{
		MaxBytes:  8 * 1024 * 1024,
		MaxWidth:  3840,
		MaxHeight: 3840,
	}
}

// CompressImage decodes data (JPEG, PNG, GIF or WebP), downsamples it to fit
// within opts dimensions, then re-encodes as JPEG lowering quality until the
// result fits under opts.MaxBytes. Returns ErrUnsupportedFormat for
// undecodable input and ErrCompressionFailed when the size ceiling cannot be
// met at minimum quality.
func CompressImage(data []byte, opts ImageOptions) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrUnsupportedFormat)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	img = downsample(img, opts.MaxWidth, opts.MaxHeight)

	for quality := startQuality; quality >= minQuality; quality -= qualityStep {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("%w: failed to encode JPEG: %v", ErrCompressionFailed, err)
		}
		if opts.MaxBytes <= 0 || buf.Len() <= opts.MaxBytes {
			return buf.Bytes(), nil
		}
	}

	return nil, fmt.Errorf("%w: image exceeds %d bytes at minimum quality", ErrCompressionFailed, opts.MaxBytes)
}

// downsample scales img to fit within maxWidth x maxHeight preserving aspect
// ratio. Images already within bounds are returned unchanged.
func downsample(img image.Image, maxWidth, maxHeight int) image.Image {
	if maxWidth <= 0 && maxHeight <= 0 {
		return img
	}

	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()

	exceedsWidth := maxWidth > 0 && srcWidth > maxWidth
	exceedsHeight := maxHeight > 0 && srcHeight > maxHeight
	if !exceedsWidth && !exceedsHeight {
		return img
	}

	newWidth := srcWidth
	newHeight := srcHeight
	if exceedsWidth {
		newWidth = maxWidth
		newHeight = int(float64(srcHeight) * (float64(maxWidth) / float64(srcWidth)))
	}
	if maxHeight > 0 && newHeight > maxHeight {
		newHeight = maxHeight
		newWidth = int(float64(srcWidth) * (float64(maxHeight) / float64(srcHeight)))
	}

	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
}
