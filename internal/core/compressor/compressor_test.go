package compressor

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestJPEG creates a test JPEG image with the specified dimensions.
func createTestJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 128, B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	require.NoError(t, err)
	return buf.Bytes()
}

// createNoisyPNG creates a PNG full of random noise, which compresses
// poorly and keeps JPEG output large across the quality ladder.
func createNoisyPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	require.NoError(t, err)
	return buf.Bytes()
}

// createTestGIF creates a two-frame animated GIF.
func createTestGIF(t *testing.T, width, height int) []byte {
	t.Helper()
	palette := color.Palette{color.White, color.Black}
	var frames []*image.Paletted
	var delays []int
	for i := 0; i < 2; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, width, height), palette)
		frames = append(frames, frame)
		delays = append(delays, 10)
	}
	var buf bytes.Buffer
	err := gif.EncodeAll(&buf, &gif.GIF{Image: frames, Delay: delays})
	require.NoError(t, err)
	return buf.Bytes()
}

func TestCompressImage_WithinBounds(t *testing.T) {
	data := createTestJPEG(t, 400, 300)

	out, err := CompressImage(data, ImageOptions{MaxBytes: 1 << 20, MaxWidth: 800, MaxHeight: 800})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 400, cfg.Width, "images within bounds must not be resized")
	assert.Equal(t, 300, cfg.Height)
}

func TestCompressImage_Downsamples(t *testing.T) {
	tests := []struct {
		name       string
		srcWidth   int
		srcHeight  int
		maxWidth   int
		maxHeight  int
		wantWidth  int
		wantHeight int
	}{
		{
			name:      "landscape over width",
			srcWidth:  1600, srcHeight: 800,
			maxWidth: 800, maxHeight: 800,
			wantWidth: 800, wantHeight: 400,
		},
		{
			name:      "portrait over height",
			srcWidth:  600, srcHeight: 1200,
			maxWidth: 800, maxHeight: 600,
			wantWidth: 300, wantHeight: 600,
		},
		{
			name:      "square over both",
			srcWidth:  2000, srcHeight: 2000,
			maxWidth: 500, maxHeight: 500,
			wantWidth: 500, wantHeight: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := createTestJPEG(t, tt.srcWidth, tt.srcHeight)
			out, err := CompressImage(data, ImageOptions{MaxWidth: tt.maxWidth, MaxHeight: tt.maxHeight})
			require.NoError(t, err)

			cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
			require.NoError(t, err)
			assert.Equal(t, tt.wantWidth, cfg.Width)
			assert.Equal(t, tt.wantHeight, cfg.Height)
		})
	}
}

func TestCompressImage_QualityLadderMeetsSizeLimit(t *testing.T) {
	data := createNoisyPNG(t, 600, 600)

	// High quality output of noise at this size comfortably exceeds 100KB,
	// forcing at least one quality step
	out, err := CompressImage(data, ImageOptions{MaxBytes: 100 * 1024})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 100*1024)
}

func TestCompressImage_FailsWhenImpossible(t *testing.T) {
	data := createNoisyPNG(t, 800, 800)

	_, err := CompressImage(data, ImageOptions{MaxBytes: 100})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompressionFailed)
}

func TestCompressImage_RejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not an image", data: []byte("definitely not an image")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompressImage(tt.data, DefaultImageOptions())
			assert.ErrorIs(t, err, ErrUnsupportedFormat)
		})
	}
}

func TestExtractGIFFrame(t *testing.T) {
	data := createTestGIF(t, 50, 40)

	frame, err := ExtractGIFFrame(data)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 40, cfg.Height)
}

func TestExtractGIFFrame_RejectsGarbage(t *testing.T) {
	_, err := ExtractGIFFrame([]byte("nope"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCompressVideo_EncoderMissing(t *testing.T) {
	orig := ffmpegBinary
	ffmpegBinary = "definitely-not-a-real-encoder-binary"
	defer func() { ffmpegBinary = orig }()

	tmp := filepath.Join(t.TempDir(), "in.mp4")
	require.NoError(t, os.WriteFile(tmp, []byte("stub"), 0o644))

	_, err := CompressVideo(context.Background(), tmp, ProfileStandard, t.TempDir())
	assert.ErrorIs(t, err, ErrEncoderUnavailable)
}
