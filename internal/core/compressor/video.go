package compressor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// VideoProfile bounds the output of a video re-encode.
type VideoProfile struct {
	// MaxDimension caps the longer edge of the output; the encoder scales
	// down preserving aspect ratio.
	MaxDimension int

	// BitrateKbps caps the video bitrate.
	BitrateKbps int
}

// ProfileStandard is used in the main app context.
var ProfileStandard = VideoProfile{MaxDimension: 1920, BitrateKbps: 4000}

// ProfileConstrained is used in memory-constrained contexts such as a share
// extension, trading quality for a smaller working set.
var ProfileConstrained = VideoProfile{MaxDimension: 1280, BitrateKbps: 2000}

// ffmpegBinary is resolved from PATH; overridable for tests.
var ffmpegBinary = "ffmpeg"

// CompressVideo re-encodes the video at inPath to H.264 MP4 bounded by
// profile, writing the result to a new temporary file in scratchDir (or the
// system temp dir when scratchDir is empty). The caller owns the returned
// file and should remove it when done.
func CompressVideo(ctx context.Context, inPath string, profile VideoProfile, scratchDir string) (string, error) {
	if inPath == "" {
		return "", fmt.Errorf("input path cannot be empty")
	}
	if _, err := os.Stat(inPath); err != nil {
		return "", fmt.Errorf("%w: cannot read input: %v", ErrCompressionFailed, err)
	}
	ffmpegPath, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}

	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	out, err := os.CreateTemp(scratchDir, "perch-video-*.mp4")
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	outPath := out.Name()
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close output file: %w", err)
	}

	// Scale filter keeps aspect ratio and only shrinks; -2 keeps the other
	// edge divisible by two as the encoder requires.
	maxDim := strconv.Itoa(profile.MaxDimension)
	scale := "scale='min(" + maxDim + ",iw)':-2"
	args := []string{
		"-y", "-i", inPath,
		"-vf", scale,
		"-c:v", "libx264",
		"-b:v", strconv.Itoa(profile.BitrateKbps) + "k",
		"-c:a", "aac",
		"-movflags", "+faststart",
		outPath,
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		// Best effort cleanup of the partial output
		_ = os.Remove(outPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: encoder error: %v (%s)", ErrCompressionFailed, err, truncate(stderr.String(), 200))
	}

	return outPath, nil
}

// ExtractVideoFrame grabs the first decodable frame of the video at inPath
// as JPEG bytes, for rendering a preview before upload completes.
func ExtractVideoFrame(ctx context.Context, inPath string) ([]byte, error) {
	ffmpegPath, err := exec.LookPath(ffmpegBinary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}

	outPath := filepath.Join(os.TempDir(), "perch-frame-"+filepath.Base(inPath)+".jpg")
	defer func() { _ = os.Remove(outPath) }()

	args := []string{"-y", "-i", inPath, "-frames:v", "1", outPath}
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: frame extraction failed: %v (%s)", ErrCompressionFailed, err, truncate(stderr.String(), 200))
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read extracted frame: %v", ErrCompressionFailed, err)
	}
	return data, nil
}

// ExtractGIFFrame decodes the first frame of a GIF as JPEG bytes.
func ExtractGIFFrame(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty GIF data", ErrUnsupportedFormat)
	}
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("%w: GIF has no frames", ErrUnsupportedFormat)
	}
	return encodeFrame(g.Image[0])
}

func encodeFrame(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: startQuality}); err != nil {
		return nil, fmt.Errorf("%w: failed to encode preview frame: %v", ErrCompressionFailed, err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "... (truncated)"
	}
	return s
}
