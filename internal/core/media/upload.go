package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"math"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"Perch/internal/client"
	"Perch/internal/core/compressor"
)

// Progress split between the compression and network phases: compression
// contributes the first 20%, the network upload the remaining 80%.
const compressPhaseFraction = 0.2

// Policy configures upload behavior for a batch.
type Policy struct {
	// MaxConcurrentUploads caps how many uploads run at once; excess
	// items queue.
	MaxConcurrentUploads int

	// RetryCount is the number of retries after the first attempt.
	RetryCount int

	// RetryBackoffBase and RetryBackoffMultiplier define the delay before
	// retry n as base * multiplier^n.
	RetryBackoffBase       time.Duration
	RetryBackoffMultiplier float64

	// MaxBytes caps compressed media size. Zero means unbounded.
	MaxBytes int

	// MaxWidth and MaxHeight bound image dimensions before upload.
	MaxWidth  int
	MaxHeight int

	// RequiresAltText gates submission (not upload) on every attachment
	// carrying a description.
	RequiresAltText bool

	// VideoProfile selects the re-encode profile.
	VideoProfile compressor.VideoProfile

	// ScratchDir receives temporary compressed video files. Empty means
	// the system temp dir.
	ScratchDir string
}

// DefaultPolicy returns a policy matching common server-side media limits.
func DefaultPolicy() Policy {
	return Policy{
		MaxConcurrentUploads:   4,
		RetryCount:             3,
		RetryBackoffBase:       500 * time.Millisecond,
		RetryBackoffMultiplier: 2.0,
		MaxBytes:               8 * 1024 * 1024,
		MaxWidth:               3840,
		MaxHeight:              3840,
		RequiresAltText:        false,
		VideoProfile:           compressor.ProfileStandard,
	}
}

// Validate checks the policy for invalid values.
func (p Policy) Validate() error {
	if p.MaxConcurrentUploads <= 0 {
		return fmt.Errorf("MaxConcurrentUploads must be positive, got %d", p.MaxConcurrentUploads)
	}
	if p.RetryCount < 0 {
		return fmt.Errorf("RetryCount cannot be negative, got %d", p.RetryCount)
	}
	if p.RetryBackoffBase < 0 {
		return fmt.Errorf("RetryBackoffBase cannot be negative, got %v", p.RetryBackoffBase)
	}
	if p.RetryBackoffMultiplier < 1 {
		return fmt.Errorf("RetryBackoffMultiplier must be >= 1, got %v", p.RetryBackoffMultiplier)
	}
	if p.MaxBytes < 0 {
		return fmt.Errorf("MaxBytes cannot be negative, got %d", p.MaxBytes)
	}
	return nil
}

// PolicyFromEnv creates a Policy from environment variables, falling back to
// defaults for missing or invalid values.
//
// Environment variables:
//   - UPLOAD_MAX_CONCURRENT: concurrent upload cap (default: 4)
//   - UPLOAD_RETRY_COUNT: retries after the first attempt (default: 3)
//   - UPLOAD_RETRY_BACKOFF_MS: base backoff in milliseconds (default: 500)
//   - UPLOAD_MAX_BYTES: compressed size cap in bytes (default: 8388608)
//   - UPLOAD_REQUIRE_ALT_TEXT: "true"/"1" to gate submission on alt text
func PolicyFromEnv() Policy {
	p := DefaultPolicy()

	if v := os.Getenv("UPLOAD_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxConcurrentUploads = n
		} else {
			slog.Warn("[UPLOAD] invalid UPLOAD_MAX_CONCURRENT value, using default",
				"value", v,
				"default", p.MaxConcurrentUploads,
			)
		}
	}

	if v := os.Getenv("UPLOAD_RETRY_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.RetryCount = n
		} else {
			slog.Warn("[UPLOAD] invalid UPLOAD_RETRY_COUNT value, using default",
				"value", v,
				"default", p.RetryCount,
			)
		}
	}

	if v := os.Getenv("UPLOAD_RETRY_BACKOFF_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.RetryBackoffBase = time.Duration(n) * time.Millisecond
		} else {
			slog.Warn("[UPLOAD] invalid UPLOAD_RETRY_BACKOFF_MS value, using default",
				"value", v,
				"default_ms", p.RetryBackoffBase.Milliseconds(),
			)
		}
	}

	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			p.MaxBytes = n
		} else {
			slog.Warn("[UPLOAD] invalid UPLOAD_MAX_BYTES value, using default",
				"value", v,
				"default", p.MaxBytes,
			)
		}
	}

	if v := os.Getenv("UPLOAD_REQUIRE_ALT_TEXT"); v != "" {
		p.RequiresAltText = v == "true" || v == "1"
	}

	return p
}

// UploadInput is one item handed to the upload service.
type UploadInput struct {
	ID      string
	Content Content
	AltText string
}

// UploadResult is the outcome of a successful upload. NeedsRefresh is set
// when the server accepted the media but is still processing it (no URL
// yet); the caller schedules the refresh poller.
type UploadResult struct {
	Attachment   *client.Attachment
	NeedsRefresh bool
}

// EventType discriminates batch upload events.
type EventType int

const (
	EventStarted EventType = iota
	EventProgress
	EventSucceeded
	EventFailed
)

// Event is a batch upload lifecycle notification. Events for a given item
// id are emitted in order; events for different ids may interleave.
type Event struct {
	Type     EventType
	ID       string
	Progress float64
	Result   *UploadResult
	Err      error
}

// EventSink receives batch upload events. It is called from multiple
// goroutines and must be safe for concurrent use.
type EventSink func(Event)

// UploadService drives the per-item and batch upload lifecycle.
type UploadService interface {
	// Upload compresses and uploads a single item, retrying per policy.
	// Progress is reported in [0.0, 1.0] across both phases.
	Upload(ctx context.Context, input UploadInput, policy Policy, onProgress client.ProgressFunc) (*UploadResult, error)

	// UploadBatch uploads items respecting policy.MaxConcurrentUploads,
	// emitting per-item events on sink. One item's failure does not
	// cancel its siblings. Blocks until all items settle.
	UploadBatch(ctx context.Context, inputs []UploadInput, policy Policy, sink EventSink)
}

type uploadService struct {
	media client.MediaClient
	clock client.Clock
}

// NewUploadService creates an upload service using the given media client
// and clock. The clock is injectable so backoff is testable.
func NewUploadService(media client.MediaClient, clock client.Clock) UploadService {
	return &uploadService{media: media, clock: clock}
}

// Upload compresses the content, then uploads with retry and backoff.
// Flow:
// 1. Compress (images re-encoded to JPEG, videos via encoder profile)
// 2. Upload with progress, retrying policy.RetryCount times with
//    exponential backoff
// 3. Attach alt text if provided
// 4. Flag NeedsRefresh when the server has not produced a URL yet
func (s *uploadService) Upload(ctx context.Context, input UploadInput, policy Policy, onProgress client.ProgressFunc) (*UploadResult, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload policy: %w", err)
	}

	report := func(f float64) {
		if onProgress != nil {
			onProgress(f)
		}
	}
	report(0)

	data, mimeType, err := s.prepare(ctx, input.Content, policy)
	if err != nil {
		return nil, err
	}
	report(compressPhaseFraction)

	// Scale network progress into the remaining fraction
	netProgress := func(f float64) {
		report(compressPhaseFraction + (1-compressPhaseFraction)*f)
	}

	var lastErr error
	for attempt := 0; attempt <= policy.RetryCount; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(policy.RetryBackoffBase) *
				math.Pow(policy.RetryBackoffMultiplier, float64(attempt-1)))
			if err := s.clock.Sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
			}
		}

		att, err := s.media.UploadMedia(ctx, data, mimeType, "", netProgress)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			lastErr = err
			log.Printf("[UPLOAD] attempt %d/%d failed for %s: %v", attempt+1, policy.RetryCount+1, input.ID, err)
			continue
		}

		att = s.attachAltText(ctx, att, input.AltText)
		report(1)
		return &UploadResult{Attachment: att, NeedsRefresh: !att.HasURL()}, nil
	}

	return nil, NewUploadError(lastErr.Error())
}

// prepare turns raw content into upload-ready bytes and a MIME type.
func (s *uploadService) prepare(ctx context.Context, content Content, policy Policy) ([]byte, string, error) {
	switch content.Kind {
	case KindImage:
		out, err := compressor.CompressImage(content.Data, compressor.ImageOptions{
			MaxBytes:  policy.MaxBytes,
			MaxWidth:  policy.MaxWidth,
			MaxHeight: policy.MaxHeight,
		})
		if err != nil {
			if errors.Is(err, compressor.ErrUnsupportedFormat) {
				return nil, "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
			}
			return nil, "", err
		}
		return out, "image/jpeg", nil

	case KindGIF:
		// GIFs are uploaded as-is: re-encoding would drop animation
		data := content.Data
		if len(data) == 0 && content.FilePath != "" {
			var err error
			data, err = os.ReadFile(content.FilePath)
			if err != nil {
				return nil, "", fmt.Errorf("%w: cannot read GIF file: %v", ErrInvalidFormat, err)
			}
		}
		if policy.MaxBytes > 0 && len(data) > policy.MaxBytes {
			return nil, "", fmt.Errorf("%w: GIF is %d bytes, limit %d", ErrSizeLimitExceeded, len(data), policy.MaxBytes)
		}
		return data, "image/gif", nil

	case KindVideo:
		outPath, err := compressor.CompressVideo(ctx, content.FilePath, policy.VideoProfile, policy.ScratchDir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			return nil, "", err
		}
		defer func() {
			if rmErr := os.Remove(outPath); rmErr != nil {
				log.Printf("Warning: failed to remove temp video file %s: %v", outPath, rmErr)
			}
		}()
		data, err := os.ReadFile(outPath)
		if err != nil {
			return nil, "", fmt.Errorf("%w: cannot read compressed video: %v", ErrCompressionFailed, err)
		}
		if policy.MaxBytes > 0 && len(data) > policy.MaxBytes {
			return nil, "", fmt.Errorf("%w: video is %d bytes, limit %d", ErrSizeLimitExceeded, len(data), policy.MaxBytes)
		}
		return data, "video/mp4", nil

	default:
		return nil, "", fmt.Errorf("%w: unknown content kind", ErrInvalidFormat)
	}
}

// attachAltText sets the description on a fresh attachment. A failure here
// is logged but not fatal: the media is uploaded, and the description can
// still be set later or at submit time via media attributes.
func (s *uploadService) attachAltText(ctx context.Context, att *client.Attachment, altText string) *client.Attachment {
	if altText == "" {
		return att
	}
	updated, err := s.media.UpdateAttachment(ctx, att.ID, altText)
	if err != nil {
		log.Printf("[UPLOAD] Warning: failed to attach alt text to %s: %v", att.ID, err)
		return att
	}
	return updated
}

// UploadBatch runs uploads under a weighted semaphore sized to the policy's
// concurrency cap. The batch never fails fast; every item settles with
// either a Succeeded or Failed event.
func (s *uploadService) UploadBatch(ctx context.Context, inputs []UploadInput, policy Policy, sink EventSink) {
	sem := semaphore.NewWeighted(int64(policy.MaxConcurrentUploads))
	var wg sync.WaitGroup

	for _, input := range inputs {
		wg.Add(1)
		go func(in UploadInput) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				sink(Event{Type: EventFailed, ID: in.ID, Err: fmt.Errorf("%w: %v", ErrCancelled, err)})
				return
			}
			defer sem.Release(1)

			sink(Event{Type: EventStarted, ID: in.ID})
			result, err := s.Upload(ctx, in, policy, func(f float64) {
				sink(Event{Type: EventProgress, ID: in.ID, Progress: f})
			})
			if err != nil {
				sink(Event{Type: EventFailed, ID: in.ID, Err: err})
				return
			}
			sink(Event{Type: EventSucceeded, ID: in.ID, Progress: 1, Result: result})
		}(input)
	}

	wg.Wait()
}
