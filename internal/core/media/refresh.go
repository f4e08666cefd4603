package media

import (
	"context"
	"fmt"
	"log"
	"time"

	"Perch/internal/client"
)

// RefreshConfig bounds the attachment URL refresh poller.
type RefreshConfig struct {
	// Interval between polls.
	Interval time.Duration

	// MaxAttempts caps the number of polls so a never-resolving
	// attachment cannot leak a background loop.
	MaxAttempts int
}

// DefaultRefreshConfig polls every 5s for up to 5 minutes.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:    5 * time.Second,
		MaxAttempts: 60,
	}
}

// Refresher polls attachment metadata until the server finishes processing
// and produces a URL.
type Refresher struct {
	media client.MediaClient
	clock client.Clock
}

// NewRefresher creates a refresher using the given media client and clock.
func NewRefresher(media client.MediaClient, clock client.Clock) *Refresher {
	return &Refresher{media: media, clock: clock}
}

// AwaitURL polls the attachment at cfg.Interval until its URL resolves,
// ctx is cancelled, or the attempt budget runs out (ErrRefreshTimedOut).
// Transient fetch errors are logged and polling continues.
func (r *Refresher) AwaitURL(ctx context.Context, attachmentID string, cfg RefreshConfig) (*client.Attachment, error) {
	if attachmentID == "" {
		return nil, fmt.Errorf("attachment id cannot be empty")
	}

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := r.clock.Sleep(ctx, cfg.Interval); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		att, err := r.media.GetAttachment(ctx, attachmentID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
			}
			log.Printf("[REFRESH] poll %d for attachment %s failed: %v", attempt+1, attachmentID, err)
			continue
		}
		if att.HasURL() {
			return att, nil
		}
	}

	return nil, fmt.Errorf("%w: attachment %s after %d attempts", ErrRefreshTimedOut, attachmentID, cfg.MaxAttempts)
}
