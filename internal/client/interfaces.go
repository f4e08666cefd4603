// Package client defines the capability interfaces the composition engine
// depends on, plus a default HTTP implementation speaking the Mastodon API.
// Services take these as injected collaborators so tests can substitute fakes.
package client

import (
	"context"
	"time"
)

// ProgressFunc receives upload progress in the range [0.0, 1.0].
type ProgressFunc func(fraction float64)

// MediaClient covers the media attachment endpoints.
type MediaClient interface {
	// UploadMedia uploads raw media bytes and returns the attachment
	// descriptor. The returned attachment may not yet have a URL if the
	// server is still processing; callers poll GetAttachment.
	UploadMedia(ctx context.Context, data []byte, mimeType string, description string, onProgress ProgressFunc) (*Attachment, error)

	// GetAttachment fetches the current state of an attachment.
	GetAttachment(ctx context.Context, id string) (*Attachment, error)

	// UpdateAttachment changes the description (alt text) of an attachment.
	UpdateAttachment(ctx context.Context, id string, description string) (*Attachment, error)
}

// StatusClient covers status creation and editing.
type StatusClient interface {
	CreateStatus(ctx context.Context, payload StatusPayload) (*Status, error)
	EditStatus(ctx context.Context, id string, payload StatusPayload) (*Status, error)
}

// SearchClient covers the autocomplete search endpoints.
type SearchClient interface {
	// SearchHashtags returns hashtag candidates for a partial tag (no '#').
	SearchHashtags(ctx context.Context, query string) ([]Tag, error)

	// SearchAccounts returns account candidates for a partial acct (no '@').
	SearchAccounts(ctx context.Context, query string) ([]Account, error)
}

// Clock abstracts sleeping so backoff and polling are testable.
type Clock interface {
	// Sleep blocks for d or until ctx is cancelled, returning ctx.Err()
	// in the cancelled case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock implements Clock with real time.
type SystemClock struct{}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
