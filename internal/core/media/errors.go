package media

import (
	"errors"
	"fmt"

	"Perch/internal/core/compressor"
)

// Sentinel errors for the attachment pipeline
var (
	// ErrCompressionFailed is returned when media cannot be compressed
	// under the configured limits. Aliased from the compressor so
	// errors.Is works across the package boundary.
	ErrCompressionFailed = compressor.ErrCompressionFailed

	// ErrInvalidFormat is returned when input bytes are not a recognized
	// media format
	ErrInvalidFormat = errors.New("invalid media format")

	// ErrSizeLimitExceeded is returned when media exceeds the policy size
	// limit and cannot be compressed further
	ErrSizeLimitExceeded = errors.New("media size limit exceeded")

	// ErrMissingAltText is returned at submission time when alt text is
	// required but absent
	ErrMissingAltText = errors.New("missing alt text")

	// ErrCancelled is returned when an upload is cancelled before completion
	ErrCancelled = errors.New("upload cancelled")

	// ErrRefreshTimedOut is returned when the attachment URL does not
	// resolve within the refresh attempt budget
	ErrRefreshTimedOut = errors.New("attachment refresh timed out")
)

// UploadError carries the server-provided message for a failed upload.
type UploadError struct {
	ServerMessage string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: %s", e.ServerMessage)
}

// NewUploadError creates an upload error from a server failure.
func NewUploadError(serverMessage string) error {
	return &UploadError{ServerMessage: serverMessage}
}

// IsUploadFailed checks if err is an upload failure.
func IsUploadFailed(err error) bool {
	var uploadErr *UploadError
	return errors.As(err, &uploadErr)
}

// TransitionError is returned when a container state transition is illegal.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal container transition: %s -> %s", e.From, e.To)
}

// IsTransitionError checks if err is an illegal transition.
func IsTransitionError(err error) bool {
	var trErr *TransitionError
	return errors.As(err, &trErr)
}
