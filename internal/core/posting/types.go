package posting

import (
	"time"

	"Perch/internal/client"
	"Perch/internal/core/media"
)

// PollSpec describes a poll attached to a submission.
type PollSpec struct {
	Options    []string
	ExpiresIn  time.Duration
	Multiple   bool
	HideTotals bool
}

// Submission is everything the posting service needs to assemble and send
// one status: the session's text, settings, and resolved media containers.
type Submission struct {
	Text        string
	Visibility  client.Visibility
	SpoilerText string
	Language    string
	Containers  []*media.Container
	Poll        *PollSpec

	// InReplyToID chains this submission to a parent status. For thread
	// follow-ups it is assigned dynamically after the parent posts.
	InReplyToID string

	// EditStatusID, when set, turns the submission into an edit of that
	// status instead of a create.
	EditStatusID string

	// MediaAttributes carries per-media overrides for edits, such as
	// post-hoc alt text changes on already-uploaded attachments.
	MediaAttributes []client.MediaAttribute

	// RequiresAltText gates submission on every attachment carrying a
	// non-empty description.
	RequiresAltText bool
}

// Config bounds submissions against server limits.
type Config struct {
	// MaxPollOptions is the server's poll option cap.
	MaxPollOptions int
}

// DefaultConfig matches stock server limits.
func DefaultConfig() Config {
	return Config{MaxPollOptions: 4}
}
