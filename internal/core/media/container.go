package media

import (
	"github.com/google/uuid"

	"Perch/internal/client"
)

// Phase is the lifecycle stage of a media container.
type Phase int

const (
	PhasePending Phase = iota
	PhaseUploading
	PhaseUploaded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseUploading:
		return "uploading"
	case PhaseUploaded:
		return "uploaded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Container is the authoritative per-attachment state tracked through the
// upload pipeline. Its id is stable for the container's whole life.
// Transitions only move forward, with two exceptions: Failed -> Pending via
// explicit Retry, and progress updates within Uploading.
//
// Containers are not internally locked: all mutation is expected to go
// through the single owning editor store, which serializes access.
type Container struct {
	id         string
	phase      Phase
	content    Content
	progress   float64
	attachment *client.Attachment
	err        error
}

// NewContainer creates a pending container for the given content.
func NewContainer(content Content) *Container {
	return &Container{
		id:      uuid.NewString(),
		phase:   PhasePending,
		content: content,
	}
}

// RestoreUploaded creates a container already in the Uploaded phase, used
// when editing an existing status whose attachments are already on the
// server.
func RestoreUploaded(attachment client.Attachment) *Container {
	att := attachment
	return &Container{
		id:         uuid.NewString(),
		phase:      PhaseUploaded,
		attachment: &att,
	}
}

// ID returns the stable container identity.
func (c *Container) ID() string { return c.id }

// Phase returns the current lifecycle stage.
func (c *Container) Phase() Phase { return c.phase }

// Content returns the captured media content.
func (c *Container) Content() Content { return c.content }

// Progress returns upload progress in [0.0, 1.0]; meaningful only while
// uploading.
func (c *Container) Progress() float64 { return c.progress }

// Attachment returns the server attachment descriptor, or nil before the
// upload completes.
func (c *Container) Attachment() *client.Attachment { return c.attachment }

// Err returns the failure cause, or nil unless the container is Failed.
func (c *Container) Err() error { return c.err }

// Preview returns the best available preview: the original preview frame
// captured at ingestion, falling back to the raw image bytes.
func (c *Container) Preview() []byte {
	if len(c.content.Preview) > 0 {
		return c.content.Preview
	}
	if c.content.Kind == KindImage {
		return c.content.Data
	}
	return nil
}

// ReadyForSubmission reports whether the container can contribute a media id
// to a status payload. A container without an attachment can never be
// submitted.
func (c *Container) ReadyForSubmission() bool {
	return c.phase == PhaseUploaded && c.attachment != nil
}

// BeginUpload transitions Pending -> Uploading with progress reset to 0.
func (c *Container) BeginUpload() error {
	if c.phase != PhasePending {
		return &TransitionError{From: c.phase, To: PhaseUploading}
	}
	c.phase = PhaseUploading
	c.progress = 0
	c.err = nil
	return nil
}

// SetProgress records upload progress. Progress is clamped so it never
// moves backwards and never exceeds 1.0.
func (c *Container) SetProgress(p float64) error {
	if c.phase != PhaseUploading {
		return &TransitionError{From: c.phase, To: PhaseUploading}
	}
	if p > 1 {
		p = 1
	}
	if p > c.progress {
		c.progress = p
	}
	return nil
}

// MarkUploaded transitions Uploading -> Uploaded with the server attachment.
// Uploaded is terminal for this upload attempt.
func (c *Container) MarkUploaded(attachment *client.Attachment) error {
	if c.phase != PhaseUploading {
		return &TransitionError{From: c.phase, To: PhaseUploaded}
	}
	c.phase = PhaseUploaded
	c.progress = 1
	c.attachment = attachment
	c.err = nil
	return nil
}

// MarkFailed transitions Pending/Uploading -> Failed, recording the cause.
// The original content is retained so the upload can be retried.
func (c *Container) MarkFailed(cause error) error {
	if c.phase != PhasePending && c.phase != PhaseUploading {
		return &TransitionError{From: c.phase, To: PhaseFailed}
	}
	c.phase = PhaseFailed
	c.err = cause
	return nil
}

// Retry transitions Failed -> Pending, re-entering the pipeline with the
// original content. This is the only backward transition.
func (c *Container) Retry() error {
	if c.phase != PhaseFailed {
		return &TransitionError{From: c.phase, To: PhasePending}
	}
	c.phase = PhasePending
	c.progress = 0
	c.err = nil
	return nil
}

// UpdateAttachment replaces the attachment descriptor on an uploaded
// container, used by the URL refresh poller and alt text edits.
func (c *Container) UpdateAttachment(attachment *client.Attachment) error {
	if c.phase != PhaseUploaded {
		return &TransitionError{From: c.phase, To: PhaseUploaded}
	}
	c.attachment = attachment
	return nil
}
