// Package posting assembles the final status payload and submits it,
// gating on media readiness and alt text before any network call, with
// sequential thread chaining across sessions.
package posting

import (
	"context"
	"fmt"
	"log"

	"Perch/internal/client"
	"Perch/internal/core/media"
	"Perch/internal/core/text"
)

// Service submits assembled sessions.
type Service interface {
	// Submit validates the submission gate, assembles the payload and
	// dispatches a create (or edit when EditStatusID is set). Gate
	// failures are surfaced before any network call.
	Submit(ctx context.Context, sub *Submission) (*client.Status, error)

	// SubmitThread submits a root and its follow-ups strictly in order,
	// chaining each follow-up's reply target to the previous result. On
	// failure the chain stops: already-posted sessions stay posted, and
	// the returned ThreadError names the failing session. The returned
	// statuses cover the sessions posted before the failure.
	SubmitThread(ctx context.Context, subs []*Submission) ([]*client.Status, error)
}

type postingService struct {
	statuses client.StatusClient
	cfg      Config
}

// NewService creates a posting service using the given status client.
func NewService(statuses client.StatusClient, cfg Config) Service {
	return &postingService{statuses: statuses, cfg: cfg}
}

func (s *postingService) Submit(ctx context.Context, sub *Submission) (*client.Status, error) {
	if err := s.checkGate(sub); err != nil {
		return nil, err
	}

	payload := s.assemble(sub)

	var status *client.Status
	var err error
	if sub.EditStatusID != "" {
		status, err = s.statuses.EditStatus(ctx, sub.EditStatusID, payload)
	} else {
		status, err = s.statuses.CreateStatus(ctx, payload)
	}
	if err != nil {
		return nil, &ServerError{Message: err.Error()}
	}
	return status, nil
}

func (s *postingService) SubmitThread(ctx context.Context, subs []*Submission) ([]*client.Status, error) {
	posted := make([]*client.Status, 0, len(subs))

	for i, sub := range subs {
		if i > 0 {
			// Follow-ups reply to the previous session's result
			sub.InReplyToID = posted[i-1].ID
		}
		status, err := s.Submit(ctx, sub)
		if err != nil {
			if len(posted) > 0 {
				log.Printf("[POSTING] thread stopped at session %d; %d session(s) already posted remain live", i, len(posted))
			}
			return posted, &ThreadError{Index: i, Err: err}
		}
		posted = append(posted, status)
	}

	return posted, nil
}

// checkGate enforces the submission preconditions before any network call:
// every container resolved to Uploaded, alt text present when required,
// poll shape within server limits, and a non-empty post.
func (s *postingService) checkGate(sub *Submission) error {
	for _, c := range sub.Containers {
		if !c.ReadyForSubmission() {
			return NewSubmissionRejected(fmt.Sprintf("media not ready: container %s is %s", c.ID(), c.Phase()))
		}
	}

	if sub.RequiresAltText {
		for _, c := range sub.Containers {
			att := c.Attachment()
			if att.AltText() == "" && !hasAltOverride(sub.MediaAttributes, att.ID) {
				return fmt.Errorf("%w: attachment %s has no description", media.ErrMissingAltText, att.ID)
			}
		}
	}

	if sub.Poll != nil {
		if len(sub.Poll.Options) < 2 {
			return NewSubmissionRejected(fmt.Sprintf("poll needs at least 2 options, got %d", len(sub.Poll.Options)))
		}
		if len(sub.Poll.Options) > s.cfg.MaxPollOptions {
			return NewSubmissionRejected(fmt.Sprintf("poll has %d options, server limit is %d", len(sub.Poll.Options), s.cfg.MaxPollOptions))
		}
	}

	if text.TrimForSubmission(sub.Text) == "" && len(sub.Containers) == 0 && sub.Poll == nil {
		return NewSubmissionRejected("post is empty")
	}

	return nil
}

// assemble builds the outgoing payload. Media ids preserve container order.
func (s *postingService) assemble(sub *Submission) client.StatusPayload {
	payload := client.StatusPayload{
		Status:          text.TrimForSubmission(sub.Text),
		Visibility:      sub.Visibility,
		SpoilerText:     sub.SpoilerText,
		Language:        sub.Language,
		MediaAttributes: sub.MediaAttributes,
	}

	if sub.InReplyToID != "" {
		replyTo := sub.InReplyToID
		payload.InReplyToID = &replyTo
	}

	for _, c := range sub.Containers {
		payload.MediaIDs = append(payload.MediaIDs, c.Attachment().ID)
	}

	if sub.Poll != nil {
		payload.Poll = &client.PollPayload{
			Options:    sub.Poll.Options,
			ExpiresIn:  int(sub.Poll.ExpiresIn.Seconds()),
			Multiple:   sub.Poll.Multiple,
			HideTotals: sub.Poll.HideTotals,
		}
	}

	return payload
}

func hasAltOverride(attrs []client.MediaAttribute, id string) bool {
	for _, a := range attrs {
		if a.ID == id && a.Description != nil && *a.Description != "" {
			return true
		}
	}
	return false
}
