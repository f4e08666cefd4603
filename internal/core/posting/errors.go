package posting

import (
	"errors"
	"fmt"
)

// SubmissionRejectedError is returned when the pre-network submission gate
// fails: media still pending/uploading/failed, or an invalid poll.
type SubmissionRejectedError struct {
	Reason string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// NewSubmissionRejected creates a submission gate error.
func NewSubmissionRejected(reason string) error {
	return &SubmissionRejectedError{Reason: reason}
}

// IsSubmissionRejected checks if err is a submission gate failure.
func IsSubmissionRejected(err error) bool {
	var rejErr *SubmissionRejectedError
	return errors.As(err, &rejErr)
}

// ServerError carries the server's message for a failed create or edit.
// No automatic retry happens at this layer; callers may re-invoke manually.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: %s", e.Message)
}

// IsServerError checks if err is a server-side submission failure.
func IsServerError(err error) bool {
	var srvErr *ServerError
	return errors.As(err, &srvErr)
}

// ThreadError reports which session of a thread chain failed. Sessions
// already posted before the failure stay posted.
type ThreadError struct {
	Index int
	Err   error
}

func (e *ThreadError) Error() string {
	return fmt.Sprintf("thread submission failed at session %d: %v", e.Index, e.Err)
}

func (e *ThreadError) Unwrap() error {
	return e.Err
}

// IsThreadError checks if err identifies a failed thread session.
func IsThreadError(err error) bool {
	var thErr *ThreadError
	return errors.As(err, &thErr)
}
