package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindNoContent     ErrorKind = "no_content"
	ErrorKindFetchFailure  ErrorKind = "fetch_failure"
	ErrorKindEncodeFailure ErrorKind = "encode_failure"
	ErrorKindUploadFailure ErrorKind = "upload_failure"
	ErrorKindStoreFailure  ErrorKind = "store_failure"
	ErrorKindQueueFailure  ErrorKind = "queue_failure"
)

// ReelError is a pipeline failure tagged with the stage that produced it
type ReelError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *ReelError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if e.Message != "" {
		return e.Message
	}

	if e.Err != nil {
		return e.Err.Error()
	}

	return string(e.Kind)
}

func (e *ReelError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a ReelError of the same kind and message, so sentinel errors
// below match wrapped copies of themselves.
func (e *ReelError) Is(target error) bool {
	t, ok := target.(*ReelError)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && t.Message == e.Message && t.Err == nil
}

func NewReelError(kind ErrorKind, message string, err error) *ReelError {
	return &ReelError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Common errors
var (
	ErrNoRunsFound   = &ReelError{Kind: ErrorKindNotFound, Message: "No runs found for this flow"}
	ErrRunNotFound   = &ReelError{Kind: ErrorKindNotFound, Message: "Run not found"}
	ErrNoImagesFound = &ReelError{Kind: ErrorKindNoContent, Message: "No images found in the messages"}
	ErrUploadFailed  = &ReelError{Kind: ErrorKindUploadFailure, Message: "Failed to upload GIF"}
)

// KindOf returns the kind of the first ReelError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var reelErr *ReelError
	if errors.As(err, &reelErr) {
		return reelErr.Kind, true
	}

	return "", false
}

// IsKind checks if an error carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)

	return ok && k == kind
}
