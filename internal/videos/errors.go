package videos

import "errors"

var (
	// ErrNotFound covers missing videos and anything the caller may not see.
	ErrNotFound = errors.New("video not found")
	// ErrAlreadyInProgress is returned by Enqueue for queued or processing videos.
	ErrAlreadyInProgress = errors.New("video is already queued or processing")
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotReady          = errors.New("video is not ready")
	// ErrUploadUnsupported means the storage backend cannot presign uploads.
	ErrUploadUnsupported = errors.New("direct upload is not supported by this storage")
	ErrProbeFailed       = errors.New("probe failed")
	ErrEncodeFailed      = errors.New("encode failed")
	// ErrStuckTimeout is the cause recorded when the stuck detector fails a video.
	ErrStuckTimeout = errors.New("stuck job timeout")
)
