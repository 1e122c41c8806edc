package stream

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Credentials are the signed-URL query parameters of a request.
type Credentials struct {
	Expires string
	Sig     string
	Token   string
}

// Object is a resolved, existing file ready to be served.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// UseCase resolves what a playback request may read. Every failure a caller may not
// learn about (missing video, missing file, bad signature) is videos.ErrNotFound.
type UseCase interface {
	ResolveStream(ctx context.Context, id uuid.UUID, quality string, cred Credentials) (*Object, error)
	ResolveThumbnail(ctx context.Context, id uuid.UUID, cred Credentials) (*Object, error)
	ResolveHLS(ctx context.Context, id uuid.UUID, file string, cred Credentials) (*Object, error)
	Open(ctx context.Context, obj *Object, r *ByteRange) (io.ReadCloser, error)
}
