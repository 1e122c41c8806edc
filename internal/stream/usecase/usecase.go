package usecase

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	"github.com/amankumarsingh77/video-ingest/internal/stream"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
)

type streamUC struct {
	cfg       *config.Config
	videoRepo videos.Repository
	store     storage.Storage
	logger    logger.Logger
	now       func() time.Time
}

func NewStreamUseCase(cfg *config.Config, videoRepo videos.Repository, store storage.Storage, log logger.Logger) stream.UseCase {
	return &streamUC{
		cfg:       cfg,
		videoRepo: videoRepo,
		store:     store,
		logger:    log,
		now:       time.Now,
	}
}

// ResolveStream picks the rendition for quality, then the fast-start stream of a ready
// video, then the original upload. Unknown or missing qualities fall through.
func (s *streamUC) ResolveStream(ctx context.Context, id uuid.UUID, quality string, cred stream.Credentials) (*stream.Object, error) {
	video, err := s.authorizedVideo(ctx, id, cred)
	if err != nil {
		return nil, err
	}
	return s.stat(ctx, resolveStreamKey(video, quality))
}

func (s *streamUC) ResolveThumbnail(ctx context.Context, id uuid.UUID, cred stream.Credentials) (*stream.Object, error) {
	video, err := s.authorizedVideo(ctx, id, cred)
	if err != nil {
		return nil, err
	}
	if !video.ThumbnailReady() {
		return nil, videos.ErrNotFound
	}
	return s.stat(ctx, *video.ThumbnailPath)
}

// ResolveHLS serves files below the video's hls directory only.
func (s *streamUC) ResolveHLS(ctx context.Context, id uuid.UUID, file string, cred stream.Credentials) (*stream.Object, error) {
	video, err := s.authorizedVideo(ctx, id, cred)
	if err != nil {
		return nil, err
	}
	if !video.HLSReady() {
		return nil, videos.ErrNotFound
	}
	clean := path.Clean("/" + file)
	if clean == "/" || strings.Contains(file, "..") {
		return nil, videos.ErrNotFound
	}
	return s.stat(ctx, models.HLSPrefix(video.UUID)+clean)
}

func (s *streamUC) Open(ctx context.Context, obj *stream.Object, r *stream.ByteRange) (io.ReadCloser, error) {
	offset, length := int64(0), obj.Size
	if r != nil {
		offset, length = r.Start, r.Length()
	}
	rc, err := s.store.OpenRange(ctx, obj.Key, offset, length)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, videos.ErrNotFound
		}
		return nil, err
	}
	return rc, nil
}

func resolveStreamKey(video *models.Video, quality string) string {
	if quality != "" {
		if q, err := models.ParseQuality(quality); err == nil {
			if r, ok := video.Renditions[q]; ok && r.Path != "" {
				return r.Path
			}
		}
	}
	if video.StreamReady() {
		return *video.StreamPath
	}
	return video.OriginalPath
}

func (s *streamUC) stat(ctx context.Context, key string) (*stream.Object, error) {
	info, err := s.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, videos.ErrNotFound
		}
		s.logger.Errorf("streamUC.stat - Stat error: %v", err)
		return nil, err
	}
	return &stream.Object{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: storage.ContentType(info.Key),
	}, nil
}

func (s *streamUC) authorizedVideo(ctx context.Context, id uuid.UUID, cred stream.Credentials) (*models.Video, error) {
	video, err := s.videoRepo.GetByUUID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.signatureRequired(video) {
		return video, nil
	}
	if err = s.verify(video, cred); err != nil {
		s.logger.Debugf("streamUC.authorizedVideo - %s rejected: %v", id, err)
		return nil, videos.ErrNotFound
	}
	return video, nil
}

func (s *streamUC) signatureRequired(video *models.Video) bool {
	return s.cfg.IsProduction() || video.Visibility == models.VisibilityPrivate
}

func (s *streamUC) verify(video *models.Video, cred stream.Credentials) error {
	key := s.cfg.Server.SigningKey
	if key == "" {
		return errors.New("no signing key configured")
	}
	if cred.Token != "" {
		_, err := utils.ValidatePlaybackToken(cred.Token, video.UUID, key)
		return err
	}
	return utils.VerifyStreamSignature(video.UUID.String(), cred.Expires, cred.Sig, key, s.now())
}
