package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/amankumarsingh77/video-ingest/internal/config"
	"github.com/amankumarsingh77/video-ingest/internal/metrics"
	"github.com/amankumarsingh77/video-ingest/internal/models"
	"github.com/amankumarsingh77/video-ingest/internal/storage"
	"github.com/amankumarsingh77/video-ingest/internal/stream/usecase"
	"github.com/amankumarsingh77/video-ingest/internal/videos"
	"github.com/amankumarsingh77/video-ingest/pkg/logger"
	"github.com/amankumarsingh77/video-ingest/pkg/utils"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type videoLookup struct {
	videos.Repository
	byUUID map[uuid.UUID]*models.Video
}

func (v *videoLookup) GetByUUID(_ context.Context, id uuid.UUID) (*models.Video, error) {
	video, ok := v.byUUID[id]
	if !ok {
		return nil, videos.ErrNotFound
	}
	return video, nil
}

type fixture struct {
	e      *echo.Echo
	cfg    *config.Config
	video  *models.Video
	stream []byte
	r720   []byte
	orig   []byte
}

func writeObject(t *testing.T, root, key string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%251) + seed
	}
	return b
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	id := uuid.New()

	f := &fixture{
		cfg:    &config.Config{},
		stream: pattern(5120, 0),
		r720:   pattern(3000, 1),
		orig:   pattern(2048, 2),
	}
	f.cfg.Server.SigningKey = "secret"

	streamKey := models.StreamObjectPath(id)
	thumbKey := models.ThumbnailObjectPath(id)
	hlsKey := models.HLSPrefix(id) + "/master.m3u8"
	writeObject(t, root, streamKey, f.stream)
	writeObject(t, root, models.RenditionObjectPath(id, models.Quality720P), f.r720)
	writeObject(t, root, "uploads/orig.mov", f.orig)
	writeObject(t, root, thumbKey, []byte("jpeg"))
	writeObject(t, root, hlsKey, []byte("#EXTM3U\n"))
	writeObject(t, root, models.HLSPrefix(id)+"/720p/seg_000.ts", []byte("segment"))
	writeObject(t, root, "secret.txt", []byte("do not serve"))

	f.video = &models.Video{
		ID:              1,
		UUID:            id,
		OriginalPath:    "uploads/orig.mov",
		StreamPath:      &streamKey,
		ThumbnailPath:   &thumbKey,
		HLSMasterPath:   &hlsKey,
		ProcessingState: models.StateReady,
		Visibility:      models.VisibilityPublic,
		Renditions: models.Renditions{
			models.Quality720P: {Path: models.RenditionObjectPath(id, models.Quality720P), Width: 1280, Height: 720, BitrateKbps: 2500, Filesize: 3000},
		},
	}

	store, err := storage.NewLocalStorage(root)
	require.NoError(t, err)
	repo := &videoLookup{byUUID: map[uuid.UUID]*models.Video{id: f.video}}
	uc := usecase.NewStreamUseCase(f.cfg, repo, store, logger.NewNopLogger())

	f.e = echo.New()
	MapStreamRoutes(f.e, NewStreamHandler(uc, metrics.NewNop(), logger.NewNopLogger()))
	return f
}

func (f *fixture) request(method, target, rangeHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) path() string {
	return "/stream/" + f.video.UUID.String()
}

func assertStreamHeaders(t *testing.T, rec *httptest.ResponseRecorder, contentType string) {
	t.Helper()
	assert.Equal(t, contentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "identity", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "no-cache, no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
}

func TestStream_FullFile(t *testing.T) {
	f := newFixture(t)
	rec := f.request(http.MethodGet, f.path(), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assertStreamHeaders(t, rec, "video/mp4")
	assert.Equal(t, "5120", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Header().Get("Content-Range"))
	assert.Equal(t, f.stream, rec.Body.Bytes())
}

func TestStream_OpenEndedRange(t *testing.T) {
	f := newFixture(t)
	rec := f.request(http.MethodGet, f.path(), "bytes=1024-")

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 1024-5119/5120", rec.Header().Get("Content-Range"))
	assert.Equal(t, "4096", rec.Header().Get("Content-Length"))
	assert.Equal(t, f.stream[1024:], rec.Body.Bytes())
	assertStreamHeaders(t, rec, "video/mp4")
}

func TestStream_SuffixLongerThanFile(t *testing.T) {
	f := newFixture(t)
	rec := f.request(http.MethodGet, f.path(), "bytes=-999999")

	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 0-5119/5120", rec.Header().Get("Content-Range"))
	assert.Equal(t, f.stream, rec.Body.Bytes())
}

func TestStream_ExplicitWindows(t *testing.T) {
	f := newFixture(t)
	windows := [][2]int{{0, 0}, {0, 1023}, {100, 199}, {5000, 5119}, {4096, 5119}}
	for _, w := range windows {
		rec := f.request(http.MethodGet, f.path(), "bytes="+strconv.Itoa(w[0])+"-"+strconv.Itoa(w[1]))
		require.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, strconv.Itoa(w[1]-w[0]+1), rec.Header().Get("Content-Length"))
		assert.True(t, bytes.Equal(f.stream[w[0]:w[1]+1], rec.Body.Bytes()), "window %v", w)
	}
}

func TestStream_Unsatisfiable(t *testing.T) {
	f := newFixture(t)
	for _, h := range []string{"bytes=999999-", "bytes=5120-", "bytes=10-5", "pages=1-2", "bytes=x-"} {
		rec := f.request(http.MethodGet, f.path(), h)
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code, h)
		assert.Equal(t, "bytes */5120", rec.Header().Get("Content-Range"), h)
		assert.Empty(t, rec.Body.Bytes(), h)
	}
}

func TestStream_Head(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodHead, f.path(), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5120", rec.Header().Get("Content-Length"))
	assert.Empty(t, rec.Body.Bytes())

	rec = f.request(http.MethodHead, f.path(), "bytes=-100")
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "bytes 5020-5119/5120", rec.Header().Get("Content-Range"))
	assert.Empty(t, rec.Body.Bytes())
}

func TestStream_QualitySelection(t *testing.T) {
	f := newFixture(t)

	rec := f.request(http.MethodGet, f.path()+"?quality=720", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.r720, rec.Body.Bytes())

	rec = f.request(http.MethodGet, f.path()+"?quality=720p", "")
	assert.Equal(t, f.r720, rec.Body.Bytes())

	// missing rendition and unknown labels use the default stream
	rec = f.request(http.MethodGet, f.path()+"?quality=1080", "")
	assert.Equal(t, f.stream, rec.Body.Bytes())
	rec = f.request(http.MethodGet, f.path()+"?quality=4k", "")
	assert.Equal(t, f.stream, rec.Body.Bytes())
}

func TestStream_FallsBackToOriginal(t *testing.T) {
	f := newFixture(t)
	f.video.ProcessingState = models.StateProcessing
	f.video.Renditions = models.Renditions{}

	rec := f.request(http.MethodGet, f.path(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/quicktime", rec.Header().Get("Content-Type"))
	assert.Equal(t, f.orig, rec.Body.Bytes())
}

func TestStream_NotFound(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, "/stream/"+uuid.NewString(), "").Code)
	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, "/stream/nope", "").Code)

	missing := "videos/missing.mp4"
	f.video.StreamPath = &missing
	rec := f.request(http.MethodGet, f.path(), "bytes=0-10")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), missing)
}

func TestStream_PrivateRequiresSignature(t *testing.T) {
	f := newFixture(t)
	f.video.Visibility = models.VisibilityPrivate
	id := f.video.UUID.String()

	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, f.path(), "").Code)

	exp := time.Now().Add(time.Hour).Unix()
	sig := utils.SignStream(id, exp, "secret")
	signed := f.path() + "?expires=" + strconv.FormatInt(exp, 10) + "&sig=" + sig
	assert.Equal(t, http.StatusOK, f.request(http.MethodGet, signed, "").Code)

	expired := time.Now().Add(-time.Minute).Unix()
	stale := f.path() + "?expires=" + strconv.FormatInt(expired, 10) + "&sig=" + utils.SignStream(id, expired, "secret")
	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, stale, "").Code)

	token, err := utils.GeneratePlaybackToken(f.video.UUID, "", "secret", time.Hour, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, f.request(http.MethodGet, f.path()+"?token="+token, "").Code)
}

func TestStream_ProductionRequiresSignature(t *testing.T) {
	f := newFixture(t)
	f.cfg.Server.Mode = "production"
	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, f.path(), "").Code)
}

func TestThumbnail(t *testing.T) {
	f := newFixture(t)
	rec := f.request(http.MethodGet, "/thumb/"+f.video.UUID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assertStreamHeaders(t, rec, "image/jpeg")
	assert.Equal(t, "jpeg", rec.Body.String())

	f.video.ThumbnailPath = nil
	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, "/thumb/"+f.video.UUID.String(), "").Code)
}

func TestHLS(t *testing.T) {
	f := newFixture(t)
	base := "/hls/" + f.video.UUID.String()

	rec := f.request(http.MethodGet, base+"/master.m3u8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.apple.mpegurl", rec.Header().Get("Content-Type"))

	rec = f.request(http.MethodGet, base+"/720p/seg_000.ts", "bytes=0-2")
	require.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "video/mp2t", rec.Header().Get("Content-Type"))
	assert.Equal(t, "seg", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, base+"/..%2F..%2F..%2Fsecret.txt", "").Code)
	assert.Equal(t, http.StatusNotFound, f.request(http.MethodGet, base+"/missing.ts", "").Code)
}
