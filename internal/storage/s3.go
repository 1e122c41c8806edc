package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Storage struct {
	client        *s3.Client
	preSignClient *s3.PresignClient
	bucket        string
}

// NewS3Storage keeps every key in a single bucket.
func NewS3Storage(client *s3.Client, bucket string) Storage {
	return &s3Storage{
		client:        client,
		preSignClient: s3.NewPresignClient(client),
		bucket:        bucket,
	}
}

func (s *s3Storage) PresignUpload(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	req, err := s.preSignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign put object: %w", err)
	}
	return req.URL, nil
}

func (s *s3Storage) Stat(ctx context.Context, key string) (*ObjectInfo, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	res, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, translateS3Error(key, err)
	}
	info := &ObjectInfo{Key: key, Size: aws.ToInt64(res.ContentLength)}
	if res.LastModified != nil {
		info.ModTime = *res.LastModified
	}
	return info, nil
}

func (s *s3Storage) OpenRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if length <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, translateS3Error(key, err)
	}
	return res.Body, nil
}

func (s *s3Storage) Download(ctx context.Context, key, dst string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return translateS3Error(key, err)
	}
	defer res.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	if _, err := io.Copy(out, res.Body); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return out.Close()
}

func (s *s3Storage) Upload(ctx context.Context, src, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String(ContentType(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func translateS3Error(key string, err error) error {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
		return ErrNotFound
	}
	return fmt.Errorf("s3 %s: %w", key, err)
}
