// Package archive copies finished reports to an S3-compatible bucket.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/felixgeelhaar/gapcheck/internal/events"
	"github.com/felixgeelhaar/gapcheck/internal/render"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrNoReport      = errors.New("event carries no report")
	ErrMissingBucket = errors.New("archive bucket is required")
)

// Config holds the connection settings for the object store
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Formats   []render.Format
}

// objectPutter is the subset of the minio client the store writes through
type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store writes rendered reports into a bucket
type Store struct {
	client  objectPutter
	bucket  string
	formats []render.Format
}

// New connects to the object store and creates the bucket if missing
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		slog.Info("created archive bucket", "bucket", cfg.Bucket)
	}

	return newStore(cli, cfg.Bucket, cfg.Formats), nil
}

func newStore(client objectPutter, bucket string, formats []render.Format) *Store {
	if len(formats) == 0 {
		formats = []render.Format{render.FormatJSON, render.FormatMarkdown}
	}
	return &Store{client: client, bucket: bucket, formats: formats}
}

// ObjectKey names the object for one rendering of an event's report
func ObjectKey(ev *events.Event, f render.Format) string {
	stamp := ev.OccurredAt.UTC().Format("20060102T150405Z")
	return path.Join("reports", safeSegment(ev.SessionID), stamp+"-"+ev.ID.String()+f.Extension())
}

// Archive renders the event's report in every configured format and uploads
// each rendering. It returns the written object keys.
func (s *Store) Archive(ctx context.Context, ev *events.Event) ([]string, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if ev.Report == nil {
		return nil, ErrNoReport
	}

	keys := make([]string, 0, len(s.formats))
	for _, f := range s.formats {
		body, err := render.Report(*ev.Report, f)
		if err != nil {
			return keys, err
		}

		key := ObjectKey(ev, f)
		_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
			ContentType: f.ContentType(),
			UserMetadata: map[string]string{
				"session-id": ev.SessionID,
				"score":      fmt.Sprintf("%d", ev.Score),
				"band":       string(ev.Band),
			},
		})
		if err != nil {
			return keys, fmt.Errorf("put %s: %w", key, err)
		}
		keys = append(keys, key)
	}

	slog.Info("archived report", "session_id", ev.SessionID, "bucket", s.bucket, "objects", len(keys))
	return keys, nil
}

// Handle archives ev; it has the shape of a queue event handler
func (s *Store) Handle(ctx context.Context, ev *events.Event) error {
	_, err := s.Archive(ctx, ev)
	return err
}

// safeSegment keeps a session id from escaping its key prefix
func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
