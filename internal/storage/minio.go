package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// MinioConfig describes an S3-compatible endpoint (MinIO, ArvanCloud, AWS S3).
type MinioConfig struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// cannedACLs maps GCS predefined ACL names to S3 canned ACLs.
var cannedACLs = map[string]string{
	"authenticatedRead":      "authenticated-read",
	"bucketOwnerFullControl": "bucket-owner-full-control",
	"bucketOwnerRead":        "bucket-owner-read",
	"private":                "private",
	"projectPrivate":         "private",
	"publicRead":             "public-read",
}

var errWriterClosed = errors.New("storage: writer already closed")

// minioStore writes objects through an S3-compatible client.
type minioStore struct {
	client *minio.Client
}

// NewMinio creates a Service backed by an S3-compatible endpoint. The client
// is created lazily: the bucket is neither checked nor created here.
//
// S3 has no public endpoint derived from the bucket name, so opts.PublicEndpoint
// should point at the browser-accessible endpoint root,
// e.g. "http://localhost:9000".
func NewMinio(cfg MinioConfig, opts Options, logger zerolog.Logger) (*Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return New(&minioStore{client: client}, opts, logger), nil
}

// NewWriter buffers the object and sends it with a single PutObject on Close.
func (s *minioStore) NewWriter(ctx context.Context, bucket, key string, opts StreamOptions) io.WriteCloser {
	return &minioWriter{
		ctx:    ctx,
		client: s.client,
		bucket: bucket,
		key:    key,
		opts:   putObjectOptions(opts),
	}
}

func (s *minioStore) Close() error { return nil }

type minioWriter struct {
	ctx    context.Context
	client *minio.Client
	bucket string
	key    string
	opts   minio.PutObjectOptions
	buf    bytes.Buffer
	closed bool
}

func (w *minioWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errWriterClosed
	}
	return w.buf.Write(p)
}

func (w *minioWriter) Close() error {
	if w.closed {
		return errWriterClosed
	}
	w.closed = true
	if err := w.ctx.Err(); err != nil {
		return err
	}
	_, err := w.client.PutObject(w.ctx, w.bucket, w.key, bytes.NewReader(w.buf.Bytes()), int64(w.buf.Len()), w.opts)
	return err
}

// putObjectOptions translates stream options into a PutObject request.
// The canned ACL travels as the x-amz-acl header.
func putObjectOptions(opts StreamOptions) minio.PutObjectOptions {
	meta := maps.Clone(opts.Metadata)
	if meta == nil {
		meta = make(map[string]string, 1)
	}
	if acl, ok := cannedACLs[opts.PredefinedACL]; ok {
		meta["x-amz-acl"] = acl
	}
	return minio.PutObjectOptions{
		ContentType:        opts.ContentType,
		CacheControl:       opts.CacheControl,
		ContentDisposition: opts.ContentDisposition,
		ContentEncoding:    opts.ContentEncoding,
		UserMetadata:       meta,
	}
}
