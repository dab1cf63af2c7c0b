package storage

import (
	"context"
	"fmt"
	"io"
	"maps"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// gcsStore writes objects through a Google Cloud Storage client.
type gcsStore struct {
	client        *gcs.Client
	defaultBucket string
	bucket        *gcs.BucketHandle
}

// NewGCS opens a GCS client and binds it to opts.DefaultBucket.
//
// Credentials come from opts.CredentialsJSON, then opts.KeyFilename, then
// application default credentials. No request is sent here: a missing bucket
// or a rejected credential surfaces on the first upload. Extra client options
// (an emulator endpoint, for instance) are appended last.
func NewGCS(ctx context.Context, opts Options, logger zerolog.Logger, clientOpts ...option.ClientOption) (*Service, error) {
	var auth []option.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		auth = append(auth, option.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.KeyFilename != "":
		auth = append(auth, option.WithCredentialsFile(opts.KeyFilename))
	}

	client, err := gcs.NewClient(ctx, append(auth, clientOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	store := &gcsStore{
		client:        client,
		defaultBucket: opts.DefaultBucket,
		bucket:        client.Bucket(opts.DefaultBucket),
	}
	return New(store, opts, logger), nil
}

func (s *gcsStore) handle(bucket string) *gcs.BucketHandle {
	if bucket == s.defaultBucket {
		return s.bucket
	}
	return s.client.Bucket(bucket)
}

// NewWriter returns a GCS object writer. Nothing is sent until the first
// Write; Close reports the final status of the upload.
func (s *gcsStore) NewWriter(ctx context.Context, bucket, key string, opts StreamOptions) io.WriteCloser {
	w := s.handle(bucket).Object(key).NewWriter(ctx)
	applyStreamOptions(w, opts)
	return w
}

func (s *gcsStore) Close() error {
	return s.client.Close()
}

func applyStreamOptions(w *gcs.Writer, opts StreamOptions) {
	w.PredefinedACL = opts.PredefinedACL
	if opts.ContentType != "" {
		w.ContentType = opts.ContentType
	}
	w.CacheControl = opts.CacheControl
	w.ContentDisposition = opts.ContentDisposition
	w.ContentEncoding = opts.ContentEncoding
	if len(opts.Metadata) > 0 {
		w.Metadata = maps.Clone(opts.Metadata)
	}
}
