package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service uploads files to a bucket and resolves their public URLs.
// It is safe for concurrent use: the options are read-only after New and
// every upload opens its own writer.
type Service struct {
	store   ObjectStore
	opts    Options
	logger  zerolog.Logger
	newName func() string
}

// New creates a Service that writes through store using opts as the
// process-wide defaults.
func New(store ObjectStore, opts Options, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		opts:    opts,
		logger:  logger.With().Str("component", "storage").Logger(),
		newName: uuid.NewString,
	}
}

// DefaultBucket returns the bucket bound at construction.
func (s *Service) DefaultBucket() string {
	return s.opts.DefaultBucket
}

// Upload writes file.Buffer to a freshly generated object key and returns
// the public URL of the stored object. A failure reported by the backend is
// returned as is.
func (s *Service) Upload(ctx context.Context, file UploadedFile, overrides *RequestOptions) (string, error) {
	if len(file.Buffer) == 0 {
		return "", ErrEmptyFile
	}

	var prefix string
	if overrides != nil {
		prefix = overrides.Prefix
	}
	key, err := objectKey(prefix, s.newName())
	if err != nil {
		return "", err
	}

	eff := resolveOptions(s.opts, overrides)
	if eff.bucket == "" {
		return "", ErrMissingBucket
	}
	if err := checkBucket(eff.bucket); err != nil {
		return "", err
	}
	// A bad base URI must fail before any bytes are written.
	url, err := s.storageURL(key, eff)
	if err != nil {
		return "", err
	}
	streamOpts := streamOptions(eff, file.MimeType)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.store.NewWriter(ctx, eff.bucket, key, streamOpts)
	if _, err := w.Write(file.Buffer); err != nil {
		cancel()
		_ = w.Close()
		s.logger.Error().Err(err).Str("bucket", eff.bucket).Str("key", key).Msg("upload write failed")
		return "", err
	}
	if err := w.Close(); err != nil {
		s.logger.Error().Err(err).Str("bucket", eff.bucket).Str("key", key).Msg("upload failed")
		return "", err
	}

	s.logger.Debug().
		Str("bucket", eff.bucket).
		Str("key", key).
		Str("acl", streamOpts.PredefinedACL).
		Int("bytes", len(file.Buffer)).
		Msg("object uploaded")
	return url, nil
}

// StorageURL returns the public URL of key. It performs no I/O.
//
// With a storage base URI the key is joined onto it. Otherwise the public
// endpoint is used with the override bucket, falling back to the bucket
// bound at construction. Both forms escape the key the same way.
func (s *Service) StorageURL(key string, overrides *RequestOptions) (string, error) {
	return s.storageURL(key, resolveOptions(s.opts, overrides))
}

func (s *Service) storageURL(key string, eff effectiveOptions) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	if eff.storageBaseURI != "" {
		return joinURL(eff.storageBaseURI, key)
	}
	if eff.bucket == "" {
		return "", ErrMissingBucket
	}
	if err := checkBucket(eff.bucket); err != nil {
		return "", err
	}
	endpoint := s.opts.PublicEndpoint
	if endpoint == "" {
		endpoint = gcsPublicEndpoint
	}
	return joinURL(endpoint, eff.bucket, key)
}

// Close releases the underlying client.
func (s *Service) Close() error {
	return s.store.Close()
}
