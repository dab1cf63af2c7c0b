// Package storage uploads in-memory files to an object-storage bucket and
// resolves the public URL of the stored object. The GCS client is the default
// backend; any S3-compatible provider works through the MinIO backend.
package storage

import (
	"context"
	"errors"
	"io"
)

// DefaultPredefinedACL is applied when neither the configuration nor the
// request names an access-control preset.
const DefaultPredefinedACL = "publicRead"

// gcsPublicEndpoint serves objects as /<bucket>/<key> when neither a storage
// base URI nor a public endpoint is configured.
const gcsPublicEndpoint = "https://storage.googleapis.com"

var (
	// ErrEmptyFile is returned when the upload buffer has no bytes.
	ErrEmptyFile = errors.New("storage: file buffer is empty")

	// ErrMissingBucket is returned when a URL must be built from the default
	// endpoint but no bucket name is known.
	ErrMissingBucket = errors.New("storage: bucket name is not configured")

	// ErrInvalidBaseURI is returned when the storage base URI cannot be parsed.
	ErrInvalidBaseURI = errors.New("storage: invalid storage base URI")

	// ErrInvalidACL is returned for an unknown predefined ACL name.
	ErrInvalidACL = errors.New("storage: unknown predefined ACL")

	// ErrInvalidKey is returned for a prefix or key with "." or ".."
	// segments, or a key with empty segments.
	ErrInvalidKey = errors.New("storage: invalid object key")

	// ErrInvalidBucket is returned for a bucket name that is not a single
	// path segment.
	ErrInvalidBucket = errors.New("storage: invalid bucket name")
)

// predefinedACLs are the access-control presets accepted by GCS.
var predefinedACLs = map[string]bool{
	"authenticatedRead":      true,
	"bucketOwnerFullControl": true,
	"bucketOwnerRead":        true,
	"private":                true,
	"projectPrivate":         true,
	"publicRead":             true,
}

// ValidACL reports whether acl is a known predefined ACL name.
func ValidACL(acl string) bool {
	return predefinedACLs[acl]
}

// UploadedFile is a file received from a caller, held entirely in memory.
type UploadedFile struct {
	FieldName    string
	OriginalName string
	Encoding     string
	MimeType     string
	Buffer       []byte
	Size         int64
}

// WriteStreamOptions are extra attributes applied to the object writer.
type WriteStreamOptions struct {
	PredefinedACL      string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	Metadata           map[string]string
}

// Options is the process-wide storage configuration. It is built once at
// startup and only read afterwards.
//
// StorageBaseURI is bound to DefaultBucket: it serves the default bucket's
// objects directly under it. PublicEndpoint serves every bucket as
// /<bucket>/<key> and defaults to the GCS public endpoint.
type Options struct {
	KeyFilename     string // path to a service-account key file
	CredentialsJSON string // inline service-account key
	DefaultBucket   string
	PredefinedACL   string
	StorageBaseURI  string
	PublicEndpoint  string
	WriteStream     *WriteStreamOptions
}

// RequestOptions override Options for a single call. Empty fields fall back
// to the configured value; a non-nil WriteStream replaces the configured one.
// A Bucket other than the default drops the configured StorageBaseURI, so the
// URL is built from the public endpoint unless StorageBaseURI is overridden too.
type RequestOptions struct {
	Prefix         string
	PredefinedACL  string
	StorageBaseURI string
	WriteStream    *WriteStreamOptions
	Bucket         string
}

// StreamOptions are the resolved attributes passed to an ObjectStore writer.
// ContentType is empty when the uploaded file carried no MIME type.
type StreamOptions struct {
	PredefinedACL      string
	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	Metadata           map[string]string
}

// ObjectStore opens writers against a remote bucket.
//
// The returned writer reports any transport failure from Write or Close.
// Cancelling ctx aborts the object.
type ObjectStore interface {
	NewWriter(ctx context.Context, bucket, key string, opts StreamOptions) io.WriteCloser
	Close() error
}
