package storage

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutObjectOptions(t *testing.T) {
	opts := putObjectOptions(StreamOptions{
		PredefinedACL:      "publicRead",
		ContentType:        "image/jpeg",
		CacheControl:       "max-age=60",
		ContentDisposition: "attachment",
		ContentEncoding:    "gzip",
		Metadata:           map[string]string{"owner": "alice"},
	})

	assert.Equal(t, "image/jpeg", opts.ContentType)
	assert.Equal(t, "max-age=60", opts.CacheControl)
	assert.Equal(t, "attachment", opts.ContentDisposition)
	assert.Equal(t, "gzip", opts.ContentEncoding)
	assert.Equal(t, map[string]string{"owner": "alice", "x-amz-acl": "public-read"}, opts.UserMetadata)
}

func TestPutObjectOptions_ACLMapping(t *testing.T) {
	for gcsACL, s3ACL := range map[string]string{
		"private":                "private",
		"projectPrivate":         "private",
		"authenticatedRead":      "authenticated-read",
		"bucketOwnerRead":        "bucket-owner-read",
		"bucketOwnerFullControl": "bucket-owner-full-control",
	} {
		opts := putObjectOptions(StreamOptions{PredefinedACL: gcsACL})
		assert.Equal(t, s3ACL, opts.UserMetadata["x-amz-acl"], gcsACL)
	}

	opts := putObjectOptions(StreamOptions{PredefinedACL: "unknown"})
	assert.NotContains(t, opts.UserMetadata, "x-amz-acl")
}

func TestPutObjectOptions_DoesNotMutateMetadata(t *testing.T) {
	meta := map[string]string{"owner": "alice"}

	putObjectOptions(StreamOptions{PredefinedACL: "publicRead", Metadata: meta})

	assert.Equal(t, map[string]string{"owner": "alice"}, meta)
}

func TestMinioWriter_Lifecycle(t *testing.T) {
	svc, err := NewMinio(MinioConfig{Endpoint: "localhost:9000", AccessKey: "k", SecretKey: "s"}, Options{DefaultBucket: "uploads"}, zerolog.Nop())
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	w := svc.store.NewWriter(ctx, "uploads", "abc", StreamOptions{})

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	// A cancelled upload never reaches the network.
	cancel()
	assert.ErrorIs(t, w.Close(), context.Canceled)

	_, err = w.Write([]byte("more"))
	assert.ErrorIs(t, err, errWriterClosed)
	assert.ErrorIs(t, w.Close(), errWriterClosed)
}
