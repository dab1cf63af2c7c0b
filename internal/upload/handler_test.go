package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/uploader/internal/storage"
)

type fakeUploader struct {
	file      storage.UploadedFile
	overrides *storage.RequestOptions
	err       error
	calls     int
}

func (f *fakeUploader) Upload(ctx context.Context, file storage.UploadedFile, overrides *storage.RequestOptions) (string, error) {
	f.calls++
	f.file = file
	f.overrides = overrides
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.googleapis.com/my-bucket/abc123", nil
}

func (f *fakeUploader) StorageURL(key string, overrides *storage.RequestOptions) (string, error) {
	svc := storage.New(nil, storage.Options{DefaultBucket: f.DefaultBucket()}, zerolog.Nop())
	return svc.StorageURL(key, overrides)
}

func (f *fakeUploader) DefaultBucket() string { return "my-bucket" }

// discardStore accepts every write.
type discardStore struct{}

func (discardStore) NewWriter(context.Context, string, string, storage.StreamOptions) io.WriteCloser {
	return nopWriteCloser{io.Discard}
}

func (discardStore) Close() error { return nil }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newRouter(u Uploader, maxBytes int64) http.Handler {
	h := NewHandler(u, maxBytes, []string{"other", "../other"})
	r := chi.NewRouter()
	r.Post("/api/v1/uploads", h.Upload)
	r.Get("/api/v1/uploads/url", h.StorageURL)
	return r
}

type envelope struct {
	Success bool `json:"success"`
	Data    struct {
		URL string `json:"url"`
	} `json:"data"`
	Error string `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func multipartRequest(t *testing.T, content []byte, contentType string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if content != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo.jpg"`)
		if contentType != "" {
			hdr.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandler_Upload(t *testing.T) {
	u := &fakeUploader{}
	rec := httptest.NewRecorder()

	newRouter(u, 1<<20).ServeHTTP(rec, multipartRequest(t, []byte("jpeg bytes"), "image/jpeg", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "https://storage.googleapis.com/my-bucket/abc123", env.Data.URL)

	assert.Equal(t, "file", u.file.FieldName)
	assert.Equal(t, "photo.jpg", u.file.OriginalName)
	assert.Equal(t, "image/jpeg", u.file.MimeType)
	assert.Equal(t, []byte("jpeg bytes"), u.file.Buffer)
	assert.EqualValues(t, 10, u.file.Size)
	assert.Nil(t, u.overrides)
}

func TestHandler_Upload_Overrides(t *testing.T) {
	u := &fakeUploader{}
	rec := httptest.NewRecorder()

	req := multipartRequest(t, []byte("data"), "", map[string]string{
		"prefix":         "avatars",
		"predefinedAcl":  "private",
		"bucket":         "other",
		"storageBaseUri": "https://cdn.example.com",
		"cacheControl":   "no-store",
	})
	newRouter(u, 1<<20).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, u.overrides)
	assert.Equal(t, &storage.RequestOptions{
		Prefix:         "avatars",
		PredefinedACL:  "private",
		StorageBaseURI: "https://cdn.example.com",
		Bucket:         "other",
		WriteStream:    &storage.WriteStreamOptions{CacheControl: "no-store"},
	}, u.overrides)
	assert.Empty(t, u.file.MimeType)
}

func TestHandler_Upload_BucketNotAllowed(t *testing.T) {
	u := &fakeUploader{}
	rec := httptest.NewRecorder()

	req := multipartRequest(t, []byte("data"), "text/plain", map[string]string{"bucket": "secret"})
	newRouter(u, 1<<20).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bucket not allowed", decode(t, rec).Error)
	assert.Zero(t, u.calls)
}

func TestHandler_Upload_PrefixTraversal(t *testing.T) {
	svc := storage.New(&discardStore{}, storage.Options{DefaultBucket: "my-bucket"}, zerolog.Nop())
	for _, prefix := range []string{"..", "a/../../x"} {
		t.Run(prefix, func(t *testing.T) {
			rec := httptest.NewRecorder()

			req := multipartRequest(t, []byte("data"), "text/plain", map[string]string{"prefix": prefix})
			newRouter(svc, 1<<20).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid prefix or key", decode(t, rec).Error)
		})
	}
}

func TestHandler_Upload_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"missing file", func(t *testing.T) *http.Request {
			return multipartRequest(t, nil, "", map[string]string{"prefix": "x"})
		}},
		{"unknown acl", func(t *testing.T) *http.Request {
			return multipartRequest(t, []byte("data"), "text/plain", map[string]string{"predefinedAcl": "everyone"})
		}},
		{"not multipart", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(`{"file":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			return req
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &fakeUploader{}
			rec := httptest.NewRecorder()

			newRouter(u, 1<<20).ServeHTTP(rec, tt.req(t))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, decode(t, rec).Success)
			assert.Zero(t, u.calls)
		})
	}
}

func TestHandler_Upload_TooLarge(t *testing.T) {
	u := &fakeUploader{}
	rec := httptest.NewRecorder()

	newRouter(u, 1024).ServeHTTP(rec, multipartRequest(t, bytes.Repeat([]byte("a"), 4096), "text/plain", nil))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Zero(t, u.calls)
}

func TestHandler_Upload_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{storage.ErrEmptyFile, http.StatusBadRequest},
		{storage.ErrMissingBucket, http.StatusBadRequest},
		{storage.ErrInvalidBaseURI, http.StatusBadRequest},
		{fmt.Errorf("%w: prefix %q", storage.ErrInvalidKey, "a/../../x"), http.StatusBadRequest},
		{storage.ErrInvalidBucket, http.StatusBadRequest},
		{errors.New("googleapi: Error 403: Forbidden"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			u := &fakeUploader{err: tt.err}
			rec := httptest.NewRecorder()

			newRouter(u, 1<<20).ServeHTTP(rec, multipartRequest(t, []byte("data"), "text/plain", nil))

			assert.Equal(t, tt.want, rec.Code)
			assert.False(t, decode(t, rec).Success)
		})
	}
}

func TestHandler_StorageURL(t *testing.T) {
	tests := []struct {
		query string
		code  int
		url   string
	}{
		{"?key=abc123", http.StatusOK, "https://storage.googleapis.com/my-bucket/abc123"},
		{"?key=abc123&bucket=other", http.StatusOK, "https://storage.googleapis.com/other/abc123"},
		{"?key=avatars/abc123&storageBaseUri=https://cdn.example.com/files", http.StatusOK, "https://cdn.example.com/files/avatars/abc123"},
		{"", http.StatusBadRequest, ""},
		{"?key=abc&storageBaseUri=relative", http.StatusBadRequest, ""},
		{"?key=../abc", http.StatusBadRequest, ""},
		{"?key=a/../../abc", http.StatusBadRequest, ""},
		{"?key=my%20dir/a%3Fb", http.StatusOK, "https://storage.googleapis.com/my-bucket/my%20dir/a%3Fb"},
		{"?key=abc&bucket=../other", http.StatusBadRequest, ""},
		{"?key=abc&bucket=secret", http.StatusBadRequest, ""},
		{"?key=abc&bucket=my-bucket", http.StatusOK, "https://storage.googleapis.com/my-bucket/abc"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/uploads/url"+tt.query, nil)

			newRouter(&fakeUploader{}, 1<<20).ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, tt.url, decode(t, rec).Data.URL)
		})
	}
}
