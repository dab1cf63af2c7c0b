// Package upload exposes the storage uploader over HTTP.
package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/radif/uploader/internal/middleware"
	"github.com/radif/uploader/internal/response"
	"github.com/radif/uploader/internal/storage"
)

// formField is the multipart field carrying the file.
const formField = "file"

// Uploader stores files and resolves their public URLs.
type Uploader interface {
	Upload(ctx context.Context, file storage.UploadedFile, overrides *storage.RequestOptions) (string, error)
	StorageURL(key string, overrides *storage.RequestOptions) (string, error)
	DefaultBucket() string
}

// Handler holds HTTP handlers for upload endpoints.
type Handler struct {
	uploader Uploader
	maxBytes int64
	buckets  map[string]bool
}

// NewHandler creates a new upload Handler. Request bodies above maxBytes are
// rejected. Callers may name the uploader's default bucket or one of
// allowedBuckets; any other bucket override is refused.
func NewHandler(uploader Uploader, maxBytes int64, allowedBuckets []string) *Handler {
	buckets := map[string]bool{uploader.DefaultBucket(): true}
	for _, b := range allowedBuckets {
		buckets[b] = true
	}
	return &Handler{uploader: uploader, maxBytes: maxBytes, buckets: buckets}
}

// bucketAllowed reports whether a request may target bucket. Empty means the
// default bucket.
func (h *Handler) bucketAllowed(bucket string) bool {
	return bucket == "" || h.buckets[bucket]
}

type urlData struct {
	URL string `json:"url" example:"https://storage.googleapis.com/my-bucket/avatars/5f0c6a1e-9b7d-4c1e-8f5e-2d4a7b9c0e11"`
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores the multipart file under a generated key and returns its public URL.
//	@Tags			uploads
//	@Accept			mpfd
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file				formData	file	true	"File to store"
//	@Param			prefix				formData	string	false	"Object key prefix"
//	@Param			predefinedAcl		formData	string	false	"Predefined ACL (default publicRead)"
//	@Param			bucket				formData	string	false	"Bucket override"
//	@Param			storageBaseUri		formData	string	false	"Public base URL override"
//	@Param			cacheControl		formData	string	false	"Cache-Control for the stored object"
//	@Param			contentDisposition	formData	string	false	"Content-Disposition for the stored object"
//	@Success		201					{object}	response.Envelope{data=urlData}
//	@Failure		400					{object}	response.Envelope
//	@Failure		401					{object}	response.Envelope
//	@Failure		413					{object}	response.Envelope
//	@Failure		500					{object}	response.Envelope
//	@Failure		502					{object}	response.Envelope
//	@Router			/uploads [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(w, "file exceeds upload limit")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	f, header, err := r.FormFile(formField)
	if err != nil {
		response.BadRequest(w, "file is required")
		return
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		log.Error().Err(err).Msg("read multipart file")
		response.InternalError(w)
		return
	}

	overrides, msg := overridesFromForm(r)
	if msg != "" {
		response.BadRequest(w, msg)
		return
	}
	if overrides != nil && !h.bucketAllowed(overrides.Bucket) {
		response.BadRequest(w, "bucket not allowed")
		return
	}

	file := storage.UploadedFile{
		FieldName:    formField,
		OriginalName: header.Filename,
		Encoding:     header.Header.Get("Content-Transfer-Encoding"),
		MimeType:     header.Header.Get("Content-Type"),
		Buffer:       buf,
		Size:         header.Size,
	}

	url, err := h.uploader.Upload(r.Context(), file, overrides)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	log.Info().
		Str("subject", middleware.Subject(r.Context())).
		Str("filename", file.OriginalName).
		Int64("size", file.Size).
		Str("url", url).
		Msg("file uploaded")
	response.Created(w, urlData{URL: url})
}

// StorageURL godoc
//
//	@Summary		Resolve an object URL
//	@Description	Returns the public URL for an existing object key without contacting the store.
//	@Tags			uploads
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key				query		string	true	"Object key"
//	@Param			bucket			query		string	false	"Bucket override"
//	@Param			storageBaseUri	query		string	false	"Public base URL override"
//	@Success		200				{object}	response.Envelope{data=urlData}
//	@Failure		400				{object}	response.Envelope
//	@Router			/uploads/url [get]
func (h *Handler) StorageURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := strings.Trim(q.Get("key"), "/")
	if key == "" {
		response.BadRequest(w, "key is required")
		return
	}

	var overrides *storage.RequestOptions
	if bucket, base := q.Get("bucket"), q.Get("storageBaseUri"); bucket != "" || base != "" {
		if !h.bucketAllowed(bucket) {
			response.BadRequest(w, "bucket not allowed")
			return
		}
		overrides = &storage.RequestOptions{Bucket: bucket, StorageBaseURI: base}
	}

	url, err := h.uploader.StorageURL(key, overrides)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.OK(w, urlData{URL: url})
}

// overridesFromForm reads per-request options from the multipart form.
// It returns nil when the caller supplied none, and a message on bad input.
func overridesFromForm(r *http.Request) (*storage.RequestOptions, string) {
	acl := r.FormValue("predefinedAcl")
	if acl != "" && !storage.ValidACL(acl) {
		return nil, "unknown predefinedAcl"
	}

	opts := storage.RequestOptions{
		Prefix:         r.FormValue("prefix"),
		PredefinedACL:  acl,
		StorageBaseURI: r.FormValue("storageBaseUri"),
		Bucket:         r.FormValue("bucket"),
	}
	if cc, cd := r.FormValue("cacheControl"), r.FormValue("contentDisposition"); cc != "" || cd != "" {
		opts.WriteStream = &storage.WriteStreamOptions{CacheControl: cc, ContentDisposition: cd}
	}

	if opts == (storage.RequestOptions{}) {
		return nil, ""
	}
	return &opts, ""
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrEmptyFile):
		response.BadRequest(w, "file is empty")
	case errors.Is(err, storage.ErrMissingBucket):
		response.BadRequest(w, "bucket is required")
	case errors.Is(err, storage.ErrInvalidBaseURI):
		response.BadRequest(w, "invalid storageBaseUri")
	case errors.Is(err, storage.ErrInvalidKey):
		response.BadRequest(w, "invalid prefix or key")
	case errors.Is(err, storage.ErrInvalidBucket):
		response.BadRequest(w, "invalid bucket")
	case r.Context().Err() != nil:
		response.Error(w, http.StatusRequestTimeout, "request cancelled")
	default:
		log.Error().Err(err).Msg("object store upload failed")
		response.BadGateway(w, "object store unavailable")
	}
}
