package storage

import "maps"

// effectiveOptions is Options with one request's overrides applied.
type effectiveOptions struct {
	bucket         string
	predefinedACL  string
	storageBaseURI string
	writeStream    *WriteStreamOptions
}

// resolveOptions applies overrides to the configured options field by field.
// WriteStream is replaced as a whole, never merged. The configured base URI
// belongs to the default bucket and does not follow a bucket override.
func resolveOptions(cfg Options, overrides *RequestOptions) effectiveOptions {
	eff := effectiveOptions{
		bucket:         cfg.DefaultBucket,
		predefinedACL:  cfg.PredefinedACL,
		storageBaseURI: cfg.StorageBaseURI,
		writeStream:    cfg.WriteStream,
	}
	if overrides == nil {
		return eff
	}
	if overrides.Bucket != "" && overrides.Bucket != cfg.DefaultBucket {
		eff.bucket = overrides.Bucket
		eff.storageBaseURI = ""
	}
	if overrides.PredefinedACL != "" {
		eff.predefinedACL = overrides.PredefinedACL
	}
	if overrides.StorageBaseURI != "" {
		eff.storageBaseURI = overrides.StorageBaseURI
	}
	if overrides.WriteStream != nil {
		eff.writeStream = overrides.WriteStream
	}
	return eff
}

// streamOptions builds the writer attributes for one upload. Write stream
// fields are laid over the resolved ACL, so WriteStream.PredefinedACL wins
// when set.
func streamOptions(eff effectiveOptions, mimeType string) StreamOptions {
	opts := StreamOptions{PredefinedACL: eff.predefinedACL}
	if opts.PredefinedACL == "" {
		opts.PredefinedACL = DefaultPredefinedACL
	}

	if ws := eff.writeStream; ws != nil {
		if ws.PredefinedACL != "" {
			opts.PredefinedACL = ws.PredefinedACL
		}
		opts.CacheControl = ws.CacheControl
		opts.ContentDisposition = ws.ContentDisposition
		opts.ContentEncoding = ws.ContentEncoding
		if len(ws.Metadata) > 0 {
			opts.Metadata = maps.Clone(ws.Metadata)
		}
	}

	if mimeType != "" {
		opts.ContentType = mimeType
	}
	return opts
}
