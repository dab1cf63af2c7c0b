package storage

import (
	"fmt"
	"net/url"
	"strings"
)

// objectKey places name under prefix using URL path semantics. Object keys
// always use forward slashes, whatever the host OS. Empty prefix segments are
// dropped; "." and ".." are rejected because a URL join would collapse them.
func objectKey(prefix, name string) (string, error) {
	var segs []string
	for _, seg := range strings.Split(prefix, "/") {
		switch seg {
		case "":
			continue
		case ".", "..":
			return "", fmt.Errorf("%w: prefix %q", ErrInvalidKey, prefix)
		}
		segs = append(segs, seg)
	}
	return strings.Join(append(segs, name), "/"), nil
}

// checkKey reports whether key survives a URL path join unchanged.
func checkKey(key string) error {
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// checkBucket reports whether bucket is a single URL path segment.
func checkBucket(bucket string) error {
	if bucket == "." || bucket == ".." || strings.Contains(bucket, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidBucket, bucket)
	}
	return nil
}

// joinURL appends the path elements to base without doubling slashes. Every
// segment is percent-escaped, so "?", "#" and "%" stay part of the path.
func joinURL(base string, elem ...string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidBaseURI, base)
	}
	var escaped []string
	for _, e := range elem {
		for _, seg := range strings.Split(e, "/") {
			escaped = append(escaped, url.PathEscape(seg))
		}
	}
	return u.JoinPath(escaped...).String(), nil
}
