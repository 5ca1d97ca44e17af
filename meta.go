package pagestack

import (
	"context"
	"net/http"
)

type contextKey struct{}

var metaKey contextKey

// Meta is the per-request scratch state shared by the whole pipeline.
// It is created once by the outermost layer and mutated in place by
// handlers further in, so later layers see fields set by earlier ones.
type Meta struct {
	// Locale is the resolved locale code, e.g. "en" or "fr".
	Locale string
	// LocaleIsDefault is true when no locale segment was present in the
	// path and the configured default was used.
	LocaleIsDefault bool
	// CurrentURL is the canonical application URL for this request, with
	// each path segment and the query string percent-encoded.
	CurrentURL string
	// Cachable is set by the application when the response may be
	// stored and replayed. The cache never guesses.
	Cachable bool
	// RemoteUser is the authenticated user, if any. Requests with a
	// remote user bypass the page cache.
	RemoteUser string

	localeResolved bool
}

// WithMeta returns a request carrying a fresh Meta. If the request
// already carries one it is returned unchanged.
func WithMeta(r *http.Request) *http.Request {
	if GetMeta(r) != nil {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), metaKey, &Meta{}))
}

// GetMeta returns the request's Meta, or nil if the request has not
// passed through the pipeline.
func GetMeta(r *http.Request) *Meta {
	meta, _ := r.Context().Value(metaKey).(*Meta)
	return meta
}

// MarkCachable flags the request's response as safe to cache.
// It is a no-op outside the pipeline.
func MarkCachable(r *http.Request) {
	if meta := GetMeta(r); meta != nil {
		meta.Cachable = true
	}
}
