// Package pagestack assembles the request-processing pipeline placed in
// front of the core application handler: locale resolution, a full-page
// response cache, guaranteed completion callbacks, error handling layers
// and the visit tracking endpoint.
package pagestack

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/pagestack/pagestack/cache"
	"github.com/pagestack/pagestack/track"
)

// Middleware wraps a handler with additional behavior. A middleware may
// inspect or modify the request, produce the response itself, or
// delegate to the next handler.
type Middleware func(http.Handler) http.Handler

// Config configures a Stack.
type Config struct {
	// Storage for cached pages. Required when CacheEnabled.
	Cache cache.Store
	// Store for tracking events. Required when TrackingEnabled.
	Events track.Store
	// Logger to use. The global zerolog logger is used if nil.
	Logger *zerolog.Logger

	// Locales the application supports, e.g. ["en", "fr", "de"].
	Locales []string
	// DefaultLocale is used when the request path carries no known
	// locale segment. Defaults to "en".
	DefaultLocale string

	// CacheEnabled turns on the page cache layer.
	CacheEnabled bool
	// TrackingEnabled turns on the /_tracking endpoint.
	TrackingEnabled bool

	// CleanupEnabled runs Cleanup once per request after the response
	// has been fully delivered, or after a failure preempts delivery.
	CleanupEnabled bool
	Cleanup        func(*http.Request)

	// FullStack turns on panic recovery and status code error pages.
	// Disable when the stack is managed by outer middleware that
	// handles its own errors.
	FullStack bool
	// Debug controls which status codes get error pages: 400 and 404
	// when set, plus 500 when not.
	Debug bool
	// ErrorPage renders the error page for an intercepted status code.
	// When nil, intercepted responses pass through untouched.
	ErrorPage func(w http.ResponseWriter, r *http.Request, code int)

	// Extensions are applied in order just outside locale resolution,
	// closest to the core. Register by appending at startup.
	Extensions []Middleware
}

// Stack is the assembled pipeline.
type Stack struct {
	cfg     Config
	log     zerolog.Logger
	locales map[string]struct{}
}

// New creates a Stack from the given configuration.
func New(config Config) *Stack {
	logger := log.Logger
	if config.Logger != nil {
		logger = *config.Logger
	}
	if config.DefaultLocale == "" {
		config.DefaultLocale = "en"
	}
	locales := make(map[string]struct{}, len(config.Locales))
	for _, locale := range config.Locales {
		locales[locale] = struct{}{}
	}
	return &Stack{
		cfg:     config,
		log:     logger,
		locales: locales,
	}
}

// Handler wraps the core application handler in the pipeline.
//
// The wrapping order is fixed, outermost first: request metadata,
// tracking, page cache, completion hook, panic recovery and status code
// pages, extensions, locale resolution, core. The order is observable:
// tracking posts never reach the cache or the application, cache keys
// include the locale path segment, and the completion callback fires
// even when an inner layer panics.
func (s *Stack) Handler(core http.Handler) http.Handler {
	h := s.resolveLocale(core)
	for i := len(s.cfg.Extensions) - 1; i >= 0; i-- {
		h = s.cfg.Extensions[i](h)
	}
	if s.cfg.FullStack {
		h = s.statusPages(h)
		h = s.recoverer(h)
	}
	if s.cfg.CleanupEnabled && s.cfg.Cleanup != nil {
		h = OnCompletion(s.cfg.Cleanup)(h)
	}
	if s.cfg.CacheEnabled {
		h = s.pageCache(h)
	}
	if s.cfg.TrackingEnabled {
		h = s.tracking(h)
	}
	return s.withMeta(h)
}

// withMeta installs the per-request Meta before anything else runs.
func (s *Stack) withMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, WithMeta(r))
	})
}

// getLogger returns the logger from the request context.
// If no logger is found, it will return the stack logger.
func (s *Stack) getLogger(r *http.Request) *zerolog.Logger {
	logger := hlog.FromRequest(r)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.log
	}
	return logger
}
