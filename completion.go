package pagestack

import "net/http"

// OnCompletion returns a middleware that calls callback(r) exactly once
// after the wrapped handler is done with the request: when the response
// has been fully written, when the client goes away mid-response, and
// when the handler panics before or during writing.
//
// The callback runs before a panic continues to propagate, so cleanup
// happens even when an outer layer converts the panic into an error
// response. Panics are re-raised unchanged; this middleware neither
// swallows nor alters failures.
func OnCompletion(callback func(*http.Request)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// The handler writes the body before returning, so once it
			// returns the response is drained as far as this process is
			// concerned. deferring gives finally semantics: normal
			// return, panic and early client close all pass through
			// here exactly once.
			defer callback(r)
			next.ServeHTTP(w, r)
		})
	}
}
