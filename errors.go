package pagestack

import (
	"net/http"
	"runtime/debug"
)

// recoverer converts panics from inner layers into a 500 response.
// http.ErrAbortHandler is re-raised so the server's abort convention
// keeps working.
func (s *Stack) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.getLogger(r).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("Request handler failed")
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusPages substitutes the configured error page for responses with
// selected status codes: 400 and 404, plus 500 when debug is off. The
// original response body is discarded; the error page handler owns the
// response from the intercepted status on.
func (s *Stack) statusPages(next http.Handler) http.Handler {
	if s.cfg.ErrorPage == nil {
		return next
	}
	codes := map[int]struct{}{
		http.StatusBadRequest: {},
		http.StatusNotFound:   {},
	}
	if !s.cfg.Debug {
		codes[http.StatusInternalServerError] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&statusPageWriter{
			rw:        w,
			r:         r,
			codes:     codes,
			errorPage: s.cfg.ErrorPage,
		}, r)
	})
}

type statusPageWriter struct {
	rw          http.ResponseWriter
	r           *http.Request
	codes       map[int]struct{}
	errorPage   func(http.ResponseWriter, *http.Request, int)
	wroteHeader bool
	intercepted bool
}

func (w *statusPageWriter) Header() http.Header {
	return w.rw.Header()
}

func (w *statusPageWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if _, ok := w.codes[code]; ok {
		w.intercepted = true
		w.errorPage(w.rw, w.r, code)
		return
	}
	w.rw.WriteHeader(code)
}

func (w *statusPageWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	if w.intercepted {
		// pretend the write succeeded so the inner handler finishes
		// normally, its body just goes nowhere
		return len(b), nil
	}
	return w.rw.Write(b)
}
