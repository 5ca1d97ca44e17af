package pagestack

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pagestack/pagestack/cache"
)

// replayChunkSize is the write size used when serving a cached body.
// Writing one huge slice slows down the server, so the page is cut up
// into more usable chunks.
const replayChunkSize = 4096

// pageCache serves and stores whole pages. It caches pages that have a
// http status code of 200 and use the GET method. Only non-logged in
// users receive cached pages. Cachable pages are indicated by the
// Cachable flag on the request Meta.
//
// The backend is strictly best-effort: any failure during lookup or
// store falls back to serving the page live, and never surfaces to the
// client.
func (s *Stack) pageCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := GetMeta(r)

		// Only use cache for GET requests by non-logged in users.
		if r.Method != http.MethodGet || meta == nil || meta.RemoteUser != "" {
			next.ServeHTTP(w, r)
			return
		}

		logger := s.getLogger(r)
		key := "page:" + r.URL.Path + "?" + r.URL.RawQuery

		entry, ok, err := s.cfg.Cache.Get(r.Context(), key)
		if err != nil {
			// Backend unavailable, serve the page as normal. The store
			// has cleared its connection so the next request retries.
			cache.Errors.WithLabelValues("get").Inc()
			logger.Warn().Err(err).Str("key", key).Msg("Cache lookup failed, serving live")
			next.ServeHTTP(w, r)
			return
		}

		if ok {
			code, perr := statusCode(entry.Status)
			if perr != nil {
				// Corrupt entry. Serve the page as normal rather than
				// surfacing a cache problem to the client.
				cache.Errors.WithLabelValues("get").Inc()
				logger.Error().Err(perr).Str("key", key).Msg("Corrupt cache entry, serving live")
				next.ServeHTTP(w, r)
				return
			}
			cache.Hits.Inc()
			logger.Debug().Str("key", key).Msg("Cache hit")
			replay(w, code, entry)
			return
		}
		cache.Misses.Inc()

		// Generate the response from the application, teeing it so the
		// status, headers and body are available for the cache write.
		saver := NewResponseSaver(w)
		next.ServeHTTP(saver, r)

		// Only cache complete http status 200 pages the application
		// explicitly marked cachable. An aborted delivery must not be
		// stored as if complete.
		if saver.StatusCode() != http.StatusOK || !meta.Cachable {
			return
		}
		if saver.Aborted() || r.Context().Err() != nil {
			logger.Debug().Str("key", key).Msg("Delivery aborted, not caching")
			return
		}

		err = s.cfg.Cache.Put(r.Context(), key, &cache.Entry{
			Status:  statusLine(saver.StatusCode()),
			Headers: saver.Headers(),
			Body:    saver.Body(),
		})
		if err != nil {
			cache.Errors.WithLabelValues("put").Inc()
			logger.Warn().Err(err).Str("key", key).Msg("Could not write to cache")
			return
		}
		logger.Debug().Str("key", key).Msg("Cache write")
	})
}

// replay writes a stored entry to the client verbatim.
func replay(w http.ResponseWriter, code int, entry *cache.Entry) {
	for _, pair := range entry.Headers {
		w.Header().Add(pair[0], pair[1])
	}
	w.WriteHeader(code)
	body := entry.Body
	for pos := 0; pos < len(body); pos += replayChunkSize {
		end := pos + replayChunkSize
		if end > len(body) {
			end = len(body)
		}
		if _, err := w.Write(body[pos:end]); err != nil {
			return
		}
	}
}

// statusLine renders a status code as a stored status line, e.g. "200 OK".
func statusLine(code int) string {
	return strconv.Itoa(code) + " " + http.StatusText(code)
}

// statusCode parses the code back out of a stored status line.
func statusCode(line string) (int, error) {
	code, _, _ := strings.Cut(line, " ")
	return strconv.Atoi(code)
}
