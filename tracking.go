package pagestack

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/pagestack/pagestack/track"
)

// TrackingPath is the reserved path tracking events are posted to.
const TrackingPath = "/_tracking"

// tracking intercepts POSTs to the tracking path before they reach the
// cache or the application, and appends one event per post to the
// tracking store. All other requests pass through untouched.
//
// The payload is form-encoded pairs joined by "&", each pair exactly one
// key=value with a single percent-decode pass on the value. Malformed
// payloads are answered with 400 rather than failing the request outright.
// A successful post is always answered with an empty 200.
func (s *Stack) tracking(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != TrackingPath || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		logger := s.getLogger(r)

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Warn().Err(err).Msg("Could not read tracking payload")
			http.Error(w, "bad tracking payload", http.StatusBadRequest)
			return
		}
		data, err := parseTrackingPayload(string(payload))
		if err != nil {
			logger.Warn().Err(err).Msg("Malformed tracking payload")
			http.Error(w, "bad tracking payload", http.StatusBadRequest)
			return
		}

		event := track.Event{
			UserKey: visitorKey(r),
			URL:     data["url"],
			Type:    data["type"],
		}
		if err := s.cfg.Events.Insert(r.Context(), event); err != nil {
			// No fallback is defined for the tracking store being away.
			logger.Error().Err(err).Msg("Could not store tracking event")
			http.Error(w, "tracking unavailable", http.StatusInternalServerError)
			return
		}
		logger.Debug().Str("url", event.URL).Str("type", event.Type).Msg("Tracked")

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	})
}

// parseTrackingPayload splits "&"-joined pairs, each exactly one
// key=value. Values get one percent-decode pass and must be valid UTF-8;
// keys are taken as-is. This is deliberately not a general form parser.
func parseTrackingPayload(payload string) (map[string]string, error) {
	data := make(map[string]string)
	for _, part := range strings.Split(payload, "&") {
		if strings.Count(part, "=") != 1 {
			return nil, fmt.Errorf("malformed pair %q", part)
		}
		k, v, _ := strings.Cut(part, "=")
		decoded, err := url.PathUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("pair %q: %w", part, err)
		}
		if !utf8.ValidString(decoded) {
			return nil, fmt.Errorf("pair %q: invalid utf-8", part)
		}
		data[k] = decoded
	}
	return data, nil
}

// visitorKey derives a unique anonymized key for the visitor so that
// multiple clicks from the same user are not counted twice. The hash is
// one-way and coarse on purpose; it is a dedup signal, not strong
// anonymization.
func visitorKey(r *http.Request) string {
	sum := md5.Sum([]byte(strings.Join([]string{
		r.UserAgent(),
		requestSourceIP(r),
		r.Header.Get("Accept-Language"),
		r.Header.Get("Accept-Encoding"),
	}, "")))
	return hex.EncodeToString(sum[:])
}

// requestSourceIP strips the port from the request's remote address.
// RemoteAddr is in the format:
// 1.2.3.4:10000 for ipv4
// [1:2:3]:10000 for ipv6
func requestSourceIP(r *http.Request) string {
	ipAndPort := r.RemoteAddr
	portSepIdx := strings.LastIndex(ipAndPort, ":")
	if portSepIdx < 0 {
		return ipAndPort
	}
	return ipAndPort[:portSepIdx]
}
