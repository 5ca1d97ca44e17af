package pagestack

import (
	"net/http"
	"strings"
)

// resolveLocale selects the request locale from the url,
// eg /fr/home is French.
//
// When the first path segment is a supported locale it is recorded on
// the request Meta and stripped from the path, so the application only
// ever sees locale-free urls. Otherwise the configured default locale
// applies. The canonical current url is recomputed either way.
//
// Resolution runs at most once per request, so nested dispatch keeps
// the locale and the original current url, which helps with 404 pages
// etc.
func (s *Stack) resolveLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := GetMeta(r)
		if meta != nil && !meta.localeResolved {
			meta.localeResolved = true

			parts := strings.Split(r.URL.Path, "/")
			if len(parts) > 1 && s.isLocale(parts[1]) {
				meta.Locale = parts[1]
				meta.LocaleIsDefault = false
				// rewrite url
				if len(parts) > 2 {
					r.URL.Path = "/" + strings.Join(parts[2:], "/")
				} else {
					r.URL.Path = "/"
				}
				r.URL.RawPath = ""
			} else {
				meta.Locale = s.cfg.DefaultLocale
				meta.LocaleIsDefault = true
			}

			meta.CurrentURL = canonicalURL(r.URL.Path, r.URL.RawQuery)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Stack) isLocale(segment string) bool {
	_, ok := s.locales[segment]
	return ok
}

// canonicalURL percent-encodes each path segment and the query string
// independently. Re-encoding sorts out weird, already partially encoded
// input.
func canonicalURL(path, query string) string {
	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = quote(segment)
	}
	url := strings.Join(segments, "/")
	if query != "" {
		url += "?" + quote(query)
	}
	return url
}

const upperhex = "0123456789ABCDEF"

// quote percent-encodes every byte outside the unreserved set, with no
// characters treated as safe, so canonical urls stay stable across
// implementations.
func quote(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
			c == '_' || c == '.' || c == '-' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}
