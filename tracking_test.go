package pagestack

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pagestack/pagestack/track"
)

func trackingRequest(body string) *http.Request {
	req := httptest.NewRequest("POST", TrackingPath, strings.NewReader(body))
	req.Header.Set("User-Agent", "test-agent")
	req.Header.Set("Accept-Language", "fr")
	req.Header.Set("Accept-Encoding", "gzip")
	req.RemoteAddr = "10.0.0.1:54321"
	return req
}

func newTrackingStack(events track.Store) http.Handler {
	s := newTestStack(Config{Events: events})
	return s.tracking(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("application"))
	}))
}

func TestTrackingStoresOneEvent(t *testing.T) {
	events := track.NewMemStore()
	h := newTrackingStack(events)
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, trackingRequest("url=http%3A%2F%2Fx&type=view"))

	got := events.Events()
	if len(got) != 1 {
		t.Fatalf("Stored %d events", len(got))
	}
	if got[0].URL != "http://x" {
		t.Fatalf("URL is %q", got[0].URL)
	}
	if got[0].Type != "view" {
		t.Fatalf("Type is %q", got[0].Type)
	}
	if got[0].UserKey == "" {
		t.Fatal("UserKey is empty")
	}

	if rr.Code != http.StatusOK {
		t.Fatalf("Status is %d", rr.Code)
	}
	if ct := rr.Result().Header.Get("Content-Type"); ct != "text/html" {
		t.Fatalf("Content-Type is %q", ct)
	}
	if body, _ := io.ReadAll(rr.Result().Body); len(body) != 0 {
		t.Fatalf("Body is %q", body)
	}
}

func TestTrackingUserKeyIsDeterministic(t *testing.T) {
	events := track.NewMemStore()
	h := newTrackingStack(events)

	h.ServeHTTP(httptest.NewRecorder(), trackingRequest("url=a&type=page"))
	h.ServeHTTP(httptest.NewRecorder(), trackingRequest("url=b&type=page"))

	got := events.Events()
	if len(got) != 2 {
		t.Fatalf("Stored %d events", len(got))
	}
	if got[0].UserKey != got[1].UserKey {
		t.Fatalf("Keys differ for identical headers: %q vs %q", got[0].UserKey, got[1].UserKey)
	}

	// different headers, different visitor
	other := trackingRequest("url=c&type=page")
	other.Header.Set("User-Agent", "other-agent")
	h.ServeHTTP(httptest.NewRecorder(), other)
	if k := events.Events()[2].UserKey; k == got[0].UserKey {
		t.Fatal("Different visitors hashed to the same key")
	}
}

func TestTrackingMalformedPayload(t *testing.T) {
	for _, body := range []string{
		"urlonly",
		"url=a&bad",
		"url=a=b&type=c",
		"url=%zz&type=view",
		"url=%ff&type=view",
	} {
		events := track.NewMemStore()
		h := newTrackingStack(events)
		rr := httptest.NewRecorder()

		h.ServeHTTP(rr, trackingRequest(body))

		if rr.Code != http.StatusBadRequest {
			t.Errorf("Status for %q is %d", body, rr.Code)
		}
		if len(events.Events()) != 0 {
			t.Errorf("Stored event for malformed payload %q", body)
		}
	}
}

func TestTrackingIgnoresOtherRequests(t *testing.T) {
	events := track.NewMemStore()
	h := newTrackingStack(events)

	get := httptest.NewRequest("GET", TrackingPath, nil)
	other := httptest.NewRequest("POST", "/somewhere", strings.NewReader("url=a&type=b"))

	for _, req := range []*http.Request{get, other} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if body, _ := io.ReadAll(rr.Result().Body); string(body) != "application" {
			t.Fatalf("Request %s %s did not reach the application", req.Method, req.URL.Path)
		}
	}
	if len(events.Events()) != 0 {
		t.Fatalf("Stored %d events", len(events.Events()))
	}
}

func TestParseTrackingPayloadDecodesOnce(t *testing.T) {
	data, err := parseTrackingPayload("url=a%2520b&type=view")
	if err != nil {
		t.Fatal(err)
	}
	// one decode pass only: %2520 becomes %20, not a space
	if data["url"] != "a%20b" {
		t.Fatalf("url is %q", data["url"])
	}
}
