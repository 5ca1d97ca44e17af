package pagestack

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestResponseSaverRecordsAndTees(t *testing.T) {
	rr := httptest.NewRecorder()
	saver := NewResponseSaver(rr)

	saver.Header().Set("Content-Type", "text/html")
	saver.Header().Add("X-Thing", "a")
	saver.Header().Add("X-Thing", "b")
	saver.WriteHeader(http.StatusTeapot)
	saver.Write([]byte("Hello "))
	saver.Write([]byte("world"))

	if saver.StatusCode() != http.StatusTeapot {
		t.Fatalf("Status is %d", saver.StatusCode())
	}
	if string(saver.Body()) != "Hello world" {
		t.Fatalf("Body is %q", saver.Body())
	}
	want := [][2]string{
		{"Content-Type", "text/html"},
		{"X-Thing", "a"},
		{"X-Thing", "b"},
	}
	if !reflect.DeepEqual(saver.Headers(), want) {
		t.Fatalf("Headers are %v", saver.Headers())
	}
	// tee'd through to the client
	if rr.Code != http.StatusTeapot || rr.Body.String() != "Hello world" {
		t.Fatalf("Client got %d %q", rr.Code, rr.Body.String())
	}
	if saver.Aborted() {
		t.Fatal("Aborted on a clean write")
	}
}

func TestResponseSaverImplicitOK(t *testing.T) {
	rr := httptest.NewRecorder()
	saver := NewResponseSaver(rr)

	saver.Write([]byte("hi"))

	if saver.StatusCode() != http.StatusOK {
		t.Fatalf("Status is %d", saver.StatusCode())
	}
}

type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header {
	if w.header == nil {
		w.header = http.Header{}
	}
	return w.header
}

func (w *brokenWriter) WriteHeader(int) {}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestResponseSaverAborted(t *testing.T) {
	saver := NewResponseSaver(&brokenWriter{})

	saver.Write([]byte("hi"))

	if !saver.Aborted() {
		t.Fatal("Aborted not set after client write failure")
	}
	// the handler's output is still recorded
	if string(saver.Body()) != "hi" {
		t.Fatalf("Body is %q", saver.Body())
	}
}
