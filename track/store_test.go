package track

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func TestSQLStoreInsert(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "tracking.db")
	store := NewSQLStore(dsn)
	defer store.Close()

	err := store.Insert(ctx, Event{
		UserKey: "abc123",
		URL:     "http://x",
		Type:    "view",
	})
	if err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var userKey, url, trackingType string
	row := db.QueryRow(`SELECT user_key, url, tracking_type FROM tracking_raw`)
	if err := row.Scan(&userKey, &url, &trackingType); err != nil {
		t.Fatal(err)
	}
	if userKey != "abc123" || url != "http://x" || trackingType != "view" {
		t.Fatalf("Stored (%q, %q, %q)", userKey, url, trackingType)
	}
}

func TestSQLStoreInsertTwice(t *testing.T) {
	ctx := context.Background()
	store := NewSQLStore(filepath.Join(t.TempDir(), "tracking.db"))
	defer store.Close()

	for i := 0; i < 2; i++ {
		if err := store.Insert(ctx, Event{UserKey: "k", URL: "u", Type: "view"}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestMemStoreRecordsEvents(t *testing.T) {
	store := NewMemStore()

	store.Insert(context.Background(), Event{UserKey: "k", URL: "u", Type: "view"})

	events := store.Events()
	if len(events) != 1 {
		t.Fatalf("Stored %d events", len(events))
	}
	if events[0].URL != "u" {
		t.Fatalf("URL is %q", events[0].URL)
	}
}
