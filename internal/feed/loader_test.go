package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

// feedHandler serves a minimal feed directory. Individual files can be
// overridden or removed per test.
func feedHandler(files map[string]string) http.Handler {
	mux := http.NewServeMux()
	for name, body := range files {
		body := body
		mux.HandleFunc("/"+name, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body)) //nolint: errcheck
		})
	}
	return mux
}

func defaultFiles() map[string]string {
	return map[string]string{
		"report.json":  `{"counts":{"items":2,"evidence_pass":3,"evidence_fail":1},"by_source":{"GitHub":2},"pillars":{"AI UI/UX":1},"top_items":[]}`,
		"items.json":   `[{"title":"A","overall":0.9},{"title":"B","overall":0.4}]`,
		"history.json": `[{"ts":1700000000000,"run_url":"https://ci.example.com/1"}]`,
		"build.json":   `{"sha":"abcdef1234567890","run_id":"run-42"}`,
	}
}

func TestLoadFullSnapshot(t *testing.T) {
	srv := httptest.NewServer(feedHandler(defaultFiles()))
	defer srv.Close()

	loader := NewLoader(srv.URL, time.Second)
	snap, err := loader.Load(context.Background(), "test-key")
	if err != nil {
		t.Fatalf("failed to load snapshot: %v", err)
	}

	if snap.Report.Counts.Items != 2 {
		t.Errorf("expected 2 items in counts, got %d", snap.Report.Counts.Items)
	}
	if len(snap.Items) != 2 {
		t.Errorf("expected 2 items, got %d", len(snap.Items))
	}
	if len(snap.History) != 1 {
		t.Errorf("expected 1 history entry, got %d", len(snap.History))
	}
	if snap.Build.RunID != "run-42" {
		t.Errorf("expected run_id 'run-42', got %q", snap.Build.RunID)
	}
	if snap.Build.ShortSHA() != "abcdef1" {
		t.Errorf("expected short sha 'abcdef1', got %q", snap.Build.ShortSHA())
	}
	if snap.CacheKey != "test-key" {
		t.Errorf("expected cache key preserved, got %q", snap.CacheKey)
	}
}

func TestLoadSendsCacheParam(t *testing.T) {
	var seen []string
	files := feedHandler(defaultFiles())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Query().Get("v"))
		files.ServeHTTP(w, r)
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL, time.Second)
	if _, err := loader.Load(context.Background(), "key-123"); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if len(seen) != 4 {
		t.Fatalf("expected 4 fetches, got %d", len(seen))
	}
	for _, v := range seen {
		if v != "key-123" {
			t.Errorf("expected cache param 'key-123' on every fetch, got %q", v)
		}
	}
}

func TestLoadRequiredFailure(t *testing.T) {
	files := defaultFiles()
	delete(files, "report.json")
	srv := httptest.NewServer(feedHandler(files))
	defer srv.Close()

	loader := NewLoader(srv.URL, time.Second)
	_, err := loader.Load(context.Background(), "")
	if err == nil {
		t.Fatal("expected error when report.json is missing")
	}
}

func TestLoadItemsFailureIsFatal(t *testing.T) {
	files := defaultFiles()
	files["items.json"] = `not json`
	srv := httptest.NewServer(feedHandler(files))
	defer srv.Close()

	loader := NewLoader(srv.URL, time.Second)
	_, err := loader.Load(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for unparseable items payload")
	}
}

func TestLoadOptionalDegrade(t *testing.T) {
	files := defaultFiles()
	delete(files, "history.json")
	delete(files, "build.json")
	srv := httptest.NewServer(feedHandler(files))
	defer srv.Close()

	loader := NewLoader(srv.URL, time.Second)
	snap, err := loader.Load(context.Background(), "")
	if err != nil {
		t.Fatalf("optional failures should not fail the load: %v", err)
	}
	if len(snap.History) != 0 {
		t.Errorf("expected empty history, got %d entries", len(snap.History))
	}
	if snap.Build.SHA != "" || snap.Build.RunID != "" {
		t.Errorf("expected zero build info, got %+v", snap.Build)
	}
}

func TestDecodeItemsBothShapes(t *testing.T) {
	bare := []byte(`[{"title":"X","overall":0.9},{"title":"Y","overall":0.1}]`)
	wrapped := []byte(`{"items":[{"title":"X","overall":0.9},{"title":"Y","overall":0.1}]}`)

	fromBare, err := DecodeItems(bare)
	if err != nil {
		t.Fatalf("failed to decode bare array: %v", err)
	}
	fromWrapped, err := DecodeItems(wrapped)
	if err != nil {
		t.Fatalf("failed to decode wrapped object: %v", err)
	}

	if !reflect.DeepEqual(fromBare, fromWrapped) {
		t.Errorf("expected identical normalization, got %+v vs %+v", fromBare, fromWrapped)
	}
	if len(fromBare) != 2 || fromBare[0].Title != "X" {
		t.Errorf("unexpected decode result: %+v", fromBare)
	}
}

func TestDecodeItemsRejectsGarbage(t *testing.T) {
	if _, err := DecodeItems([]byte(`"nope"`)); err == nil {
		t.Error("expected error for a string payload")
	}
	if _, err := DecodeItems(nil); err == nil {
		t.Error("expected error for an empty payload")
	}
}

func TestCacheKeyPreference(t *testing.T) {
	if got := CacheKey(BuildInfo{RunID: "run-7", TS: json.Number("123")}); got != "run-7" {
		t.Errorf("expected run_id to win, got %q", got)
	}
	if got := CacheKey(BuildInfo{TS: json.Number("123")}); got != "123" {
		t.Errorf("expected ts fallback, got %q", got)
	}
	if got := CacheKey(BuildInfo{}); got == "" {
		t.Error("expected time-based fallback, got empty key")
	}
}

func TestFlexTimeShapes(t *testing.T) {
	var e HistoryEntry
	if err := json.Unmarshal([]byte(`{"ts":1700000000000}`), &e); err != nil {
		t.Fatalf("millis: %v", err)
	}
	if e.TS.Year() != 2023 {
		t.Errorf("expected 2023 from epoch millis, got %d", e.TS.Year())
	}

	if err := json.Unmarshal([]byte(`{"ts":"2026-08-30T12:00:00Z"}`), &e); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if e.TS.Year() != 2026 {
		t.Errorf("expected 2026 from RFC3339, got %d", e.TS.Year())
	}

	if err := json.Unmarshal([]byte(`{"ts":"2026-08-30"}`), &e); err != nil {
		t.Fatalf("date-only: %v", err)
	}
	if e.TS.Month() != time.August {
		t.Errorf("expected August, got %v", e.TS.Month())
	}
}

func TestSnapshotLastRun(t *testing.T) {
	snap := &Snapshot{}
	if snap.LastRun() != nil {
		t.Error("expected nil last run for empty history")
	}

	snap.History = []HistoryEntry{{RunURL: "a"}, {RunURL: "b"}}
	last := snap.LastRun()
	if last == nil || last.RunURL != "b" {
		t.Errorf("expected final entry, got %+v", last)
	}
}
