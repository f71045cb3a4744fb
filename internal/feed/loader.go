package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Loader fetches the pipeline's JSON exports over HTTP.
type Loader struct {
	base   string
	client *http.Client
}

// NewLoader creates a loader for the given feed base URL.
func NewLoader(base string, timeout time.Duration) *Loader {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Loader{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// CacheKey derives the cache-defeating query value for a load. It prefers
// the build's run ID, then its timestamp, then the current time, so a new
// pipeline run always busts intermediary caches.
func CacheKey(build BuildInfo) string {
	if build.RunID != "" {
		return build.RunID
	}
	if build.TS != "" {
		return build.TS.String()
	}
	return strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Load fetches report.json, items.json, history.json, and build.json
// concurrently. report and items are required: a failure on either is
// returned as an error. history and build are optional and degrade to
// empty defaults. The cache key is threaded into every request as the
// ?v= parameter; pass "" to use a time-based key.
func (l *Loader) Load(ctx context.Context, cacheKey string) (*Snapshot, error) {
	if cacheKey == "" {
		cacheKey = CacheKey(BuildInfo{})
	}

	var (
		wg       sync.WaitGroup
		report   Report
		rawItems json.RawMessage
		history  []HistoryEntry
		build    BuildInfo

		reportErr, itemsErr error
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		reportErr = l.fetchJSON(ctx, "report.json", cacheKey, &report)
	}()
	go func() {
		defer wg.Done()
		itemsErr = l.fetchJSON(ctx, "items.json", cacheKey, &rawItems)
	}()
	go func() {
		defer wg.Done()
		if err := l.fetchJSON(ctx, "history.json", cacheKey, &history); err != nil {
			history = nil
		}
	}()
	go func() {
		defer wg.Done()
		if err := l.fetchJSON(ctx, "build.json", cacheKey, &build); err != nil {
			build = BuildInfo{}
		}
	}()
	wg.Wait()

	if reportErr != nil {
		return nil, fmt.Errorf("loading report: %w", reportErr)
	}
	if itemsErr != nil {
		return nil, fmt.Errorf("loading items: %w", itemsErr)
	}

	items, err := DecodeItems(rawItems)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}

	return &Snapshot{
		Report:    &report,
		Items:     items,
		History:   history,
		Build:     build,
		CacheKey:  cacheKey,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// DecodeItems normalizes the two accepted wire shapes for the items
// payload — a bare array, or an object with an "items" field — into one
// canonical slice.
func DecodeItems(data []byte) ([]Item, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty items payload")
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}

	var wrapped struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("items payload is neither an array nor an object with items: %w", err)
	}
	return wrapped.Items, nil
}

func (l *Loader) fetchJSON(ctx context.Context, name, cacheKey string, v any) error {
	u := l.base + "/" + name + "?v=" + cacheKey
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "intelboard/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint: errcheck
		return fmt.Errorf("fetching %s: unexpected status %d", name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}
