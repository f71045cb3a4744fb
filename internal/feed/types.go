package feed

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Item is one curated piece of content from the intelligence pipeline.
// The pipeline owns its lifecycle entirely; this client only reads it.
type Item struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Source        string   `json:"source"`
	SourceType    string   `json:"source_type"`
	Date          string   `json:"date"`
	TLDR          string   `json:"tldr"`
	Why           string   `json:"why"`
	ApplySteps    []string `json:"apply_steps"`
	Pillars       []string `json:"pillars"`
	Overall       float64  `json:"overall"`
	Relevance     float64  `json:"relevance"`
	Actionability float64  `json:"actionability"`
	Credibility   float64  `json:"credibility"`
	// Confidence is nil when the pipeline produced no usable number.
	Confidence *float64 `json:"confidence"`
	Verdict    string   `json:"verdict"`
}

// Counts is the aggregate counters block of a report.
type Counts struct {
	Items        int  `json:"items"`
	Evidence     *int `json:"evidence"`
	EvidencePass int  `json:"evidence_pass"`
	EvidenceFail int  `json:"evidence_fail"`
}

// EvidenceTotal prefers the explicit evidence field and falls back to
// pass+fail when it is absent.
func (c Counts) EvidenceTotal() int {
	if c.Evidence != nil {
		return *c.Evidence
	}
	return c.EvidencePass + c.EvidenceFail
}

// Report is the aggregate snapshot the pipeline exports alongside the
// item collection. The client trusts its counts without cross-checking.
type Report struct {
	Counts   Counts         `json:"counts"`
	BySource map[string]int `json:"by_source"`
	Pillars  map[string]int `json:"pillars"`
	TopItems []Item         `json:"top_items"`
}

// HistoryEntry records one past pipeline run.
type HistoryEntry struct {
	TS     FlexTime `json:"ts"`
	RunURL string   `json:"run_url"`
}

// BuildInfo is optional build metadata, used for the cache key and a
// display badge.
type BuildInfo struct {
	SHA   string      `json:"sha"`
	RunID string      `json:"run_id"`
	TS    json.Number `json:"ts"`
}

// ShortSHA returns the first seven characters of the commit SHA, or "".
func (b BuildInfo) ShortSHA() string {
	if len(b.SHA) >= 7 {
		return b.SHA[:7]
	}
	return b.SHA
}

// Snapshot bundles everything one load of the feed produced.
type Snapshot struct {
	Report    *Report
	Items     []Item
	History   []HistoryEntry
	Build     BuildInfo
	CacheKey  string
	FetchedAt time.Time
}

// LastRun returns the most recent history entry, or nil when there is none.
func (s *Snapshot) LastRun() *HistoryEntry {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// FlexTime decodes the pipeline's loosely typed timestamps: epoch
// milliseconds, epoch seconds, or an RFC3339 / date-only string.
type FlexTime struct {
	time.Time
}

func (f *FlexTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		return nil
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		// Heuristic: values past the year 33658 in seconds are millis.
		if n > 1e12 {
			f.Time = time.UnixMilli(int64(n)).UTC()
		} else {
			f.Time = time.Unix(int64(n), 0).UTC()
		}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, str); err == nil {
			f.Time = t
			return nil
		}
	}
	// Unparseable timestamps degrade to zero rather than failing the
	// whole history payload.
	return nil
}
