// Package metrics derives dashboard summaries from loaded feed data.
// Everything here is a pure function over already-computed pipeline
// output; nothing is fetched or mutated.
package metrics

import (
	"fmt"

	"github.com/intelboard/intelboard/internal/feed"
)

// PassRateUnavailable is rendered when there is no evidence to rate.
const PassRateUnavailable = "—"

// Health summarizes the state of the feed for the dashboard header.
type Health struct {
	ItemCount int
	PassRate  string
	RunCount  int
	LastRun   *feed.HistoryEntry
}

// ComputeHealth derives the health summary from the report snapshot and
// run history. A zero evidence total yields the unavailable sentinel,
// never a division by zero.
func ComputeHealth(report *feed.Report, history []feed.HistoryEntry) Health {
	h := Health{PassRate: PassRateUnavailable}
	if report != nil {
		h.ItemCount = report.Counts.Items
		if total := report.Counts.EvidenceTotal(); total > 0 {
			rate := float64(report.Counts.EvidencePass) / float64(total) * 100
			h.PassRate = fmt.Sprintf("%.1f%%", rate)
		}
	}
	h.RunCount = len(history)
	if len(history) > 0 {
		h.LastRun = &history[len(history)-1]
	}
	return h
}
