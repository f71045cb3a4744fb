package metrics

import (
	"strings"

	"github.com/intelboard/intelboard/internal/feed"
)

// ActionQueue counts items by the attention they need. The buckets are
// independent: one item can count toward more than one.
type ActionQueue struct {
	Unreviewed   int
	NeedsReview  int
	ReadyToApply int
}

// ComputeActionQueue walks the item collection once and tallies the
// three buckets.
func ComputeActionQueue(items []feed.Item) ActionQueue {
	var q ActionQueue
	for _, it := range items {
		verdict := strings.ToLower(it.Verdict)

		if verdict == "" {
			q.Unreviewed++
		}
		if verdict == "fail" || (it.Confidence != nil && *it.Confidence < 0.5) {
			q.NeedsReview++
		}
		if it.Overall >= 0.6 && it.Credibility >= 0.7 && it.Actionability >= 0.6 &&
			(verdict == "pass" || (it.Confidence != nil && *it.Confidence >= 0.6)) {
			q.ReadyToApply++
		}
	}
	return q
}
