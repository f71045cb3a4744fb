package metrics

import (
	"testing"

	"github.com/intelboard/intelboard/internal/feed"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestComputeHealthPassRate(t *testing.T) {
	report := &feed.Report{
		Counts: feed.Counts{Items: 42, EvidencePass: 3, EvidenceFail: 1},
	}
	h := ComputeHealth(report, nil)

	if h.ItemCount != 42 {
		t.Errorf("expected 42 items, got %d", h.ItemCount)
	}
	if h.PassRate != "75.0%" {
		t.Errorf("expected '75.0%%', got %q", h.PassRate)
	}
}

func TestComputeHealthExplicitEvidenceField(t *testing.T) {
	// An explicit evidence total wins over pass+fail.
	report := &feed.Report{
		Counts: feed.Counts{EvidencePass: 1, EvidenceFail: 1, Evidence: iptr(8)},
	}
	h := ComputeHealth(report, nil)
	if h.PassRate != "12.5%" {
		t.Errorf("expected '12.5%%', got %q", h.PassRate)
	}
}

func TestComputeHealthZeroEvidence(t *testing.T) {
	cases := []feed.Counts{
		{},
		{Evidence: iptr(0), EvidencePass: 5},
		{EvidencePass: 0, EvidenceFail: 0},
	}
	for _, c := range cases {
		h := ComputeHealth(&feed.Report{Counts: c}, nil)
		if h.PassRate != PassRateUnavailable {
			t.Errorf("counts %+v: expected sentinel, got %q", c, h.PassRate)
		}
	}
}

func TestComputeHealthNilReport(t *testing.T) {
	h := ComputeHealth(nil, nil)
	if h.ItemCount != 0 || h.PassRate != PassRateUnavailable {
		t.Errorf("expected zero health, got %+v", h)
	}
}

func TestComputeHealthHistory(t *testing.T) {
	history := []feed.HistoryEntry{
		{RunURL: "https://ci.example.com/1"},
		{RunURL: "https://ci.example.com/2"},
	}
	h := ComputeHealth(nil, history)
	if h.RunCount != 2 {
		t.Errorf("expected 2 runs, got %d", h.RunCount)
	}
	if h.LastRun == nil || h.LastRun.RunURL != "https://ci.example.com/2" {
		t.Errorf("expected final entry as last run, got %+v", h.LastRun)
	}

	empty := ComputeHealth(nil, nil)
	if empty.LastRun != nil {
		t.Error("expected nil last run for empty history")
	}
}

func TestActionQueueReadyToApply(t *testing.T) {
	items := []feed.Item{{
		Title:         "X",
		Overall:       0.9,
		Verdict:       "pass",
		Confidence:    fptr(0.8),
		Credibility:   0.8,
		Actionability: 0.7,
	}}
	q := ComputeActionQueue(items)
	if q.ReadyToApply != 1 {
		t.Errorf("expected readyToApply 1, got %d", q.ReadyToApply)
	}
	if q.Unreviewed != 0 {
		t.Errorf("expected unreviewed 0, got %d", q.Unreviewed)
	}
	if q.NeedsReview != 0 {
		t.Errorf("expected needsReview 0, got %d", q.NeedsReview)
	}
}

func TestActionQueueFailVerdict(t *testing.T) {
	q := ComputeActionQueue([]feed.Item{{Title: "Y", Verdict: "fail"}})
	if q.NeedsReview != 1 {
		t.Errorf("expected needsReview 1, got %d", q.NeedsReview)
	}
	if q.Unreviewed != 0 {
		t.Errorf("expected unreviewed 0, got %d", q.Unreviewed)
	}
}

func TestActionQueueUnreviewed(t *testing.T) {
	items := []feed.Item{
		{Title: "a"},
		{Title: "b", Verdict: ""},
		{Title: "c", Verdict: "pass"},
	}
	q := ComputeActionQueue(items)
	if q.Unreviewed != 2 {
		t.Errorf("expected 2 unreviewed, got %d", q.Unreviewed)
	}
}

func TestActionQueueVerdictCaseInsensitive(t *testing.T) {
	q := ComputeActionQueue([]feed.Item{
		{Verdict: "FAIL"},
		{Verdict: "Pass", Overall: 0.9, Credibility: 0.9, Actionability: 0.9},
	})
	if q.NeedsReview != 1 {
		t.Errorf("expected FAIL to need review, got %d", q.NeedsReview)
	}
	if q.ReadyToApply != 1 {
		t.Errorf("expected Pass to be ready, got %d", q.ReadyToApply)
	}
}

func TestActionQueueLowConfidence(t *testing.T) {
	q := ComputeActionQueue([]feed.Item{
		{Verdict: "pass", Confidence: fptr(0.3)},
		{Verdict: "pass"}, // no confidence: not low-confidence
	})
	if q.NeedsReview != 1 {
		t.Errorf("expected only the low-confidence item, got %d", q.NeedsReview)
	}
}

func TestActionQueueConfidencePath(t *testing.T) {
	// No verdict, but high scores and confidence >= 0.6 is still ready.
	q := ComputeActionQueue([]feed.Item{{
		Overall: 0.7, Credibility: 0.8, Actionability: 0.6, Confidence: fptr(0.6),
	}})
	if q.ReadyToApply != 1 {
		t.Errorf("expected confidence path to qualify, got %d", q.ReadyToApply)
	}
	if q.Unreviewed != 1 {
		t.Errorf("expected unset verdict to also count unreviewed, got %d", q.Unreviewed)
	}
}

func TestActionQueueBucketsAreIndependent(t *testing.T) {
	// fail verdict + low confidence: counts needsReview once, and an
	// unset-verdict item can land in two buckets at the same time.
	q := ComputeActionQueue([]feed.Item{{
		Overall: 0.9, Credibility: 0.9, Actionability: 0.9, Confidence: fptr(0.4),
	}})
	if q.Unreviewed != 1 || q.NeedsReview != 1 {
		t.Errorf("expected item in both buckets, got %+v", q)
	}
	if q.ReadyToApply != 0 {
		t.Errorf("low confidence must not be ready, got %d", q.ReadyToApply)
	}
}
