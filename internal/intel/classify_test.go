package intel

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		url  string
		want SourceKind
	}{
		{"https://www.youtube.com/watch?v=abc123", SourceVideo},
		{"https://youtu.be/abc123", SourceVideo},
		{"https://github.com/langchain-ai/langgraph", SourceRepo},
		{"https://GITHUB.com/some/repo", SourceRepo},
		{"https://example.com/blog/post", SourceWeb},
		{"not even a url", SourceWeb},
	}

	for _, tc := range cases {
		if got := Classify(tc.url); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestSourceKindLabels(t *testing.T) {
	if SourceVideo.Label() != "YouTube Video" {
		t.Errorf("unexpected video label: %q", SourceVideo.Label())
	}
	if SourceRepo.Label() != "GitHub Repository" {
		t.Errorf("unexpected repo label: %q", SourceRepo.Label())
	}
	if SourceWeb.Label() != "Web Page" {
		t.Errorf("unexpected web label: %q", SourceWeb.Label())
	}
}
