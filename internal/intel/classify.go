package intel

import "strings"

// SourceKind is a cosmetic classification of a submitted URL. It drives
// icons and labels only; the pipeline does its own routing server-side.
type SourceKind string

const (
	SourceVideo SourceKind = "video"
	SourceRepo  SourceKind = "repository"
	SourceWeb   SourceKind = "web"
)

// Classify inspects a URL string and guesses what kind of source it is.
func Classify(rawURL string) SourceKind {
	u := strings.ToLower(rawURL)
	switch {
	case strings.Contains(u, "youtube.com"), strings.Contains(u, "youtu.be"):
		return SourceVideo
	case strings.Contains(u, "github.com"):
		return SourceRepo
	default:
		return SourceWeb
	}
}

// Label returns a human-readable name for the kind.
func (k SourceKind) Label() string {
	switch k {
	case SourceVideo:
		return "YouTube Video"
	case SourceRepo:
		return "GitHub Repository"
	default:
		return "Web Page"
	}
}

// Icon returns a small glyph for browse lists.
func (k SourceKind) Icon() string {
	switch k {
	case SourceVideo:
		return "▶"
	case SourceRepo:
		return "⌥"
	default:
		return "◦"
	}
}
