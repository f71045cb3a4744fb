package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/intelboard/intelboard/internal/intel"
)

// ingestResult carries the outcome of a submission back to the sources
// template. On success the page auto-returns to the form after a short
// delay; on failure the form stays open with the message.
type ingestResult struct {
	OK      bool
	Message string
	ItemID  string
	URL     string
	Kind    string
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Active": "sources"}

	if snap, stale, err := s.snapshot(r); err == nil {
		data["BySource"] = sourceRows(snap.Report)
		data["Stale"] = stale
	}

	s.render(w, "sources.html", data)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Redirect(w, r, "/sources", http.StatusFound)
		return
	}

	rawURL := strings.TrimSpace(r.FormValue("url"))
	data := map[string]any{"Active": "sources"}

	if rawURL == "" {
		data["Result"] = ingestResult{Message: "Enter a URL to ingest."}
		s.render(w, "sources.html", data)
		return
	}

	kind := intel.Classify(rawURL)
	result, err := s.client.Ingest(r.Context(), rawURL, false)
	if err != nil {
		var apiErr *intel.APIError
		msg := "The intelligence API is unreachable. Is the pipeline server running?"
		if errors.As(err, &apiErr) {
			msg = apiErr.Error()
		}
		data["Result"] = ingestResult{Message: msg, URL: rawURL, Kind: kind.Label()}
		s.render(w, "sources.html", data)
		return
	}

	msg := result.Message
	if msg == "" {
		msg = "Source submitted for ingestion."
	}
	data["Result"] = ingestResult{
		OK:      true,
		Message: msg,
		ItemID:  result.ItemID,
		URL:     rawURL,
		Kind:    kind.Label(),
	}
	s.render(w, "sources.html", data)
}
