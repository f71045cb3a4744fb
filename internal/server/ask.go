package server

import (
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/intelboard/intelboard/internal/intel"
)

// Message is one entry in the chat transcript. The transcript lives in
// process memory only and is gone on restart; nothing is persisted.
type Message struct {
	ID      string
	Role    string // "user" or "assistant"
	Text    string
	HTML    template.HTML
	Sources []intel.Source
	At      time.Time
	IsError bool
}

const maxTranscript = 100

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.handleAskSubmit(w, r)
		return
	}

	s.mu.Lock()
	transcript := make([]Message, len(s.transcript))
	copy(transcript, s.transcript)
	s.mu.Unlock()

	s.render(w, "ask.html", map[string]any{
		"Active":     "ask",
		"Transcript": transcript,
	})
}

func (s *Server) handleAskSubmit(w http.ResponseWriter, r *http.Request) {
	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		http.Redirect(w, r, "/ask", http.StatusFound)
		return
	}

	s.appendMessage(Message{
		ID:   uuid.NewString(),
		Role: "user",
		Text: question,
		At:   time.Now(),
	})

	answer, err := s.client.Ask(r.Context(), question, s.cfg.API.TopK)
	switch {
	case err == nil:
		s.appendMessage(Message{
			ID:      uuid.NewString(),
			Role:    "assistant",
			Text:    answer.Answer,
			HTML:    renderMarkdown(answer.Answer),
			Sources: answer.Sources,
			At:      time.Now(),
		})
	default:
		var apiErr *intel.APIError
		text := "The intelligence API is unreachable. Is the pipeline server running?"
		if errors.As(err, &apiErr) {
			text = "Error: " + apiErr.Error()
		}
		s.appendMessage(Message{
			ID:      uuid.NewString(),
			Role:    "assistant",
			Text:    text,
			At:      time.Now(),
			IsError: true,
		})
	}

	http.Redirect(w, r, "/ask", http.StatusFound)
}

func (s *Server) appendMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, m)
	if len(s.transcript) > maxTranscript {
		s.transcript = s.transcript[len(s.transcript)-maxTranscript:]
	}
}
