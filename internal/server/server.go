package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"

	"github.com/intelboard/intelboard/internal/config"
	"github.com/intelboard/intelboard/internal/feed"
	"github.com/intelboard/intelboard/internal/intel"
	"github.com/intelboard/intelboard/internal/metrics"
	"github.com/intelboard/intelboard/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Server is the HTTP server for the intelligence dashboard.
type Server struct {
	cfg    *config.Config
	loader *feed.Loader
	client *intel.Client
	cache  *store.Store // may be nil when no cache is configured
	pages  map[string]*template.Template
	mux    *http.ServeMux

	mu         sync.Mutex
	lastBuild  feed.BuildInfo
	transcript []Message
}

// New creates a new Server. cache may be nil.
func New(cfg *config.Config, loader *feed.Loader, client *intel.Client, cache *store.Store) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"score":    func(v float64) string { return fmt.Sprintf("%.3f", v) },
		"conf": func(v *float64) string {
			if v == nil {
				return ""
			}
			return fmt.Sprintf("%.2f", *v)
		},
		"datefmt": formatDate,
		"timefmt": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("Jan 2, 2006 15:04")
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"dashboard.html", "items.html", "ask.html", "sources.html", "settings.html", "help.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{
		cfg:    cfg,
		loader: loader,
		client: client,
		cache:  cache,
		pages:  pages,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Routes
	s.mux.HandleFunc("/", s.handleDashboard)
	s.mux.HandleFunc("/items", s.handleItems)
	s.mux.HandleFunc("/ask", s.handleAsk)
	s.mux.HandleFunc("/sources", s.handleSources)
	s.mux.HandleFunc("/sources/add", s.handleAddSource)
	s.mux.HandleFunc("/settings", s.handleSettings)
	s.mux.HandleFunc("/help", s.handleHelp)
}

// countRow is a name/count pair for the browse lists.
type countRow struct {
	Name  string
	Count int
	Icon  string
}

// snapshot loads the feed, falling back to the latest cached snapshot
// when the live load fails. The bool reports whether the cache served.
func (s *Server) snapshot(r *http.Request) (*feed.Snapshot, bool, error) {
	s.mu.Lock()
	key := feed.CacheKey(s.lastBuild)
	s.mu.Unlock()

	snap, err := s.loader.Load(r.Context(), key)
	if err == nil {
		s.mu.Lock()
		s.lastBuild = snap.Build
		s.mu.Unlock()
		return snap, false, nil
	}

	if s.cache != nil {
		cached, cacheErr := s.cache.LatestSnapshot()
		if cacheErr == nil && cached != nil {
			log.Printf("feed unavailable, serving cached snapshot from %s: %v", cached.FetchedAt, err)
			return cached, true, nil
		}
	}
	return nil, false, err
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := map[string]any{"Active": "dashboard"}

	data["BySource"] = []countRow{}
	data["Pillars"] = []countRow{}

	snap, stale, err := s.snapshot(r)
	if err != nil {
		data["Error"] = "Could not load the intelligence feed: " + err.Error()
		s.render(w, "dashboard.html", data)
		return
	}

	health := metrics.ComputeHealth(snap.Report, snap.History)
	queue := metrics.ComputeActionQueue(snap.Items)

	data["Health"] = health
	data["Queue"] = queue
	data["Stale"] = stale
	data["BuildTag"] = snap.Build.ShortSHA()
	data["BySource"] = sourceRows(snap.Report)
	data["Pillars"] = pillarRows(snap.Report, s.cfg.Display.TopPillars)
	data["TopItems"] = snap.Report.TopItems

	s.render(w, "dashboard.html", data)
}

func sourceRows(report *feed.Report) []countRow {
	if report == nil {
		return nil
	}
	rows := make([]countRow, 0, len(report.BySource))
	for name, count := range report.BySource {
		rows = append(rows, countRow{
			Name:  name,
			Count: count,
			Icon:  intel.Classify(name).Icon(),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func pillarRows(report *feed.Report, limit int) []countRow {
	if report == nil {
		return nil
	}
	rows := make([]countRow, 0, len(report.Pillars))
	for name, count := range report.Pillars {
		rows = append(rows, countRow{Name: name, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := feed.Filters{
		Search: q.Get("q"),
		Source: q.Get("source"),
		Pillar: q.Get("pillar"),
	}
	sortKey := q.Get("sort")

	data := map[string]any{
		"Active":     "items",
		"Query":      filters.Search,
		"Source":     filters.Source,
		"Pillar":     filters.Pillar,
		"Sort":       sortKey,
		"Items":      []feed.Item{},
		"SourceOpts": []string{},
		"PillarOpts": []string{},
	}

	snap, stale, err := s.snapshot(r)
	if err != nil {
		data["Error"] = "Could not load the intelligence feed: " + err.Error()
		s.render(w, "items.html", data)
		return
	}

	filtered := feed.Apply(snap.Items, filters)
	sorted := feed.SortItems(filtered, sortKey)

	data["Stale"] = stale
	data["Items"] = feed.Cap(sorted, s.cfg.Display.MaxItems)
	data["Total"] = len(filtered)
	data["Capped"] = len(filtered) > s.cfg.Display.MaxItems && s.cfg.Display.MaxItems > 0
	data["SourceOpts"] = sortedKeys(snap.Report.BySource)
	data["PillarOpts"] = sortedKeys(snap.Report.Pillars)

	s.render(w, "items.html", data)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Active":  "settings",
		"FeedURL": s.cfg.Feed.BaseURL,
		"APIURL":  s.cfg.API.BaseURL,
		"Timeout": s.cfg.APITimeout().String(),
		"DataDir": s.cfg.GetDataDir(),
	}

	info, err := s.client.Health(r.Context())
	if err != nil {
		data["HealthError"] = "Pipeline API is unreachable: " + err.Error()
	} else {
		data["HealthInfo"] = info
	}

	if s.cache != nil {
		if snaps, err := s.cache.ListSnapshots(5); err == nil {
			data["Snapshots"] = snaps
		}
	}

	s.render(w, "settings.html", data)
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	s.render(w, "help.html", map[string]any{"Active": "help"})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

func formatDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("Jan 2, 2006")
		}
	}
	return raw
}

// Serve starts the HTTP server on the given port.
func Serve(cfg *config.Config, loader *feed.Loader, client *intel.Client, cache *store.Store, port int) error {
	srv, err := New(cfg, loader, client, cache)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
