package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/intelboard/intelboard/internal/config"
	"github.com/intelboard/intelboard/internal/feed"
	"github.com/intelboard/intelboard/internal/intel"
	"github.com/intelboard/intelboard/internal/metrics"
	"github.com/intelboard/intelboard/internal/server"
	"github.com/intelboard/intelboard/internal/store"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "intelboard",
	Short:   "Dashboard over a curated AI intelligence feed",
	Long:    "intelboard renders the exports of an AI intelligence pipeline: feed health, the action queue, browseable items, RAG question answering, and source ingestion.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("intelboard", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/intelboard/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to point at your pipeline's feed and API URLs.")
		return nil
	},
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show feed health and the action queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, stale, err := loadSnapshot(cmd.Context())
		if err != nil {
			return err
		}
		if stale {
			fmt.Println("(live feed unavailable — showing the last cached snapshot)")
			fmt.Println()
		}

		health := metrics.ComputeHealth(snap.Report, snap.History)
		queue := metrics.ComputeActionQueue(snap.Items)

		fmt.Println("Feed health:")
		fmt.Printf("  Items: %d\n", health.ItemCount)
		fmt.Printf("  Pass rate: %s\n", health.PassRate)
		fmt.Printf("  Runs: %d\n", health.RunCount)
		if health.LastRun != nil && !health.LastRun.TS.IsZero() {
			fmt.Printf("  Last run: %s\n", health.LastRun.TS.Format("2006-01-02 15:04"))
		}

		fmt.Println("\nAction queue:")
		fmt.Printf("  Unreviewed: %d\n", queue.Unreviewed)
		fmt.Printf("  Needs review: %d\n", queue.NeedsReview)
		fmt.Printf("  Ready to apply: %d\n", queue.ReadyToApply)

		if snap.Report != nil && len(snap.Report.BySource) > 0 {
			fmt.Println("\nItems by source:")
			// Sort sources by count descending
			type kv struct {
				key string
				val int
			}
			var sorted []kv
			for k, v := range snap.Report.BySource {
				sorted = append(sorted, kv{k, v})
			}
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].val > sorted[j].val })
			for _, s := range sorted {
				fmt.Printf("  %s: %d\n", s.key, s.val)
			}
		}
		return nil
	},
}

// --- pull command ---

var pullKeep int

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch the feed and cache a snapshot locally",
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := feed.NewLoader(cfg.Feed.BaseURL, cfg.APITimeout())
		snap, err := loader.Load(cmd.Context(), "")
		if err != nil {
			return fmt.Errorf("fetching feed: %w", err)
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		id, err := st.SaveSnapshot(snap)
		if err != nil {
			return fmt.Errorf("caching snapshot: %w", err)
		}
		if err := st.PruneSnapshots(pullKeep); err != nil {
			return fmt.Errorf("pruning snapshots: %w", err)
		}

		fmt.Printf("Cached snapshot %d: %d items", id, len(snap.Items))
		if sha := snap.Build.ShortSHA(); sha != "" {
			fmt.Printf(" (build %s)", sha)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	pullCmd.Flags().IntVar(&pullKeep, "keep", 30, "How many cached snapshots to retain")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		loader := feed.NewLoader(cfg.Feed.BaseURL, cfg.APITimeout())
		client := intel.NewClient(cfg.API.BaseURL, cfg.APITimeout())

		st, err := openStore()
		if err != nil {
			log.Printf("snapshot cache unavailable: %v", err)
			st = nil
		} else {
			defer st.Close()
		}

		fmt.Printf("Starting dashboard at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(cfg, loader, client, st, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run the dashboard on (defaults to config)")
}

// --- ask command ---

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		topK := askTopK
		if topK == 0 {
			topK = cfg.API.TopK
		}

		client := intel.NewClient(cfg.API.BaseURL, cfg.APITimeout())
		answer, err := client.Ask(cmd.Context(), question, topK)
		if err != nil {
			return err
		}

		fmt.Println(answer.Answer)
		if len(answer.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, s := range answer.Sources {
				fmt.Printf("  %s (score %.3f)\n    %s\n", s.Title, s.Score, s.URL)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "How many sources to retrieve (defaults to config)")
}

// --- ingest command ---

var ingestDryRun bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [url]",
	Short: "Submit a URL to the pipeline for ingestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL := args[0]
		client := intel.NewClient(cfg.API.BaseURL, cfg.APITimeout())

		kind := intel.Classify(rawURL)
		fmt.Printf("Detected: %s\n", kind.Label())

		if ingestDryRun {
			if title, err := client.Preview(cmd.Context(), rawURL); err == nil {
				fmt.Printf("Title: %s\n", title)
			}
		}

		result, err := client.Ingest(cmd.Context(), rawURL, ingestDryRun)
		if err != nil {
			return err
		}

		if ingestDryRun {
			fmt.Println("Dry run passed — the pipeline accepted this URL.")
			return nil
		}
		if result.ItemID != "" {
			fmt.Printf("Ingested as item %s\n", result.ItemID)
		} else {
			fmt.Println("Submitted for ingestion.")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Validate without storing anything")
}

// loadSnapshot fetches the live feed, falling back to the snapshot cache.
func loadSnapshot(ctx context.Context) (*feed.Snapshot, bool, error) {
	loader := feed.NewLoader(cfg.Feed.BaseURL, cfg.APITimeout())
	snap, err := loader.Load(ctx, "")
	if err == nil {
		return snap, false, nil
	}

	st, storeErr := openStore()
	if storeErr != nil {
		return nil, false, err
	}
	defer st.Close()

	cached, cacheErr := st.LatestSnapshot()
	if cacheErr != nil || cached == nil {
		return nil, false, err
	}
	return cached, true, nil
}

func openStore() (*store.Store, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "intelboard.db")
	return store.Open(dbPath)
}
