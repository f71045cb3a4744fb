package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Feed    Feed    `yaml:"feed"`
	API     API     `yaml:"api"`
	Display Display `yaml:"display"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

// Feed locates the flat JSON exports written by the intelligence pipeline.
type Feed struct {
	BaseURL string `yaml:"base_url"`
}

// API locates the pipeline's HTTP API (/query, /ingest-url, /health).
type API struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	TopK           int    `yaml:"top_k"`
}

type Display struct {
	// MaxItems caps how many rows the items view renders after
	// filtering. It is a render guard, not a data limit.
	MaxItems int `yaml:"max_items"`
	// TopPillars caps the pillar browse list on the dashboard.
	TopPillars int `yaml:"top_pillars"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for intelboard.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "intelboard")
}

// DataDir returns the XDG data directory for intelboard.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "intelboard")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/intelboard/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'intelboard init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file. A .env file in the working
// directory is applied to the environment first, so env overrides keep
// working in deployment wrappers.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Feed: Feed{
			BaseURL: "http://localhost:8000/ui",
		},
		API: API{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 30,
			TopK:           5,
		},
		Display: Display{
			MaxItems:   200,
			TopPillars: 10,
		},
		Server:  Server{Port: 8800},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if v := os.Getenv("INTELBOARD_FEED_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("INTELBOARD_API_URL"); v != "" {
		cfg.API.BaseURL = v
	}

	return cfg, nil
}

// APITimeout returns the configured request timeout as a duration.
func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
