package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

const DefaultComicVineBaseURL = "https://comicvine.gamespot.com/api"

// ComicVine holds the catalog API settings.
type ComicVine struct {
	APIKey            string  `toml:"api_key" env:"COMIC_VINE_API_KEY"`
	BaseURL           string  `toml:"base_url" env:"COMIC_VINE_BASE_URL"`
	UserAgent         string  `toml:"user_agent" env:"COMIC_VINE_USER_AGENT"`
	RequestsPerSecond float64 `toml:"requests_per_second" env:"COMIC_VINE_REQUESTS_PER_SECOND"`
}

// Config is everything the binaries need. Fields are filled from defaults,
// then the TOML file, then the environment.
type Config struct {
	DBPath         string    `toml:"db_path" env:"COMICSHELF_DB_PATH"`
	HTTPAddr       string    `toml:"http_addr" env:"COMICSHELF_HTTP_ADDR"`
	GRPCAddr       string    `toml:"grpc_addr" env:"COMICSHELF_GRPC_ADDR"`
	EventsAddr     string    `toml:"events_addr" env:"COMICSHELF_EVENTS_ADDR"`
	UploadDir      string    `toml:"upload_dir" env:"COMICSHELF_UPLOAD_DIR"`
	MaxUploadBytes int64     `toml:"max_upload_bytes" env:"COMICSHELF_MAX_UPLOAD_BYTES"`
	LogLevel       string    `toml:"log_level" env:"COMICSHELF_LOG_LEVEL"`
	LogFormat      string    `toml:"log_format" env:"COMICSHELF_LOG_FORMAT"`
	ComicVine      ComicVine `toml:"comic_vine"`
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	if p := os.Getenv("COMICSHELF_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(homeDir(), ".comicshelf", "config.toml")
}

// Default returns the built-in settings.
func Default() Config {
	base := filepath.Join(homeDir(), ".comicshelf")
	return Config{
		DBPath:         filepath.Join(base, "comics.db"),
		HTTPAddr:       ":8080",
		GRPCAddr:       ":9090",
		EventsAddr:     ":7070",
		UploadDir:      filepath.Join(base, "uploads"),
		MaxUploadBytes: 2 << 20,
		LogLevel:       "info",
		LogFormat:      "auto",
		ComicVine: ComicVine{
			BaseURL:   DefaultComicVineBaseURL,
			UserAgent: "comicshelf/1.0",
		},
	}
}

// Load builds a Config. A missing file at path is fine; an unreadable or
// malformed one is not. Empty path means DefaultPath().
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	path = ExpandHome(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.DBPath = ExpandHome(strings.TrimSpace(c.DBPath))
	c.UploadDir = ExpandHome(strings.TrimSpace(c.UploadDir))
	c.ComicVine.APIKey = strings.TrimSpace(c.ComicVine.APIKey)
	c.ComicVine.BaseURL = strings.TrimRight(strings.TrimSpace(c.ComicVine.BaseURL), "/")
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate reports the first unusable setting. A missing API key is allowed:
// commands that never reach the catalog still work without one.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("config: db_path must not be empty")
	}
	if c.ComicVine.BaseURL == "" {
		return errors.New("config: comic_vine.base_url must not be empty")
	}
	if c.ComicVine.RequestsPerSecond < 0 {
		return fmt.Errorf("config: comic_vine.requests_per_second must be >= 0, got %v", c.ComicVine.RequestsPerSecond)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.LogFormat {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("config: log_format must be auto, text or json, got %q", c.LogFormat)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return home
}
