// Package config handles loading and managing chatarchive configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the chatarchive configuration.
type Config struct {
	Data   DataConfig   `toml:"data"`
	Server ServerConfig `toml:"server"`
	Tagger TaggerConfig `toml:"tagger"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DataConfig describes where the message database lives and how to obtain it.
type DataConfig struct {
	DataDir        string `toml:"data_dir"`
	DatabasePath   string `toml:"database_path"`   // plain SQLite file (default: <data_dir>/messages.db)
	CompressedPath string `toml:"compressed_path"` // gzip or zstd snapshot to expand before serving
	DownloadURL    string `toml:"download_url"`    // remote snapshot fetched when nothing local exists
	DownloadSHA256 string `toml:"download_sha256"` // optional checksum for download_url
	ScratchDir     string `toml:"scratch_dir"`     // where expanded/downloaded copies are kept
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	BindAddr        string   `toml:"bind_addr"`
	APIPort         int      `toml:"api_port"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimitRPS    float64  `toml:"rate_limit_rps"`
	RateLimitBurst  int      `toml:"rate_limit_burst"`
	DefaultPageSize int      `toml:"default_page_size"`
	MaxPageSize     int      `toml:"max_page_size"`
	MetricsEnabled  bool     `toml:"metrics_enabled"`
	Engine          string   `toml:"engine"` // "sqlite" or "duckdb"
}

// TaggerConfig holds settings for the offline tagging pipeline.
type TaggerConfig struct {
	Server            string `toml:"server"` // Ollama server URL
	Model             string `toml:"model"`
	BatchSize         int    `toml:"batch_size"`
	Concurrency       int    `toml:"concurrency"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Schedule          string `toml:"schedule"`      // cron expression for `tag --schedule`
	StopperGap        string `toml:"stopper_gap"`   // e.g. "2h"
	StopperScope      string `toml:"stopper_scope"` // "topic" or "global"
}

// Engine names accepted in [server] engine.
const (
	EngineSQLite = "sqlite"
	EngineDuckDB = "duckdb"
)

// DefaultHome returns the default chatarchive home directory.
// Respects CHATARCHIVE_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("CHATARCHIVE_HOME"); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatarchive"
	}
	return filepath.Join(home, ".chatarchive")
}

// NewDefaultConfig returns a configuration populated with defaults rooted at homeDir.
func NewDefaultConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Server: ServerConfig{
			BindAddr:        "127.0.0.1",
			APIPort:         8080,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
			DefaultPageSize: 50,
			MaxPageSize:     500,
			MetricsEnabled:  true,
			Engine:          EngineSQLite,
		},
		Tagger: TaggerConfig{
			Server:            "http://localhost:11434",
			Model:             "llama3.1",
			BatchSize:         50,
			Concurrency:       3,
			RequestsPerMinute: 48,
			StopperGap:        "2h",
			StopperScope:      "topic",
		},
	}
}

// Load reads the configuration from the specified file.
// If path is empty, uses <home>/config.toml where home is homeDir when
// non-empty and DefaultHome() otherwise. A missing default config file is
// not an error; a missing explicit path is.
func Load(path, homeDir string) (*Config, error) {
	if homeDir == "" {
		homeDir = DefaultHome()
	}
	homeDir = expandPath(homeDir)

	explicit := path != ""
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}
	path = expandPath(path)

	cfg := NewDefaultConfig(homeDir)
	cfg.configPath = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "invalid escape") || strings.Contains(msg, "hexadecimal digits") {
			return nil, fmt.Errorf("decode config: %w\nhint: use forward slashes or single quotes for Windows paths", err)
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.Data.DataDir = expandPath(c.Data.DataDir)
	c.Data.DatabasePath = expandPath(c.Data.DatabasePath)
	c.Data.CompressedPath = expandPath(c.Data.CompressedPath)
	c.Data.ScratchDir = expandPath(c.Data.ScratchDir)

	switch c.Server.Engine {
	case "":
		c.Server.Engine = EngineSQLite
	case EngineSQLite, EngineDuckDB:
	default:
		return fmt.Errorf("invalid [server] engine %q: want %q or %q", c.Server.Engine, EngineSQLite, EngineDuckDB)
	}

	if c.Server.DefaultPageSize <= 0 {
		c.Server.DefaultPageSize = 50
	}
	if c.Server.MaxPageSize < c.Server.DefaultPageSize {
		c.Server.MaxPageSize = c.Server.DefaultPageSize
	}

	switch c.Tagger.StopperScope {
	case "":
		c.Tagger.StopperScope = "topic"
	case "topic", "global":
	default:
		return fmt.Errorf("invalid [tagger] stopper_scope %q: want \"topic\" or \"global\"", c.Tagger.StopperScope)
	}
	if _, err := c.StopperGap(); err != nil {
		return err
	}
	return nil
}

// ConfigFilePath returns the path the configuration was (or would be) loaded from.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home and data directories if they do not exist.
func (c *Config) EnsureHomeDir() error {
	if err := os.MkdirAll(c.HomeDir, 0700); err != nil {
		return err
	}
	if c.Data.DataDir != "" && c.Data.DataDir != c.HomeDir {
		return os.MkdirAll(c.Data.DataDir, 0700)
	}
	return nil
}

// DatabasePath returns the path to the plain SQLite database.
func (c *Config) DatabasePath() string {
	if c.Data.DatabasePath != "" {
		return c.Data.DatabasePath
	}
	return filepath.Join(c.Data.DataDir, "messages.db")
}

// ScratchDir returns the directory used for decompressed or downloaded copies.
func (c *Config) ScratchDir() string {
	if c.Data.ScratchDir != "" {
		return c.Data.ScratchDir
	}
	return filepath.Join(os.TempDir(), "chatarchive")
}

// CheckpointPath returns the path of the tagging pipeline checkpoint file.
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Data.DataDir, "tagger_checkpoint.json")
}

// StopperGap parses [tagger] stopper_gap.
func (c *Config) StopperGap() (time.Duration, error) {
	if c.Tagger.StopperGap == "" {
		return 2 * time.Hour, nil
	}
	d, err := time.ParseDuration(c.Tagger.StopperGap)
	if err != nil {
		return 0, fmt.Errorf("invalid [tagger] stopper_gap %q: %w", c.Tagger.StopperGap, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid [tagger] stopper_gap %q: must be positive", c.Tagger.StopperGap)
	}
	return d, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
