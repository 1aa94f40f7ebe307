// Package config loads inkleaf configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all inkleaf configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Backup  BackupConfig  `yaml:"backup"`
	Search  SearchConfig  `yaml:"search"`
	Raster  RasterConfig  `yaml:"raster"`
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	ArchiveFile string `yaml:"archive_file"`
	IndexFile   string `yaml:"index_file"`
}

type BackupConfig struct {
	Dir             string `yaml:"dir"`
	IntervalSeconds int    `yaml:"interval_seconds"`
}

type SearchConfig struct {
	StrokeGroupingGap float64 `yaml:"stroke_grouping_gap"`
	SnippetLength     int     `yaml:"snippet_length"`
	PrefixMinLength   int     `yaml:"prefix_min_length"`
	ResultLimit       int     `yaml:"result_limit"`
}

type RasterConfig struct {
	Scale   float64 `yaml:"scale"`
	Padding float64 `yaml:"padding"`
	MinSize int     `yaml:"min_size"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			DataDir:     "~/.local/share/inkleaf",
			ArchiveFile: "diary.enc",
			IndexFile:   "search_index.enc",
		},
		Backup: BackupConfig{
			Dir:             "backups",
			IntervalSeconds: 300,
		},
		Search: SearchConfig{
			StrokeGroupingGap: 50.0,
			SnippetLength:     100,
			PrefixMinLength:   2,
			ResultLimit:       50,
		},
		Raster: RasterConfig{
			Scale:   2.0,
			Padding: 10.0,
			MinSize: 32,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load reads a YAML config file at path and merges it with defaults, then
// applies INKLEAF_* environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyEnv(cfg)

	expanded, err := expandPath(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.DataDir = expanded

	return cfg, nil
}

// applyEnv overlays INKLEAF_* environment variables on the config.
func applyEnv(cfg *Config) {
	if v := os.Getenv("INKLEAF_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("INKLEAF_ARCHIVE_FILE"); v != "" {
		cfg.Storage.ArchiveFile = v
	}
	if v := os.Getenv("INKLEAF_INDEX_FILE"); v != "" {
		cfg.Storage.IndexFile = v
	}
	if v := os.Getenv("INKLEAF_BACKUP_DIR"); v != "" {
		cfg.Backup.Dir = v
	}
	if v := os.Getenv("INKLEAF_BACKUP_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backup.IntervalSeconds = n
		}
	}
	if v := os.Getenv("INKLEAF_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ArchivePath returns the absolute path of the encrypted archive.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.ArchiveFile)
}

// IndexPath returns the absolute path of the encrypted search index.
func (c *Config) IndexPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.IndexFile)
}

// BackupDir returns the absolute path of the backup root directory.
func (c *Config) BackupDir() string {
	if filepath.IsAbs(c.Backup.Dir) {
		return c.Backup.Dir
	}
	return filepath.Join(c.Storage.DataDir, c.Backup.Dir)
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
