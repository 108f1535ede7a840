// Package config provides configuration loading and structs for SoundSift.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/soundsift/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Audio     AudioConfig     `yaml:"audio"`
	Index     IndexConfig     `yaml:"index"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the metadata database, the vector file and the side indices.
type StorageConfig struct {
	DatabasePath     string `yaml:"database_path"`
	DatabaseDriver   string `yaml:"database_driver"` // "sqlite3" (cgo) or "sqlite" (pure Go)
	VectorPath       string `yaml:"vector_path"`
	TextIndexPath    string `yaml:"text_index_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig holds embedding model settings.
type EmbeddingConfig struct {
	ModelVersion   string `yaml:"model_version"`
	Dimensions     int    `yaml:"dimensions"`
	TextModelPath  string `yaml:"text_model_path"`
	AudioModelPath string `yaml:"audio_model_path"`
	MaxTokens      int    `yaml:"max_tokens"`
	CacheSize      int    `yaml:"cache_size"`
}

// AudioConfig holds decoding settings shared by the indexer and the audio model.
type AudioConfig struct {
	SampleRate int      `yaml:"sample_rate"`
	MaxSeconds float64  `yaml:"max_seconds"`
	Extensions []string `yaml:"extensions"`
}

// MaxSamples is the number of mono samples fed to the audio model.
func (a *AudioConfig) MaxSamples() int {
	return int(float64(a.SampleRate) * a.MaxSeconds)
}

// IndexConfig holds discovery and writer-lock settings.
type IndexConfig struct {
	Includes    []string      `yaml:"includes"`
	Excludes    []string      `yaml:"excludes"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

// SearchConfig holds query settings.
type SearchConfig struct {
	DefaultLimit  int     `yaml:"default_limit"`
	MaxLimit      int     `yaml:"max_limit"` // 0 = unbounded
	TextWeight    float32 `yaml:"text_weight"`
	CacheSnapshot bool    `yaml:"cache_snapshot"`
	Loader        string  `yaml:"loader"` // "read" or "mmap"
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorPath = expandPath(cfg.Storage.VectorPath, configDir)
	cfg.Storage.TextIndexPath = expandPath(cfg.Storage.TextIndexPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Embedding.TextModelPath = expandPath(cfg.Embedding.TextModelPath, configDir)
	cfg.Embedding.AudioModelPath = expandPath(cfg.Embedding.AudioModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

// StatusConfig returns the settings reported by the status endpoint.
func (c *Config) StatusConfig() *models.StatusConfig {
	return &models.StatusConfig{
		DatabasePath:     c.Storage.DatabasePath,
		DatabaseDriver:   c.Storage.DatabaseDriver,
		VectorPath:       c.Storage.VectorPath,
		TextIndexPath:    c.Storage.TextIndexPath,
		KeywordIndexPath: c.Storage.KeywordIndexPath,
		SampleRate:       c.Audio.SampleRate,
		MaxSeconds:       c.Audio.MaxSeconds,
		TextWeight:       c.Search.TextWeight,
		CacheSnapshot:    c.Search.CacheSnapshot,
	}
}
