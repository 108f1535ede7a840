package config

import "time"

// DefaultExtensions are the audio formats the indexer discovers.
var DefaultExtensions = []string{".wav", ".aif", ".aiff", ".flac", ".mp3"}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/soundsift/data/soundsift.db"
	}
	if cfg.Storage.DatabaseDriver == "" {
		cfg.Storage.DatabaseDriver = "sqlite3"
	}
	if cfg.Storage.VectorPath == "" {
		cfg.Storage.VectorPath = "/usr/local/var/soundsift/data/embeddings.bin"
	}
	if cfg.Storage.TextIndexPath == "" {
		cfg.Storage.TextIndexPath = "/usr/local/var/soundsift/data/text.bolt"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/soundsift/data/indices/bleve"
	}
	if cfg.Embedding.ModelVersion == "" {
		cfg.Embedding.ModelVersion = "default"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.TextModelPath == "" {
		cfg.Embedding.TextModelPath = "/usr/local/var/soundsift/data/models/clap-text.onnx"
	}
	if cfg.Embedding.AudioModelPath == "" {
		cfg.Embedding.AudioModelPath = "/usr/local/var/soundsift/data/models/clap-audio.onnx"
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 48000
	}
	if cfg.Audio.MaxSeconds == 0 {
		cfg.Audio.MaxSeconds = 10
	}
	if cfg.Audio.Extensions == nil {
		cfg.Audio.Extensions = append([]string(nil), DefaultExtensions...)
	}
	if cfg.Index.LockTimeout == 0 {
		cfg.Index.LockTimeout = 2 * time.Second
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.Loader == "" {
		cfg.Search.Loader = "read"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
