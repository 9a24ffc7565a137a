package config

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Filename is the well-known config file name inside the per-user temp directory.
const Filename = "ApplicationConfiguration.xml"

func DefaultPath() string {
	return filepath.Join(os.TempDir(), Filename)
}

// Store owns the current configuration and its load/save lifecycle.
type Store struct {
	mu      sync.RWMutex
	path    string
	current AppConfig
	logger  *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	if logger == nil {
		logger = slog.Default().With("component", "config")
	}

	return &Store{
		path:    path,
		current: Default(),
		logger:  logger,
	}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Current() AppConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current
}

func (s *Store) SetCurrent(cfg AppConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = cfg
}

// LoadCurrent reads and validates the file at path (or the store path when empty).
// On any failure the current config is reset to Default and a *LoadError is returned.
func (s *Store) LoadCurrent(path string) error {
	if path == "" {
		path = s.path
	}

	cfg, err := Load(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.current = Default()
		s.logger.Warn("config load failed, using defaults", "path", path, "error", err)

		return &LoadError{Path: path, Err: err}
	}
	s.current = cfg
	s.logger.Debug("config loaded", "path", path)

	return nil
}

// SaveCurrent validates and writes the current config. It reports failure by return value only.
func (s *Store) SaveCurrent(path string) bool {
	if path == "" {
		path = s.path
	}

	cfg := s.Current()
	if err := Save(path, &cfg); err != nil {
		s.logger.Error("config save failed", "path", path, "error", err)

		return false
	}
	s.SetCurrent(cfg)
	s.logger.Debug("config saved", "path", path)

	return true
}

func Load(path string) (AppConfig, error) {
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path is resolved by app runtime and points to the user temp dir.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Decode(raw)
	if err != nil {
		return AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// Decode parses an XML document on top of Default, so missing elements keep default values.
func Decode(raw []byte) (AppConfig, error) {
	cfg := Default()
	if err := xml.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config xml: %w", err)
	}
	cfg.FillMissingDefaults()
	// Invalid timeouts are reported by Validate.
	_ = cfg.Notify.syncTimeout()

	return cfg, nil
}

func Encode(cfg AppConfig) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("flush config xml: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func Save(path string, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw, err := Encode(*cfg)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp config: %w", err)
	}

	return nil
}
