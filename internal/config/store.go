package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/mikeyg42/rlight/internal/sensitivity"
)

// ErrCorrupt is returned when the config file exists but cannot be parsed.
var ErrCorrupt = errors.New("couldn't load a config")

const (
	appName        = "rlight"
	configFileName = "config.json"
)

// Store loads and persists the configuration.
type Store interface {
	Load() (*Config, error)
	Save(cfg *Config) error
}

// FileStore keeps the configuration as a JSON document on disk.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// DefaultPath returns $XDG_CONFIG_HOME/rlight/config.json or the platform
// equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, appName, configFileName), nil
}

// NewFileStore returns a store for path. An empty path selects DefaultPath.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if logger == nil {
		logger = zap.L()
	}
	return &FileStore{path: filepath.Clean(path), logger: logger.Named("config")}, nil
}

// Path is the file backing the store.
func (s *FileStore) Path() string { return s.path }

// Load reads the config file. A missing file is created with defaults;
// fields omitted from the file keep their defaults.
func (s *FileStore) Load() (*Config, error) {
	cfg := NewDefaultConfig()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("No config found, writing defaults", zap.String("path", s.path))
		if err := s.Save(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w from %s: %v\nTIP: You might be able to fix it by deleting the existing config.",
			ErrCorrupt, s.path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg atomically through a temp file in the same directory.
func (s *FileStore) Save(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("couldn't save the config: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+configFileName+"-*")
	if err != nil {
		return fmt.Errorf("couldn't save the config: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("couldn't save the config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("couldn't save the config: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("couldn't save the config: %w", err)
	}

	s.logger.Debug("Config saved", zap.String("path", s.path))
	return nil
}

// ProfileWriter persists runtime coefficients by folding them into Config
// and saving it through Store.
type ProfileWriter struct {
	Store  Store
	Config *Config
}

// SaveProfile updates the sensitivity fields and saves the whole config.
func (w ProfileWriter) SaveProfile(p sensitivity.Profile) error {
	w.Config.ApplyProfile(p)
	return w.Store.Save(w.Config)
}
