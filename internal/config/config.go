// Package config reads the TOML settings files: the global config.toml
// shared by every profile and each profile's profile.toml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is ~/.inboxsync/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	// DaemonPath is the inboxd binary inboxtui launches when no daemon
	// answers. Empty means next to inboxtui, then $PATH.
	DaemonPath string `toml:"daemon_path,omitempty"`
}

// Load reads the global config. A missing file yields an empty config.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the global config with owner-only permissions.
func Save(path string, cfg *Config) error {
	return writeTOML(path, cfg)
}

// writeTOML encodes v to a temp file beside path and renames it into place,
// so readers never see a half-written file.
func writeTOML(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := toml.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
