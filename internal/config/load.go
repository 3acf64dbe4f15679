package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the working and config
// directories.
const FileName = "animviewer.yaml"

// ErrInvalid is returned for settings no viewer can run with.
var ErrInvalid = errors.New("invalid config")

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}
	if configPath != "" {
		if err := LoadFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg, flag.Args())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings outside their usable range.
func (c *Config) Validate() error {
	switch {
	case c.Viewer.Width <= 0 || c.Viewer.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Viewer.Width, c.Viewer.Height)
	case c.Animation.RelativeOffsetDivisor == 0:
		return fmt.Errorf("%w: relative_offset_divisor must not be 0", ErrInvalid)
	case c.MotionCapture.Scale <= 0:
		return fmt.Errorf("%w: motion capture scale %v", ErrInvalid, c.MotionCapture.Scale)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		filepath.Join(".", FileName),
		filepath.Join(ConfigDir(), FileName),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "AnimViewer")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "AnimViewer")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "animviewer")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "animviewer")
	}
}

// LoadFile merges a YAML file into cfg.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
