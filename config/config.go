// Package config loads teamctl configuration.
//
// Built-in defaults (default.toml, embedded) are overlaid with the
// configuration file when it exists. Keys absent from the file keep
// their default values. A missing file is not an error; an unreadable
// or malformed one is.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/frobware/go-team/logging"
)

//go:embed default.toml
var defaultTOML string

// DefaultPath is read when no path is given.
const DefaultPath = "/etc/teamctl/teamctl.toml"

// Config is the teamctl configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Team    TeamConfig    `toml:"team"`
	Monitor MonitorConfig `toml:"monitor"`
}

// LoggingConfig controls logging.
type LoggingConfig struct {
	// Level is a log spec such as "info" or "warn,codec=debug".
	Level  string `toml:"level"`
	Format string `toml:"format"`
	// Components sets per-component levels when Level is empty.
	Components map[string]string `toml:"components"`
}

// Spec returns the log spec described by c.
func (c LoggingConfig) Spec() string {
	if c.Level != "" || len(c.Components) == 0 {
		return c.Level
	}
	parts := []string{logging.LevelInfo.String()}
	for _, name := range slices.Sorted(maps.Keys(c.Components)) {
		parts = append(parts, name+"="+c.Components[name])
	}
	return strings.Join(parts, ",")
}

// TeamConfig selects the team device.
type TeamConfig struct {
	// Device is an interface name or a decimal ifindex.
	Device string `toml:"device"`
	NetNS  string `toml:"netns"`
	// LockFile serialises option changes across teamctl processes.
	LockFile string `toml:"lock_file"`
}

// MonitorConfig configures teamctl monitor.
type MonitorConfig struct {
	MetricsAddress string `toml:"metrics_address"`
	Record         string `toml:"record"`
}

// Default returns the embedded defaults.
func Default() Config {
	var cfg Config
	if _, err := toml.Decode(defaultTOML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults: %v", err))
	}
	return cfg
}

// Load overlays the file at path (DefaultPath when empty) onto the
// defaults and validates the result.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("config %s: unknown key %s", path, undecoded[0])
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := logging.ParseSpec(c.Logging.Spec()); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if _, err := logging.ParseFormat(c.Logging.Format); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Team.LockFile == "" {
		return errors.New("team.lock_file must not be empty")
	}
	if addr := c.Monitor.MetricsAddress; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("monitor.metrics_address: %w", err)
		}
	}
	return nil
}
