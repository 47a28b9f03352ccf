package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5s" or "48h" decode.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents a tailview.yaml file shared by the viewer and the
// daemon.
type Config struct {
	Version int          `yaml:"version"`
	Daemon  DaemonConfig `yaml:"daemon"`
	Viewer  ViewerConfig `yaml:"viewer"`
}

// DaemonConfig configures tailviewd: where it listens, what it ingests, and
// how long it keeps entries.
type DaemonConfig struct {
	Listen    string      `yaml:"listen"`
	DBPath    string      `yaml:"db_path"`
	LockPath  string      `yaml:"lock_path"`
	Retention Duration    `yaml:"retention"`
	RateLimit float64     `yaml:"rate_limit"` // queries per second, 0 disables
	LogLevel  string      `yaml:"log_level"`
	Sources   []SourceRef `yaml:"sources"`
}

// SourceRef declares one log source and the service tag stamped onto its
// entries.
type SourceRef struct {
	Kind    string `yaml:"kind"` // file | journald
	Service string `yaml:"service"`
	Path    string `yaml:"path,omitempty"` // file
	Unit    string `yaml:"unit,omitempty"` // journald
}

// ViewerConfig configures the TUI and the one-shot query command.
type ViewerConfig struct {
	Backend      string   `yaml:"backend"`
	PollInterval Duration `yaml:"poll_interval"`
	PageLimit    int      `yaml:"page_limit"`
	Window       Duration `yaml:"window"`
	Services     []string `yaml:"services"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Version: 1,
		Daemon: DaemonConfig{
			Listen:    "127.0.0.1:9581",
			DBPath:    "tailview.db",
			LockPath:  "tailview.lock",
			Retention: Duration(7 * 24 * time.Hour),
			RateLimit: 20,
			LogLevel:  "info",
		},
		Viewer: ViewerConfig{
			Backend:      "127.0.0.1:9581",
			PollInterval: Duration(5 * time.Second),
			PageLimit:    500,
			Window:       Duration(time.Hour),
			Services:     []string{"tl-server", "tl-base", "tl-ai"},
		},
	}
}

// Parse decodes YAML bytes into a Config, applying defaults for anything the
// file leaves unset.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// LoadOrDefault loads path when it exists and falls back to defaults
// otherwise. An unreadable or malformed existing file is still an error.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
