// Package config loads lumen's YAML configuration: defaults first, then an
// optional config file, then command-line overrides applied by main.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// BackendName selects the rendering backend.
type BackendName string

const (
	BackendXRender BackendName = "xrender"
	BackendPixel   BackendName = "pixel"
	BackendDummy   BackendName = "dummy"
)

// Duration wraps time.Duration so YAML accepts "5s" style values.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Color is an RGBA color with channels in [0, 1].
type Color struct {
	R float64 `yaml:"r"`
	G float64 `yaml:"g"`
	B float64 `yaml:"b"`
	A float64 `yaml:"a"`
}

// Config is the effective daemon configuration.
type Config struct {
	// Backend picks the renderer.
	Backend BackendName `yaml:"backend"`

	// UseDamage enables partial repaints from the damage history. Off, every
	// frame repaints the whole screen.
	UseDamage bool `yaml:"use_damage"`

	// ResetGrace is how long to wait after a device reset before rebuilding
	// the session. A heuristic, not a guarantee; some drivers need longer.
	ResetGrace Duration `yaml:"reset_grace"`

	// DPMSPoll is the interval between display power state checks. Zero
	// disables polling.
	DPMSPoll Duration `yaml:"dpms_poll"`

	// Background is painted where no window and no wallpaper covers.
	Background Color `yaml:"background"`

	// WallpaperFromRoot binds the root background pixmap set by wallpaper
	// tools as the backdrop.
	WallpaperFromRoot bool `yaml:"wallpaper_from_root"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Default returns the configuration used when no file overrides anything.
func Default() *Config {
	return &Config{
		Backend:           BackendXRender,
		UseDamage:         true,
		ResetGrace:        Duration(5 * time.Second),
		DPMSPoll:          Duration(time.Second),
		Background:        Color{R: 0, G: 0, B: 0, A: 1},
		WallpaperFromRoot: true,
		LogLevel:          "info",
	}
}

// DefaultConfigPath returns the standard config file location.
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "lumen", "config.yaml"), nil
}

// Load reads the configuration from the standard location. A missing file is
// not an error; the defaults apply.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from path on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendXRender, BackendPixel, BackendDummy:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.ResetGrace < 0 {
		return fmt.Errorf("reset_grace must not be negative, got %s", c.ResetGrace.Std())
	}
	if c.DPMSPoll < 0 {
		return fmt.Errorf("dpms_poll must not be negative, got %s", c.DPMSPoll.Std())
	}
	for name, v := range map[string]float64{
		"r": c.Background.R, "g": c.Background.G, "b": c.Background.B, "a": c.Background.A,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("background.%s must be within [0, 1], got %v", name, v)
		}
	}
	return nil
}
