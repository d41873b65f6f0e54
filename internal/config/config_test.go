package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	def := Default()
	if cfg.Backend != def.Backend || cfg.ResetGrace != def.ResetGrace || !cfg.UseDamage {
		t.Errorf("missing file did not yield defaults: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
backend: pixel
use_damage: false
reset_grace: 10s
background:
  r: 0.5
  g: 0.5
  b: 0.5
  a: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Backend != BackendPixel {
		t.Errorf("backend = %q, want pixel", cfg.Backend)
	}
	if cfg.UseDamage {
		t.Error("use_damage should be overridden to false")
	}
	if cfg.ResetGrace.Std() != 10*time.Second {
		t.Errorf("reset_grace = %v, want 10s", cfg.ResetGrace)
	}
	if cfg.Background.R != 0.5 {
		t.Errorf("background.r = %v, want 0.5", cfg.Background.R)
	}
	// Keys the file does not mention keep their defaults.
	if cfg.DPMSPoll.Std() != time.Second {
		t.Errorf("dpms_poll = %v, want 1s", cfg.DPMSPoll)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"bad backend", func(c *Config) { c.Backend = "opengl" }, true},
		{"negative grace", func(c *Config) { c.ResetGrace = Duration(-time.Second) }, true},
		{"background out of range", func(c *Config) { c.Background.R = 1.5 }, true},
		{"dummy backend", func(c *Config) { c.Backend = BackendDummy }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
