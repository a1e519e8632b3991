package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
window {
  title  = "lab viewer"
  width  = 1920
}

grid {
  cols = 2
  rows = 2
}

server {
  host = "0.0.0.0"
  port = 9000
}

timeouts {
  render_drain = "250ms"
}
`)
	cfg, err := LoadFile(path, DefaultConfig(), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Title != "lab viewer" || cfg.WindowWidth != 1920 {
		t.Fatalf("window block not applied: %+v", cfg)
	}
	if cfg.WindowHeight != DefaultConfig().WindowHeight {
		t.Fatalf("unset height should keep default, got %d", cfg.WindowHeight)
	}
	if cfg.GridCols != 2 || cfg.GridRows != 2 {
		t.Fatalf("grid block not applied: %+v", cfg)
	}
	if cfg.Host != "0.0.0.0" || cfg.Port != 9000 {
		t.Fatalf("server block not applied: %+v", cfg)
	}
	if cfg.RenderDrain != 250*time.Millisecond {
		t.Fatalf("expected 250ms drain, got %s", cfg.RenderDrain)
	}
	if cfg.ConnectTimeout != DefaultConfig().ConnectTimeout {
		t.Fatalf("unset connect timeout should keep default")
	}
}

func TestLoadFileHomeVariable(t *testing.T) {
	path := writeConfig(t, `
server {
  db_path = "${home}/viewer/scenes.db"
}
`)
	cfg, err := LoadFile(path, DefaultConfig(), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if cfg.DBPath != filepath.Join(home, "viewer", "scenes.db") {
		t.Fatalf("home variable not expanded: %s", cfg.DBPath)
	}
}

func TestLoadFileBadDuration(t *testing.T) {
	path := writeConfig(t, `
timeouts {
  render_drain = "not-a-duration"
}
`)
	_, err := LoadFile(path, DefaultConfig(), true)
	if err == nil || !strings.Contains(err.Error(), "render_drain") {
		t.Fatalf("expected render_drain error, got %v", err)
	}
}

func TestLoadFileMalformedHCL(t *testing.T) {
	path := writeConfig(t, `window {`)
	if _, err := LoadFile(path, DefaultConfig(), true); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadFileMissingOptional(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.hcl")
	cfg, err := LoadFile(missing, DefaultConfig(), false)
	if err != nil {
		t.Fatalf("missing optional file should not error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults back, got %+v", cfg)
	}
}

func TestLoadFileMissingRequired(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.hcl")
	if _, err := LoadFile(missing, DefaultConfig(), true); err == nil {
		t.Fatalf("explicitly named missing file should error")
	}
}
