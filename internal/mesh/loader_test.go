package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/meshkit/meshview/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadReadsPayloadAndAssignsID(t *testing.T) {
	path := writeFile(t, "cube.obj", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")
	m, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Name != "cube.obj" {
		t.Fatalf("expected name cube.obj, got %s", m.Name)
	}
	if m.Format != model.FormatOBJ {
		t.Fatalf("expected obj format, got %s", m.Format)
	}
	if m.MeshID == "" {
		t.Fatalf("expected a mesh id")
	}
	if !strings.HasPrefix(string(m.Payload), "v 0 0 0") {
		t.Fatalf("payload not preserved: %q", m.Payload)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.obj")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.obj", "")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for empty file")
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		path string
		data string
		want model.MeshFormat
	}{
		{"a.obj", "v 0 0 0", model.FormatOBJ},
		{"a.ply", "ply\nformat ascii 1.0", model.FormatPLY},
		{"a.stl", "solid cube", model.FormatSTL},
		{"a.mesh", "ply\nformat binary_little_endian 1.0", model.FormatPLY},
		{"a.mesh", "solid cube", model.FormatSTL},
		{"a.mesh", "something else", model.FormatUnknown},
	}
	for _, c := range cases {
		if got := DetectFormat(c.path, []byte(c.data)); got != c.want {
			t.Fatalf("DetectFormat(%s, %q): expected %s, got %s", c.path, c.data, c.want, got)
		}
	}
}

func TestLoadAllStopsAtFirstFailure(t *testing.T) {
	good := writeFile(t, "good.obj", "v 0 0 0\n")
	bad := filepath.Join(t.TempDir(), "missing.obj")
	if _, err := LoadAll([]string{good, bad}); err == nil {
		t.Fatalf("expected error for missing second file")
	}
	meshes, err := LoadAll([]string{good})
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
}
