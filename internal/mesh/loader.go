// Package mesh loads mesh files at the payload level: format detection, raw
// bytes, stable ids. Geometry parsing belongs to the renderer plug-in, not to
// this package.
package mesh

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/meshkit/meshview/internal/model"
)

func Load(path string) (model.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Mesh{}, fmt.Errorf("load mesh %s: %w", path, err)
	}
	if len(data) == 0 {
		return model.Mesh{}, fmt.Errorf("load mesh %s: file is empty", path)
	}
	return model.Mesh{
		MeshID:  uuid.NewString(),
		Name:    filepath.Base(path),
		Format:  DetectFormat(path, data),
		Payload: data,
	}, nil
}

func LoadAll(paths []string) ([]model.Mesh, error) {
	meshes := make([]model.Mesh, 0, len(paths))
	for _, p := range paths {
		m, err := Load(p)
		if err != nil {
			return nil, err
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

// DetectFormat trusts the file extension first and falls back to magic bytes,
// which catches binary PLY/STL files shipped with a wrong or missing suffix.
func DetectFormat(path string, data []byte) model.MeshFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return model.FormatOBJ
	case ".ply":
		return model.FormatPLY
	case ".stl":
		return model.FormatSTL
	}
	if bytes.HasPrefix(data, []byte("ply")) {
		return model.FormatPLY
	}
	if bytes.HasPrefix(data, []byte("solid ")) || bytes.HasPrefix(data, []byte("solid\n")) {
		return model.FormatSTL
	}
	return model.FormatUnknown
}
