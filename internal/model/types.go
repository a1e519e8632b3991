package model

import (
	"fmt"
	"time"
)

// MeshFormat tags the on-disk encoding of a mesh payload. The viewer treats
// payloads as opaque blobs; the tag exists so a renderer plug-in can pick a
// decoder without re-sniffing the bytes.
type MeshFormat string

const (
	FormatOBJ     MeshFormat = "obj"
	FormatPLY     MeshFormat = "ply"
	FormatSTL     MeshFormat = "stl"
	FormatUnknown MeshFormat = "unknown"
)

type Mesh struct {
	MeshID  string
	Name    string
	Format  MeshFormat
	Payload []byte
}

// GridShape is the subwindow layout of a viewer window, Cols across by Rows down.
type GridShape struct {
	Cols int
	Rows int
}

func (g GridShape) Count() int {
	if g.Cols <= 0 || g.Rows <= 0 {
		return 0
	}
	return g.Cols * g.Rows
}

func (g GridShape) Contains(ix, iy int) bool {
	return ix >= 0 && ix < g.Cols && iy >= 0 && iy < g.Rows
}

func (g GridShape) String() string {
	return fmt.Sprintf("%dx%d", g.Cols, g.Rows)
}

// SubwindowCoord addresses one pane of the grid, zero-based, (0,0) top-left.
type SubwindowCoord struct {
	IX int
	IY int
}

// At returns the coordinate of the i-th subwindow in row-major order: all
// subwindows of row 0 first, then row 1, and so on.
func (g GridShape) At(i int) SubwindowCoord {
	return SubwindowCoord{IX: i % g.Cols, IY: i / g.Cols}
}

func (c SubwindowCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.IX, c.IY)
}

// Scene is the static content of one subwindow. Setting a scene replaces
// whatever the subwindow showed before.
type Scene struct {
	Subwindow SubwindowCoord
	Meshes    []Mesh
	SetAt     time.Time
}

type Snapshot struct {
	SnapshotID string
	Path       string
	TakenAt    time.Time
}
