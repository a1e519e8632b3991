package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/meshkit/meshview/internal/model"
)

// Renderer is the plug point for the actual windowing/GL pipeline, which is
// out of scope for this repo. Compose replaces a subwindow's content; Snapshot
// captures the current composition to a file on the viewer's filesystem.
type Renderer interface {
	Compose(ctx context.Context, coord model.SubwindowCoord, meshes []model.Mesh) error
	Snapshot(ctx context.Context, path string) error
}

// HeadlessRenderer tracks composition state without opening a window. Its
// snapshots are scene manifests rather than pixels; image encoding belongs to
// a real renderer implementation.
type HeadlessRenderer struct {
	title string
	grid  model.GridShape

	mu       sync.Mutex
	composed map[model.SubwindowCoord][]manifestMesh
}

type manifestMesh struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
}

type manifestSubwindow struct {
	IX     int            `json:"ix"`
	IY     int            `json:"iy"`
	Meshes []manifestMesh `json:"meshes"`
}

type manifest struct {
	TakenAt    time.Time           `json:"taken_at"`
	Title      string              `json:"title"`
	GridCols   int                 `json:"grid_cols"`
	GridRows   int                 `json:"grid_rows"`
	Subwindows []manifestSubwindow `json:"subwindows"`
}

func NewHeadlessRenderer(title string, grid model.GridShape) *HeadlessRenderer {
	return &HeadlessRenderer{
		title:    title,
		grid:     grid,
		composed: map[model.SubwindowCoord][]manifestMesh{},
	}
}

func (r *HeadlessRenderer) Compose(_ context.Context, coord model.SubwindowCoord, meshes []model.Mesh) error {
	entries := make([]manifestMesh, 0, len(meshes))
	for _, m := range meshes {
		entries = append(entries, manifestMesh{
			Name:      m.Name,
			Format:    string(m.Format),
			SizeBytes: int64(len(m.Payload)),
		})
	}
	r.mu.Lock()
	r.composed[coord] = entries
	r.mu.Unlock()
	return nil
}

func (r *HeadlessRenderer) Snapshot(_ context.Context, path string) error {
	r.mu.Lock()
	subs := make([]manifestSubwindow, 0, len(r.composed))
	for coord, meshes := range r.composed {
		subs = append(subs, manifestSubwindow{IX: coord.IX, IY: coord.IY, Meshes: meshes})
	}
	r.mu.Unlock()

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].IY != subs[j].IY {
			return subs[i].IY < subs[j].IY
		}
		return subs[i].IX < subs[j].IX
	})

	data, err := json.MarshalIndent(manifest{
		TakenAt:    time.Now().UTC(),
		Title:      r.title,
		GridCols:   r.grid.Cols,
		GridRows:   r.grid.Rows,
		Subwindows: subs,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}
