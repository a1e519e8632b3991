// Package db persists viewer scene state in sqlite so a restarted viewer
// daemon comes back showing what it showed before.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meshkit/meshview/internal/model"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("chmod db path: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

// ReplaceScene swaps the persisted content of one subwindow atomically.
func (s *Store) ReplaceScene(ctx context.Context, scene model.Scene) error {
	if scene.SetAt.IsZero() {
		scene.SetAt = time.Now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace scene: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM scenes WHERE ix = ? AND iy = ?`, scene.Subwindow.IX, scene.Subwindow.IY); err != nil {
		return fmt.Errorf("clear scene %s: %w", scene.Subwindow, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO scenes(ix, iy, set_at) VALUES (?, ?, ?)`,
		scene.Subwindow.IX, scene.Subwindow.IY, ts(scene.SetAt)); err != nil {
		return fmt.Errorf("insert scene %s: %w", scene.Subwindow, err)
	}
	for i, m := range scene.Meshes {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO scene_meshes(ix, iy, position, mesh_id, name, format, payload)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, scene.Subwindow.IX, scene.Subwindow.IY, i, m.MeshID, m.Name, string(m.Format), m.Payload); err != nil {
			return fmt.Errorf("insert scene mesh %s[%d]: %w", scene.Subwindow, i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace scene: %w", err)
	}
	return nil
}

// GetScene returns the persisted scene of one subwindow, ErrNotFound when that
// subwindow never had content set.
func (s *Store) GetScene(ctx context.Context, coord model.SubwindowCoord) (model.Scene, error) {
	var setAt string
	err := s.db.QueryRowContext(ctx, `SELECT set_at FROM scenes WHERE ix = ? AND iy = ?`, coord.IX, coord.IY).Scan(&setAt)
	if err == sql.ErrNoRows {
		return model.Scene{}, ErrNotFound
	}
	if err != nil {
		return model.Scene{}, fmt.Errorf("get scene %s: %w", coord, err)
	}
	scene := model.Scene{Subwindow: coord}
	if scene.SetAt, err = parseTS(setAt); err != nil {
		return model.Scene{}, fmt.Errorf("get scene %s: %w", coord, err)
	}
	if scene.Meshes, err = s.sceneMeshes(ctx, coord); err != nil {
		return model.Scene{}, err
	}
	return scene, nil
}

// ListScenes returns every persisted scene in row-major order.
func (s *Store) ListScenes(ctx context.Context) ([]model.Scene, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ix, iy, set_at FROM scenes ORDER BY iy, ix`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var scenes []model.Scene
	for rows.Next() {
		var scene model.Scene
		var setAt string
		if err := rows.Scan(&scene.Subwindow.IX, &scene.Subwindow.IY, &setAt); err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		if scene.SetAt, err = parseTS(setAt); err != nil {
			return nil, fmt.Errorf("scan scene row: %w", err)
		}
		scenes = append(scenes, scene)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	for i := range scenes {
		if scenes[i].Meshes, err = s.sceneMeshes(ctx, scenes[i].Subwindow); err != nil {
			return nil, err
		}
	}
	return scenes, nil
}

func (s *Store) sceneMeshes(ctx context.Context, coord model.SubwindowCoord) ([]model.Mesh, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT mesh_id, name, format, payload FROM scene_meshes
WHERE ix = ? AND iy = ? ORDER BY position
`, coord.IX, coord.IY)
	if err != nil {
		return nil, fmt.Errorf("list scene meshes %s: %w", coord, err)
	}
	defer rows.Close() //nolint:errcheck

	var meshes []model.Mesh
	for rows.Next() {
		var m model.Mesh
		var format string
		if err := rows.Scan(&m.MeshID, &m.Name, &format, &m.Payload); err != nil {
			return nil, fmt.Errorf("scan scene mesh row: %w", err)
		}
		m.Format = model.MeshFormat(format)
		meshes = append(meshes, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scene meshes %s: %w", coord, err)
	}
	return meshes, nil
}

func (s *Store) InsertSnapshot(ctx context.Context, snap model.Snapshot) error {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO snapshots(snapshot_id, path, taken_at) VALUES (?, ?, ?)`,
		snap.SnapshotID, snap.Path, ts(snap.TakenAt))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *Store) ListSnapshots(ctx context.Context) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot_id, path, taken_at FROM snapshots ORDER BY taken_at`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var snaps []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		var takenAt string
		if err := rows.Scan(&snap.SnapshotID, &snap.Path, &takenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if snap.TakenAt, err = parseTS(takenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return snaps, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}
