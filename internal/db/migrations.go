package db

import (
	"context"
	"database/sql"
	"fmt"
)

type Migration struct {
	Version int
	UpSQL   string
	DownSQL string
}

var migrations = []Migration{
	{
		Version: 1,
		UpSQL: `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scenes (
	ix INTEGER NOT NULL CHECK(ix >= 0),
	iy INTEGER NOT NULL CHECK(iy >= 0),
	set_at TEXT NOT NULL,
	PRIMARY KEY(ix, iy)
);

CREATE TABLE IF NOT EXISTS scene_meshes (
	ix INTEGER NOT NULL,
	iy INTEGER NOT NULL,
	position INTEGER NOT NULL CHECK(position >= 0),
	mesh_id TEXT NOT NULL,
	name TEXT NOT NULL,
	format TEXT NOT NULL CHECK(format IN ('obj','ply','stl','unknown')),
	payload BLOB NOT NULL,
	PRIMARY KEY(ix, iy, position),
	FOREIGN KEY(ix, iy) REFERENCES scenes(ix, iy) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS snapshots (
	snapshot_id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	taken_at TEXT NOT NULL
);
`,
		DownSQL: `
DROP TABLE IF EXISTS snapshots;
DROP TABLE IF EXISTS scene_meshes;
DROP TABLE IF EXISTS scenes;
DROP TABLE IF EXISTS schema_migrations;
`,
	},
}

func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations(version INTEGER PRIMARY KEY, applied_at TEXT NOT NULL)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.Version).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES (?, datetime('now'))`, m.Version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}
	return nil
}
