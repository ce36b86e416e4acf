package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the fieldgate store (SQLite).
var Migrations = migrate.NewGroup("fieldgate")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_fields",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fieldgate_fields (
    id              TEXT PRIMARY KEY,
    module_code     TEXT NOT NULL,
    code            TEXT NOT NULL,
    label           TEXT NOT NULL,
    group_code      TEXT NOT NULL DEFAULT '',
    group_label     TEXT NOT NULL DEFAULT '',
    order_index     INTEGER NOT NULL DEFAULT 0,
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(module_code, code)
);

CREATE INDEX IF NOT EXISTS idx_fieldgate_fields_module ON fieldgate_fields (module_code, group_label, order_index);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fieldgate_fields`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_roles",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fieldgate_roles (
    id              TEXT PRIMARY KEY,
    code            TEXT NOT NULL UNIQUE,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    active          INTEGER NOT NULL DEFAULT 1,
    metadata        TEXT NOT NULL DEFAULT '{}',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_fieldgate_roles_active ON fieldgate_roles (active);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fieldgate_roles`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permissions",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fieldgate_permissions (
    id              TEXT PRIMARY KEY,
    module_code     TEXT NOT NULL,
    field_code      TEXT NOT NULL,
    role_code       TEXT NOT NULL,
    level           TEXT NOT NULL CHECK (level IN ('N', 'R', 'W', 'A')),
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at      TEXT NOT NULL DEFAULT (datetime('now')),

    UNIQUE(module_code, field_code, role_code)
);

CREATE INDEX IF NOT EXISTS idx_fieldgate_permissions_role ON fieldgate_permissions (module_code, role_code);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fieldgate_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_permission_changes",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fieldgate_permission_changes (
    id              TEXT PRIMARY KEY,
    batch_id        TEXT NOT NULL,
    module_code     TEXT NOT NULL,
    field_code      TEXT NOT NULL,
    role_code       TEXT NOT NULL,
    old_level       TEXT NOT NULL DEFAULT '',
    new_level       TEXT NOT NULL,
    actor           TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_fieldgate_changes_batch ON fieldgate_permission_changes (batch_id);
CREATE INDEX IF NOT EXISTS idx_fieldgate_changes_triple ON fieldgate_permission_changes (module_code, field_code, role_code);
CREATE INDEX IF NOT EXISTS idx_fieldgate_changes_created ON fieldgate_permission_changes (created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS fieldgate_permission_changes`)
				return err
			},
		},
	)
}
