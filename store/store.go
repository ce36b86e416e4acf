// Package store defines the aggregate persistence interface. Each entity
// package (field, role, permission, changelog) defines its own store
// interface and the composite Store embeds them all.
// Backends: Memory, Postgres, SQLite and MongoDB.
package store

import (
	"context"
	"errors"

	"github.com/xraph/fieldgate/changelog"
	"github.com/xraph/fieldgate/field"
	"github.com/xraph/fieldgate/permission"
	"github.com/xraph/fieldgate/role"
)

var (
	// ErrNotFound is wrapped by every backend when a lookup matches nothing.
	ErrNotFound = errors.New("fieldgate: not found")

	// ErrDuplicate is wrapped by every backend when a unique key is taken.
	ErrDuplicate = errors.New("fieldgate: already exists")
)

// Store is the aggregate persistence interface.
// A single backend implements every entity store.
type Store interface {
	field.Store
	role.Store
	permission.Store
	changelog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
