// Package store is the Code-Map Store and general persistence layer: the
// relational store with JSON columns and a dense-vector column described
// by spec section 6's PersistentStore collaborator. It replaces the
// teacher's ent-generated client with hand-written pgx/v5 queries, since
// the retrieved ent schema has no generated code to build on and
// generating it requires the Go toolchain.
package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced to callers as typed, never-retried failures
// (spec §7's Input-invalid taxonomy).
var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store wraps a pgx connection pool with the queries every other package
// needs. Operations are grouped into per-entity files but all share this
// one type so callers hold a single handle.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an already-open pool. Pool lifecycle (including migrations) is
// owned by pkg/dbconn.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for callers that need raw access
// (transactions spanning multiple entity files, LISTEN/NOTIFY, health checks).
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
