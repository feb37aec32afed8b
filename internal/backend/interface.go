// Package backend opens the storage.Store selected by DATA_BACKEND.
package backend

import (
	"haushaltsbuch/internal/storage"
)

// Type names a storage backend.
type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

// Types lists every supported backend.
func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, PostgresBackend}
}

// Config holds what Open needs for each backend.
type Config struct {
	Type Type

	// sqlite
	SQLiteDBPath string

	// postgres
	DatabaseURL string
}

// Result is an opened store. Close releases it.
type Result struct {
	Store storage.Store
	Type  Type
}

func (r *Result) Close() error {
	if r == nil || r.Store == nil {
		return nil
	}
	return r.Store.Close()
}
