// Package store provides the public constructor for timelink storage
// backends while keeping the implementation internal.
package store

import (
	"github.com/mesh-intelligence/timelink/internal/store"
	"github.com/mesh-intelligence/timelink/pkg/types"
)

// NewBackend creates a new backend instance. The database is chosen by the
// Config passed to Attach.
//
// Example:
//
//	backend := store.NewBackend()
//	err := backend.Attach(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".timelink-db",
//	})
//	defer backend.Detach()
func NewBackend() types.Store {
	return store.NewBackend()
}
