package types

import (
	"errors"
	"fmt"
)

// Store lifecycle errors.
var (
	ErrNotAttached     = errors.New("store is not attached")
	ErrAlreadyAttached = errors.New("store is already attached")
)

// Lookup and mapping errors.
var (
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidID         = errors.New("invalid entity ID")
	ErrClassNotFound     = errors.New("class not found")
	ErrMappingResolution = errors.New("mapping resolution failed")
	ErrDDL               = errors.New("schema change failed")
)

// ImportError names the record whose import failed. Records committed
// before the failure stay stored.
type ImportError struct {
	ID    string
	Group string
	Err   error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s %s: %v", e.Group, e.ID, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
