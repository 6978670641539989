package kleio

import (
	"errors"
	"fmt"
)

// Document model errors.
var (
	ErrSchemaViolation = errors.New("schema violation")
	ErrUnknownShape    = errors.New("unknown shape")
	ErrDuplicateShape  = errors.New("shape already registered")
	ErrSyntax          = errors.New("kleio syntax error")
)

// SchemaError describes a group that does not fit its shape. It unwraps to
// ErrSchemaViolation.
type SchemaError struct {
	Shape  string
	Slot   string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Slot == "" {
		return fmt.Sprintf("%s: %s", e.Shape, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Shape, e.Slot, e.Reason)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}

func schemaErr(shape, slot, format string, args ...any) error {
	return &SchemaError{Shape: shape, Slot: slot, Reason: fmt.Sprintf(format, args...)}
}
