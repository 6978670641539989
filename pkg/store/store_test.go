package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/timelink/pkg/types"
)

func TestNewBackend(t *testing.T) {
	s := NewBackend()
	require.NotNil(t, s)

	_, err := s.GetEntity(context.Background(), "x")
	assert.ErrorIs(t, err, types.ErrNotAttached)

	require.NoError(t, s.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	defer s.Detach()

	person, err := s.EnsureMapping(context.Background(), "person")
	require.NoError(t, err)
	assert.Equal(t, "persons", person.Table.Name)

	byShape, ok := s.TypeForShape("person")
	require.True(t, ok)
	assert.Same(t, person, byShape)
	byTable, ok := s.TypeForTable("persons")
	require.True(t, ok)
	assert.Same(t, person, byTable)

	_, ok = s.TypeForShape("nobody")
	assert.False(t, ok)
}
