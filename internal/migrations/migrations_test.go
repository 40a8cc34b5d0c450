package migrations_test

import (
	"io"
	"testing"

	"todotree/internal/migrations"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource_Versions(t *testing.T) {
	src, err := migrations.Source()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
}

func TestSource_TasksSchema(t *testing.T) {
	src, err := migrations.Source()
	require.NoError(t, err)
	defer src.Close()

	r, _, err := src.ReadUp(2)
	require.NoError(t, err)
	defer r.Close()

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	sql := string(body)

	// Удаление родителя каскадно удаляет поддерево
	assert.Contains(t, sql, "REFERENCES tasks(id) ON DELETE CASCADE")
	assert.Contains(t, sql, "CHECK (priority BETWEEN 0 AND 3)")
	assert.Contains(t, sql, "CHECK (generation_count >= 0)")
}
