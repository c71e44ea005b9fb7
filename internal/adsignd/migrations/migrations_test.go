package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	migrations, err := Load()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "initial_schema", migrations[0].Description)
	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `
-- leading comment
CREATE TABLE a (id INT);

-- only a comment;
CREATE UNIQUE INDEX idx ON a(id) WHERE id > 0;
`
	stmts := SplitStatements(sql)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (id INT)", stmts[0])
	assert.Equal(t, "CREATE UNIQUE INDEX idx ON a(id) WHERE id > 0", stmts[1])
}

func TestInitialSchemaHasPendingUniqueness(t *testing.T) {
	migrations, err := Load()
	require.NoError(t, err)
	assert.Contains(t, migrations[0].Up, "WHERE status = 'pending'")
}
