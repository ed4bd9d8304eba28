package migrate

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func TestFilesSkipsRollbackScripts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_more.sql", "0001_init.sql", "0001_init_rollback.sql", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.sql"), 0o755))

	files, err := NewRunner(nil, dir, zap.NewNop()).Files()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_more.sql"}, files)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "0001", Version("0001_init.sql"))
	assert.Equal(t, "0002", Version("0002_add_index_on_tags.sql"))
}

func TestUpAndRollbackAgainstPostgres(t *testing.T) {
	db, err := sql.Open("postgres", testhelpers.StartPostgres(t))
	require.NoError(t, err)
	defer db.Close()

	runner := NewRunner(db, testhelpers.MigrationsDir(), zap.NewNop())
	require.NoError(t, runner.Up())
	// A second run is a no-op.
	require.NoError(t, runner.Up())

	var exists bool
	require.NoError(t, db.QueryRow("SELECT to_regclass('public.recipes') IS NOT NULL").Scan(&exists))
	assert.True(t, exists)

	require.NoError(t, runner.Rollback())
	require.NoError(t, db.QueryRow("SELECT to_regclass('public.recipes') IS NOT NULL").Scan(&exists))
	assert.False(t, exists)

	assert.ErrorIs(t, runner.Rollback(), ErrNothingToRollback)
}
