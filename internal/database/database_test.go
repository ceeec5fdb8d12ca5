package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/pyramidview/internal/database/repository"
	"github.com/jask/pyramidview/internal/dims"
	"github.com/jask/pyramidview/internal/loader"
	"github.com/jask/pyramidview/internal/logging"
)

func openTestDB(t *testing.T) *repository.SourceRepo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, RunMigrations(db, logging.NewTestLogger()))
	require.NoError(t, SeedDefaults(context.Background(), db, ""))
	return repository.NewSourceRepo(db)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	t.Parallel()

	db, err := Open(filepath.Join(t.TempDir(), "nested", "catalog.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RunMigrations(db, logging.NewTestLogger()))
	require.NoError(t, RunMigrations(db, logging.NewTestLogger()))
	version, dirty, err := SchemaVersion(db)
	require.NoError(t, err)
	require.False(t, dirty)
	require.EqualValues(t, 1, version)
}

func TestSeedDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	repo := openTestDB(t)
	first, err := repo.List(ctx)
	require.NoError(t, err)

	builtin, err := ParseSources(defaultSources)
	require.NoError(t, err)
	require.Len(t, first, len(builtin))
	for _, s := range first {
		require.True(t, loader.IsSupported(s.Type), s.Type)
	}

	static, err := repo.Get(ctx, "static")
	require.NoError(t, err)
	require.Equal(t, "synthetic://static", static.URL)
	require.True(t, static.IsPyramid)
	require.Equal(t, []string{"DAPI", "Cy3", "Cy5", "FITC", "TRITC"}, static.Dimensions[0].Labels())
	require.Equal(t, dims.Range("z", 5), static.Dimensions[1])

	rgb, err := repo.Get(ctx, "static rgb")
	require.NoError(t, err)
	require.True(t, rgb.IsRGB)
	require.False(t, rgb.IsPyramid)

	tiff, err := repo.Get(ctx, "tiff")
	require.NoError(t, err)
	require.Empty(t, tiff.Dimensions)
	require.Equal(t, tiff.URL, tiff.Info().URL)
}

func TestSeedDefaultsTwiceKeepsOneRowPerName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(db, logging.NewTestLogger()))
	require.NoError(t, SeedDefaults(ctx, db, ""))
	require.NoError(t, SeedDefaults(ctx, db, ""))

	var n int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sources`).Scan(&n))
	builtin, err := ParseSources(defaultSources)
	require.NoError(t, err)
	require.Equal(t, len(builtin), n)
}

func TestSeedOverrideFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sources:
  - name: local
    type: zarr
    url: http://localhost:9000/img.zarr
    dimensions:
      - field: channel
        values: [0, 1, 2.5]
`), 0o600))

	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(db, logging.NewTestLogger()))
	require.NoError(t, SeedDefaults(ctx, db, path))

	repo := repository.NewSourceRepo(db)
	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, []string{"0", "1", "2.5"}, all[0].Dimensions[0].Labels())

	_, err = repo.Get(ctx, "tiff")
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "local"))
	all, err = repo.List(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestParseSourcesRejects(t *testing.T) {
	t.Parallel()

	_, err := ParseSources([]byte("sources:\n  - name: x\n    type: png\n"))
	require.ErrorIs(t, err, loader.ErrUnsupportedSourceType)

	_, err = ParseSources([]byte("sources:\n  - name: x\n    type: zarr\n  - name: x\n    type: tiff\n"))
	require.ErrorContains(t, err, "declared twice")

	_, err = ParseSources([]byte("sources:\n  - type: zarr\n"))
	require.ErrorContains(t, err, "no name")

	_, err = ParseSources([]byte("sources: ["))
	require.Error(t, err)
}
