package migration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(TempFileTestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"migrations/001_create_grounds.sql": {Data: []byte(`
-- grounds catalog
CREATE TABLE grounds (id TEXT PRIMARY KEY, name TEXT NOT NULL);
CREATE INDEX idx_grounds_name ON grounds (name);
`)},
		"migrations/002_add_slot_count.sql": {Data: []byte(`ALTER TABLE grounds ADD COLUMN slot_count INTEGER NOT NULL DEFAULT 1;`)},
		"migrations/README.md":              {Data: []byte("ignored")},
	}
}

func TestManager_RunAppliesPendingMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	manager := NewManager(db, testMigrations(), "migrations", quietLogger())

	require.NoError(t, manager.Run(ctx))

	_, err := db.ExecContext(ctx, `INSERT INTO grounds (id, name, slot_count) VALUES ('G1', 'Main Oval', 3)`)
	require.NoError(t, err)

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", status.CurrentVersion)
	assert.Empty(t, status.Pending)
	require.Len(t, status.Applied, 2)
	assert.NotEmpty(t, status.Applied[0].Checksum)

	// Running again is a no-op.
	require.NoError(t, manager.Run(ctx))
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"m/001_broken.sql": {Data: []byte(`CREATE TABLE ok_table (id TEXT); CREATE TABLE broken (;`)},
	}
	manager := NewManager(db, fsys, "m", quietLogger())

	err := manager.Run(ctx)
	require.ErrorIs(t, err, ErrMigrationFailed)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'ok_table'`).Scan(&count))
	assert.Zero(t, count)

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Len(t, status.Pending, 1)
}

func TestManager_DetectsEditedMigrations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := newTestDB(t)
	fsys := testMigrations()
	require.NoError(t, NewManager(db, fsys, "migrations", quietLogger()).Run(ctx))

	fsys["migrations/001_create_grounds.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE grounds (id TEXT);`)}
	_, err := NewManager(db, fsys, "migrations", quietLogger()).Status(ctx)
	require.ErrorIs(t, err, ErrChecksumMismatch)

	delete(fsys, "migrations/001_create_grounds.sql")
	_, err = NewManager(db, fsys, "migrations", quietLogger()).Status(ctx)
	require.ErrorIs(t, err, ErrVersionGap)
}

func TestScanner(t *testing.T) {
	t.Parallel()

	t.Run("orders by numeric version", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{
			"m/010_ten.sql": {Data: []byte("SELECT 10;")},
			"m/2_two.sql":   {Data: []byte("SELECT 2;")},
			"m/001_one.sql": {Data: []byte("SELECT 1;")},
		}
		migrations, err := NewScanner(fsys, "m").ScanMigrations()
		require.NoError(t, err)
		require.Len(t, migrations, 3)
		assert.Equal(t, []string{"001", "2", "010"}, []string{migrations[0].Version, migrations[1].Version, migrations[2].Version})
		assert.Equal(t, "one", migrations[0].Description)
	})

	t.Run("rejects duplicates and bad names", func(t *testing.T) {
		t.Parallel()
		_, err := NewScanner(fstest.MapFS{
			"m/001_a.sql": {Data: []byte("SELECT 1;")},
			"m/1_b.sql":   {Data: []byte("SELECT 1;")},
		}, "m").ScanMigrations()
		require.ErrorIs(t, err, ErrDuplicateVersion)

		_, err = NewScanner(fstest.MapFS{"m/initial schema.sql": {Data: []byte("SELECT 1;")}}, "m").ScanMigrations()
		require.ErrorIs(t, err, ErrInvalidMigrationFile)

		_, err = NewScanner(fstest.MapFS{"m/001_empty.sql": {Data: []byte("  \n")}}, "m").ScanMigrations()
		require.ErrorIs(t, err, ErrInvalidMigrationFile)
	})
}

func TestParseSQL(t *testing.T) {
	t.Parallel()

	statements := parseSQL("-- header\nCREATE TABLE a (id TEXT);\n\n-- only a comment;\nCREATE TABLE b (\n  id TEXT\n);\n")
	assert.Equal(t, []string{"CREATE TABLE a (id TEXT)", "CREATE TABLE b (\nid TEXT\n)"}, statements)
}

func TestSQLiteConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultSQLiteConfig("/var/lib/booking/booking.db")
	require.NoError(t, cfg.Validate())
	dsn := cfg.DSN()
	assert.Contains(t, dsn, "file:/var/lib/booking/booking.db?")
	assert.Contains(t, dsn, "_txlock=immediate")
	assert.Contains(t, dsn, "foreign_keys%281%29")

	cfg.JournalMode = "SIDEWAYS"
	assert.Error(t, cfg.Validate())
	assert.Error(t, SQLiteConfig{}.Validate())
}
