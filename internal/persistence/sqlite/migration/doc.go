// Package migration applies versioned schema changes to SQLite databases.
//
// Migrations are read from an fs.FS, usually an embedded directory, and must
// follow the naming convention {version}_{description}.sql
// (e.g. "001_initial_schema.sql"). Each migration runs in its own
// transaction and is recorded in the schema_migrations table together with
// its checksum, so an applied file that later changes is detected.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig(path))
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(db, migrations, "migrations", logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("migrate: %w", err)
//	}
package migration
