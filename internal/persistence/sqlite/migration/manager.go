package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"time"
)

// Manager orchestrates the migration process
type Manager struct {
	scanner  *Scanner
	executor *SQLiteExecutor
	logger   *slog.Logger
}

// NewManager creates a manager applying the migrations found in dir of fsys to db.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "migration")
	return &Manager{
		scanner:  NewScanner(fsys, dir),
		executor: NewSQLiteExecutor(db, logger),
		logger:   logger,
	}
}

// Run executes all pending migrations in sequential order
func (m *Manager) Run(ctx context.Context) error {
	startTime := time.Now()

	status, err := m.Status(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to determine migration status", "error", err)
		return err
	}

	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "database schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "current_version", status.CurrentVersion, "pending", len(status.Pending))

	for i, migration := range status.Pending {
		logger := m.logger.With("version", migration.Version, "file", migration.FilePath)
		logger.InfoContext(ctx, "executing migration", "description", migration.Description, "step", i+1, "of", len(status.Pending))

		migrationStart := time.Now()
		if err := m.executor.ExecuteMigration(ctx, migration); err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return stepError(migration.Version, migration.FilePath,
				"execute migration", fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied", "duration", time.Since(migrationStart))
	}

	m.logger.InfoContext(ctx, "migrations complete", "count", len(status.Pending), "duration", time.Since(startTime))
	return nil
}

// Status reports applied and pending migrations after validating that the
// available files are consistent with what the database has recorded.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.scanner.ScanMigrations()
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return Status{}, err
	}

	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, migration := range applied {
		number, _ := strconv.Atoi(migration.Version)
		appliedByVersion[number] = migration
	}

	status := Status{Applied: applied}
	if len(applied) > 0 {
		status.CurrentVersion = applied[len(applied)-1].Version
	}
	for _, migration := range available {
		number, _ := strconv.Atoi(migration.Version)
		if _, ok := appliedByVersion[number]; !ok {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		number, err := strconv.Atoi(migration.Version)
		if err != nil {
			return stepError(migration.Version, migration.FilePath, "validate sequence", err)
		}
		if number != i+1 {
			return stepError(migration.Version, migration.FilePath, "validate sequence",
				fmt.Errorf("%w: expected version %03d", ErrVersionGap, i+1))
		}
		byVersion[number] = migration
	}

	for _, record := range applied {
		number, err := strconv.Atoi(record.Version)
		if err != nil {
			return stepError(record.Version, "", "validate sequence", err)
		}
		migration, ok := byVersion[number]
		if !ok {
			return stepError(record.Version, "", "validate sequence", ErrMigrationNotFound)
		}
		if record.Checksum != "" && record.Checksum != migration.Checksum {
			return stepError(record.Version, migration.FilePath, "validate sequence", ErrChecksumMismatch)
		}
	}
	return nil
}
