package database

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"classroom-roster/pkg/logger"

	"gorm.io/gorm"
)

// Migration is one numbered SQL file, e.g. 0001_create_classes.sql.
type Migration struct {
	ID          string
	Description string
	SQL         string
	Checksum    string
	AppliedAt   *time.Time
	// Modified is set when the file changed after it was applied.
	Modified bool
}

type appliedMigration struct {
	ID        string
	Checksum  string
	AppliedAt time.Time
}

// MigrationRunner applies the SQL files of a directory in name order and
// records each one in schema_migrations.
type MigrationRunner struct {
	db    *gorm.DB
	files fs.FS
}

func NewMigrationRunner(db *gorm.DB, migrationsDir string) *MigrationRunner {
	return &MigrationRunner{db: db, files: os.DirFS(migrationsDir)}
}

const migrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	id          VARCHAR(255) PRIMARY KEY,
	description TEXT NOT NULL,
	checksum    CHAR(64) NOT NULL DEFAULT '',
	applied_at  TIMESTAMP WITH TIME ZONE DEFAULT NOW()
)`

func parseMigrationName(filename string) (id, description string, err error) {
	parts := strings.SplitN(filename, "_", 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid migration filename format: %s", filename)
	}
	description = strings.TrimSuffix(parts[1], ".sql")
	return parts[0], strings.ReplaceAll(description, "_", " "), nil
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

// load reads every *.sql file sorted by name.
func (mr *MigrationRunner) load() ([]Migration, error) {
	names, err := fs.Glob(mr.files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(mr.files, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		id, description, err := parseMigrationName(path.Base(name))
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{
			ID:          id,
			Description: description,
			SQL:         string(content),
			Checksum:    checksum(string(content)),
		})
	}
	return migrations, nil
}

func (mr *MigrationRunner) applied() (map[string]appliedMigration, error) {
	if err := mr.db.Exec(migrationsTable).Error; err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	var rows []appliedMigration
	if err := mr.db.Raw("SELECT id, checksum, applied_at FROM schema_migrations").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	applied := make(map[string]appliedMigration, len(rows))
	for _, row := range rows {
		applied[row.ID] = row
	}
	return applied, nil
}

// merge marks which migrations are applied and which changed since.
func merge(migrations []Migration, applied map[string]appliedMigration) []Migration {
	for i := range migrations {
		row, ok := applied[migrations[i].ID]
		if !ok {
			continue
		}
		at := row.AppliedAt
		migrations[i].AppliedAt = &at
		migrations[i].Modified = row.Checksum != "" && row.Checksum != migrations[i].Checksum
	}
	return migrations
}

// RunMigrations applies pending migrations, each in its own transaction.
// It refuses to run when an applied file was edited afterwards.
func (mr *MigrationRunner) RunMigrations() error {
	migrations, err := mr.load()
	if err != nil {
		return err
	}
	applied, err := mr.applied()
	if err != nil {
		return err
	}

	pending := 0
	for _, m := range merge(migrations, applied) {
		if m.Modified {
			return fmt.Errorf("migration %s was modified after it was applied", m.ID)
		}
		if m.AppliedAt != nil {
			continue
		}

		err := mr.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.SQL).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.ID, err)
			}
			return tx.Exec("INSERT INTO schema_migrations (id, description, checksum) VALUES (?, ?, ?)",
				m.ID, m.Description, m.Checksum).Error
		})
		if err != nil {
			return err
		}

		logger.Info("Applied migration %s (%s)", m.ID, m.Description)
		pending++
	}

	if pending == 0 {
		logger.Info("Schema is up to date")
	}
	return nil
}

// GetMigrationStatus lists all migration files; AppliedAt is nil for pending ones.
func (mr *MigrationRunner) GetMigrationStatus() ([]Migration, error) {
	migrations, err := mr.load()
	if err != nil {
		return nil, err
	}
	applied, err := mr.applied()
	if err != nil {
		return nil, err
	}
	return merge(migrations, applied), nil
}
