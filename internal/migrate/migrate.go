// Package migrate applies and rolls back the SQL files in the migrations
// directory against a postgres database/sql handle.
package migrate

import (
	"database/sql"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNothingToRollback is returned by Rollback when no migration is recorded.
var ErrNothingToRollback = errors.New("no migrations to rollback")

const createTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`

type Runner struct {
	db  *sql.DB
	dir string
	log *zap.Logger
}

func NewRunner(db *sql.DB, dir string, log *zap.Logger) *Runner {
	return &Runner{db: db, dir: dir, log: log}
}

// Files lists forward migrations in apply order. Rollback scripts are named
// <migration>_rollback.sql and are excluded.
func (r *Runner) Files() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations directory")
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".sql" || strings.HasSuffix(name, "_rollback.sql") {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// Version is the filename prefix before the first underscore.
func Version(file string) string {
	return strings.SplitN(file, "_", 2)[0]
}

// Up applies every migration that is not yet recorded, each in its own
// transaction.
func (r *Runner) Up() error {
	if _, err := r.db.Exec(createTable); err != nil {
		return errors.Wrap(err, "create schema_migrations table")
	}
	files, err := r.Files()
	if err != nil {
		return err
	}

	for _, file := range files {
		version := Version(file)

		var applied bool
		err := r.db.QueryRow("SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&applied)
		if err != nil {
			return errors.Wrap(err, "check migration status")
		}
		if applied {
			r.log.Info("migration already applied", zap.String("file", file))
			continue
		}

		content, err := os.ReadFile(filepath.Join(r.dir, file))
		if err != nil {
			return errors.Wrapf(err, "read migration %s", file)
		}
		err = r.inTx(func(tx *sql.Tx) error {
			if _, err := tx.Exec(string(content)); err != nil {
				return errors.Wrapf(err, "apply migration %s", file)
			}
			_, err := tx.Exec("INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", version, file)
			return errors.Wrap(err, "record migration")
		})
		if err != nil {
			return err
		}
		r.log.Info("applied migration", zap.String("file", file))
	}

	r.log.Info("all migrations applied")
	return nil
}

// Rollback runs the rollback script of the most recently applied migration
// and forgets it.
func (r *Runner) Rollback() error {
	if _, err := r.db.Exec(createTable); err != nil {
		return errors.Wrap(err, "create schema_migrations table")
	}

	var version, name string
	err := r.db.QueryRow("SELECT version, name FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1").
		Scan(&version, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNothingToRollback
	}
	if err != nil {
		return errors.Wrap(err, "get last migration")
	}

	rollbackFile := strings.TrimSuffix(name, ".sql") + "_rollback.sql"
	content, err := os.ReadFile(filepath.Join(r.dir, rollbackFile))
	if err != nil {
		return errors.Wrapf(err, "read rollback file %s", rollbackFile)
	}

	err = r.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(string(content)); err != nil {
			return errors.Wrap(err, "execute rollback")
		}
		_, err := tx.Exec("DELETE FROM schema_migrations WHERE version = $1", version)
		return errors.Wrap(err, "remove migration record")
	})
	if err != nil {
		return err
	}
	r.log.Info("rolled back migration", zap.String("file", name))
	return nil
}

func (r *Runner) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return errors.Wrap(err, "start transaction")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}
