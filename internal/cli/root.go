// Package cli implements foodgramctl, the administrative command line for
// tasks that have no public API: loading the ingredient catalog, creating
// tags and staff accounts, and deleting users.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
)

type options struct {
	sqlitePath    string
	migrationsDir string
}

// NewRootCommand builds the command tree. Each call returns fresh flag state.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "foodgramctl",
		Short:         "foodgramctl administers a Foodgram database",
		Long:          "foodgramctl loads the ingredient catalog, creates tags and staff users, and removes accounts.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.sqlitePath, "sqlite", "", "Use a SQLite database file instead of the configured PostgreSQL")
	root.PersistentFlags().StringVar(&opts.migrationsDir, "migrations", "migrations", "Directory holding the SQL migrations")

	root.AddCommand(
		newLoadIngredientsCommand(opts),
		newCreateTagCommand(opts),
		newCreateSuperuserCommand(opts),
		newDeleteUserCommand(opts),
	)
	return root
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDB opens and migrates the database, then runs fn.
func (o *options) withDB(run func(db *gorm.DB, log *zap.Logger) error) error {
	var (
		db  *gorm.DB
		log *zap.Logger
		err error
	)

	if o.sqlitePath != "" {
		log = zap.NewNop()
		db, err = database.NewSQLite(o.sqlitePath + "?_foreign_keys=on")
	} else {
		var cfg *config.Config
		if cfg, err = config.LoadConfig(); err != nil {
			return err
		}
		if log, err = logging.New(cfg.LogLevel, cfg.Env); err != nil {
			return err
		}
		db, err = database.New(cfg, log)
	}
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := database.RunMigrations(db, o.migrationsDir, log); err != nil {
		return err
	}
	return run(db, log)
}
