package pg

import (
	"fmt"

	_ "github.com/lib/pq"
	"github.com/nimasrn/expense-gateway/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Migrate applies every pending goose migration found in dir.
func Migrate(cfg Config, dir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	db, err := newSqlConnection(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err = goose.Up(db, dir); err != nil {
		return fmt.Errorf("apply migrations from %s: %w", dir, err)
	}

	version, err := goose.GetDBVersion(db)
	if err == nil {
		logger.Info("database migrated", "dir", dir, "version", version)
	}
	return nil
}
