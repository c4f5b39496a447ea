package repository

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/nimasrn/expense-gateway/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type TestDB struct {
	*pg.DB
	Raw *gorm.DB
}

// NewTestDB opens a private in-memory sqlite database holding the
// expense and user tables. A single connection keeps every query on the
// same database.
func NewTestDB(t testing.TB) *TestDB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&ExpenseEntity{}, &RegisteredUserEntity{}))

	return &TestDB{
		DB:  pg.Wrap(db, db),
		Raw: db,
	}
}
