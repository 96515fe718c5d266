package db

import (
	"fmt"
	"sync/atomic"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var testSeq atomic.Int64

// NewTest opens a private in-memory SQLite database.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:authbridge_test_%d?mode=memory&cache=shared", testSeq.Add(1))
	return gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Discard,
		TranslateError: true,
	})
}
