package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("create: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New(`ERROR: duplicate key value violates unique constraint "users_stytch_user_id_key" (SQLSTATE 23505)`)))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry")))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: users.email")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsUnavailable(t *testing.T) {
	assert.False(t, IsUnavailable(nil))
	assert.False(t, IsUnavailable(gorm.ErrRecordNotFound))
	assert.False(t, IsUnavailable(gorm.ErrDuplicatedKey))
	assert.True(t, IsUnavailable(errors.New("dial tcp: connection refused")))
}

func TestNewTestIsolated(t *testing.T) {
	type row struct {
		ID   int64
		Name string
	}

	first, err := NewTest()
	assert.NoError(t, err)
	assert.NoError(t, first.AutoMigrate(&row{}))
	assert.NoError(t, first.Create(&row{ID: 1, Name: "a"}).Error)

	second, err := NewTest()
	assert.NoError(t, err)
	assert.False(t, second.Migrator().HasTable(&row{}))
}
